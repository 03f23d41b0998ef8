package shop

import (
	"fmt"

	"shopcraft.gg/internal/host"
)

// Object is a shopkeeper's world representation. Exclusively owned by its
// shopkeeper; despawned and discarded when the shopkeeper is deactivated or
// deleted.
type Object interface {
	Type() ObjectType
	Spawn() error
	Despawn()
	// Active reports whether the representation currently exists in the
	// world.
	Active() bool
	SetDisplayName(name string)
}

// EntityTracker is the slice of the AI scheduler the entity object needs.
type EntityTracker interface {
	Add(w host.World, e host.Entity) error
	Remove(e host.Entity) error
}

// entityObject renders the shop as a living entity driven by the plugin's
// own AI scheduler instead of engine AI.
type entityObject struct {
	sk     *Shopkeeper
	entity host.Entity
}

func (o *entityObject) Type() ObjectType { return ObjectEntity }

func (o *entityObject) Spawn() error {
	if o.Active() {
		return nil
	}
	w := o.sk.reg.deps.Host.World(o.sk.world)
	if w == nil {
		return fmt.Errorf("spawn %s: world %q not loaded", o.sk, o.sk.world)
	}
	kind := o.sk.entityKind
	if kind == "" {
		kind = "VILLAGER"
	}
	e, err := w.SpawnEntity(kind, o.sk.pos)
	if err != nil {
		return fmt.Errorf("spawn %s: %w", o.sk, err)
	}
	e.SetName(o.sk.name)
	o.entity = e
	if tracker := o.sk.reg.deps.AI; tracker != nil {
		if err := tracker.Add(w, e); err != nil {
			o.sk.reg.deps.Log.Printf("%s: ai tracking: %v", o.sk, err)
		}
	}
	return nil
}

func (o *entityObject) Despawn() {
	if o.entity == nil {
		return
	}
	if tracker := o.sk.reg.deps.AI; tracker != nil {
		_ = tracker.Remove(o.entity)
	}
	if o.entity.Valid() {
		o.entity.Remove()
	}
	o.entity = nil
}

func (o *entityObject) Active() bool { return o.entity != nil && o.entity.Valid() }

func (o *entityObject) SetDisplayName(name string) {
	if o.entity != nil && o.entity.Valid() {
		o.entity.SetName(name)
	}
}

// Entity exposes the live entity handle, or nil while despawned.
func (o *entityObject) Entity() host.Entity { return o.entity }

// signObject renders the shop as a sign block.
type signObject struct {
	sk     *Shopkeeper
	placed bool
}

func (o *signObject) Type() ObjectType { return ObjectSign }

func (o *signObject) lines() []string {
	lines := []string{o.sk.name}
	if ps := o.sk.player; ps != nil {
		lines = append(lines, ps.OwnerName)
	}
	return lines
}

func (o *signObject) Spawn() error {
	if o.placed {
		return nil
	}
	w := o.sk.reg.deps.Host.World(o.sk.world)
	if w == nil {
		return fmt.Errorf("spawn %s: world %q not loaded", o.sk, o.sk.world)
	}
	if err := w.PlaceSign(o.sk.pos, o.lines()); err != nil {
		return fmt.Errorf("spawn %s: %w", o.sk, err)
	}
	o.placed = true
	return nil
}

func (o *signObject) Despawn() {
	if !o.placed {
		return
	}
	if w := o.sk.reg.deps.Host.World(o.sk.world); w != nil {
		w.RemoveSign(o.sk.pos)
	}
	o.placed = false
}

func (o *signObject) Active() bool { return o.placed }

func (o *signObject) SetDisplayName(string) {
	if !o.placed {
		return
	}
	if w := o.sk.reg.deps.Host.World(o.sk.world); w != nil {
		_ = w.PlaceSign(o.sk.pos, o.lines())
	}
}

// virtualObject has no world presence; it only tracks logical activation.
type virtualObject struct {
	active bool
}

func (o *virtualObject) Type() ObjectType { return ObjectVirtual }
func (o *virtualObject) Spawn() error { o.active = true; return nil }
func (o *virtualObject) Despawn() { o.active = false }
func (o *virtualObject) Active() bool { return o.active }
func (o *virtualObject) SetDisplayName(string) {}
