package shop

import (
	"fmt"

	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
	"shopcraft.gg/internal/ui"
)

// State is the lifecycle phase of a shopkeeper. Transitions only move
// forward, except REGISTERED <-> ACTIVE which follows chunk load state.
type State int

const (
	StateUninitialized State = iota
	StateLoaded
	StateSetup
	StateRegistered
	StateActive
	StateRemoved
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoaded:
		return "loaded"
	case StateSetup:
		return "setup"
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	case StateRemoved:
		return "removed"
	case StateDeleted:
		return "deleted"
	}
	return "unknown"
}

// Shopkeeper is one persistent merchant record plus its world representation.
// All access happens on the logic thread.
type Shopkeeper struct {
	id  int
	uid uuid.UUID

	typ        ShopType
	objType    ObjectType
	entityKind string

	name      string
	world     string
	pos       host.Vec3i
	hasPos    bool
	blockFace string

	state     State
	dirty     bool
	valid     bool
	acceptsUI bool

	player *PlayerShopData // nil for admin shops

	offers []TradingOffer
	priced []PriceOffer
	books  []BookOffer

	behavior Behavior
	object   Object
	handlers map[ui.Type]ui.Handler

	reg *Registry
}

func (sk *Shopkeeper) ID() int { return sk.id }
func (sk *Shopkeeper) UUID() uuid.UUID { return sk.uid }
func (sk *Shopkeeper) Type() ShopType { return sk.typ }
func (sk *Shopkeeper) ObjectType() ObjectType { return sk.objType }
func (sk *Shopkeeper) State() State { return sk.state }
func (sk *Shopkeeper) Valid() bool { return sk.valid }
func (sk *Shopkeeper) Dirty() bool { return sk.dirty }
func (sk *Shopkeeper) Name() string { return sk.name }
func (sk *Shopkeeper) WorldName() string { return sk.world }
func (sk *Shopkeeper) BlockFace() string { return sk.blockFace }
func (sk *Shopkeeper) Object() Object { return sk.object }
func (sk *Shopkeeper) Behavior() Behavior { return sk.behavior }

// Location returns the spawn location, if any. Virtual shops may have none.
func (sk *Shopkeeper) Location() (string, host.Vec3i, bool) {
	return sk.world, sk.pos, sk.hasPos
}

func (sk *Shopkeeper) Chunk() (host.ChunkKey, bool) {
	if !sk.hasPos {
		return host.ChunkKey{}, false
	}
	return host.ChunkAt(sk.pos), true
}

func (sk *Shopkeeper) SetName(name string) {
	if sk.name == name {
		return
	}
	sk.name = name
	if sk.object != nil {
		sk.object.SetDisplayName(name)
	}
	sk.MarkDirty()
}

// MoveTo relocates the shopkeeper's spawn point, atomically updating the
// spatial chunk index.
func (sk *Shopkeeper) MoveTo(pos host.Vec3i) {
	if !sk.objType.NeedsLocation() {
		return
	}
	old := sk.pos
	if old == pos {
		return
	}
	// Despawn while pos still points at the old location; sign objects
	// remove their block at sk.pos.
	if sk.state == StateActive && sk.object != nil {
		sk.object.Despawn()
	}
	sk.pos = pos
	sk.reg.onShopkeeperMoved(sk, old)
	sk.MarkDirty()
}

// MarkDirty flags unsaved mutations and notifies the persistence observer.
// Idempotent with respect to the flag; the observer coalesces requests.
func (sk *Shopkeeper) MarkDirty() {
	sk.dirty = true
	if sk.reg != nil && sk.reg.deps.OnDirty != nil {
		sk.reg.deps.OnDirty()
	}
}

func (sk *Shopkeeper) clearDirty() { sk.dirty = false }

// ui.Shopkeeper implementation.
func (sk *Shopkeeper) UIHandler(t ui.Type) ui.Handler { return sk.handlers[t] }
func (sk *Shopkeeper) AcceptsUI() bool { return sk.acceptsUI }
func (sk *Shopkeeper) SetAcceptsUI(v bool) { sk.acceptsUI = v }

func (sk *Shopkeeper) String() string {
	return fmt.Sprintf("shopkeeper %d (%s)", sk.id, sk.uid)
}

// PlayerShop returns the player-shop extension, or nil for admin shops.
func (sk *Shopkeeper) PlayerShop() *PlayerShopData { return sk.player }

// Active reports whether the world representation is currently spawned.
func (sk *Shopkeeper) Active() bool { return sk.state == StateActive }

// load populates a fresh shopkeeper from a creation request. The id is not
// assigned yet; the registry does that on add.
func loadFromCreation(data CreationData) (*Shopkeeper, error) {
	if !data.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown shop type %q", ErrCreation, data.Type)
	}
	if !data.Object.Valid() {
		return nil, fmt.Errorf("%w: unknown object type %q", ErrCreation, data.Object)
	}
	if data.Object.NeedsLocation() && !data.HasPos {
		return nil, fmt.Errorf("%w: object type %q requires a spawn location", ErrCreation, data.Object)
	}
	sk := &Shopkeeper{
		uid:        uuid.New(),
		typ:        data.Type,
		objType:    data.Object,
		entityKind: data.EntityKind,
		name:       data.Name,
		world:      data.World,
		pos:        data.Pos,
		hasPos:     data.HasPos,
		blockFace:  data.BlockFace,
		state:      StateLoaded,
		valid:      true,
		acceptsUI:  true,
	}
	if data.Type.IsPlayerShop() {
		if data.OwnerID == uuid.Nil {
			return nil, fmt.Errorf("%w: player shop without owner", ErrCreation)
		}
		sk.player = &PlayerShopData{
			OwnerID:   data.OwnerID,
			OwnerName: data.OwnerName,
			Container: data.Container,
			trusted:   map[uuid.UUID]bool{},
		}
	}
	return sk, nil
}

// setup attaches the behavior, shop object and default UI handlers for the
// shop type. LOADED -> SETUP.
func (sk *Shopkeeper) setup(reg *Registry) error {
	if sk.state != StateLoaded {
		return fmt.Errorf("setup in state %s", sk.state)
	}
	sk.reg = reg

	switch sk.typ {
	case TypeAdmin:
		sk.behavior = adminBehavior{}
	case TypeSelling:
		sk.behavior = sellingBehavior{}
	case TypeBuying:
		sk.behavior = buyingBehavior{}
	case TypeTrading:
		sk.behavior = tradingBehavior{}
	}

	switch sk.objType {
	case ObjectEntity:
		sk.object = &entityObject{sk: sk}
	case ObjectSign:
		sk.object = &signObject{sk: sk}
	case ObjectVirtual:
		sk.object = &virtualObject{}
	}

	sk.handlers = map[ui.Type]ui.Handler{
		ui.TypeTrading: &tradingHandler{sk: sk},
		ui.TypeEditor:  &editorHandler{sk: sk},
	}
	if sk.typ.IsPlayerShop() {
		sk.handlers[ui.TypeHiring] = &hiringHandler{sk: sk}
	}

	sk.state = StateSetup
	return nil
}

// OnInteract routes a player's use of the shop's world representation:
// the owner sneaking opens the editor, a for-hire shop offers hiring to
// non-owners, everything else opens trading.
func (sk *Shopkeeper) OnInteract(p host.Player, sneaking bool) bool {
	if !sk.valid {
		return false
	}
	if sneaking && sk.canEdit(p) {
		return sk.reg.deps.UI.RequestOpen(ui.TypeEditor, sk, p)
	}
	if ps := sk.player; ps != nil && ps.ForHire() && !ps.IsOwner(p.ID()) {
		return sk.reg.deps.UI.RequestOpen(ui.TypeHiring, sk, p)
	}
	return sk.reg.deps.UI.RequestOpen(ui.TypeTrading, sk, p)
}

func (sk *Shopkeeper) canEdit(p host.Player) bool {
	if sk.player == nil {
		return p.HasPermission(PermAdmin)
	}
	return sk.player.IsOwner(p.ID()) || sk.player.IsTrusted(p.ID()) || p.HasPermission(PermBypass)
}

// tick runs once per container-check interval for active shopkeepers.
func (sk *Shopkeeper) tick() {
	if sk.player == nil || !sk.valid {
		return
	}
	w := sk.reg.deps.Host.World(sk.world)
	if w == nil {
		return
	}
	if _, ok := w.ContainerAt(sk.player.Container); !ok {
		// Container destroyed out-of-band; removal policy deletes the shop.
		sk.reg.deps.Log.Printf("shop %d: container at %v gone, removing shop", sk.id, sk.player.Container)
		sk.reg.Delete(sk)
	}
}
