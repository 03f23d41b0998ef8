package shop

import (
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
	"shopcraft.gg/internal/tuning"
	"shopcraft.gg/internal/ui"
)

// AuditEvent is one lifecycle fact recorded to the audit index.
type AuditEvent struct {
	Tick     uint64
	Kind     string // create / load / remove
	ShopID   int
	ShopUUID string
	ShopType string
	Detail   string
}

// Audit receives lifecycle events; implementations must not block the logic
// thread.
type Audit interface {
	Record(ev AuditEvent)
}

// Deps are the collaborators a registry (and its shopkeepers) needs. All are
// injected at construction; there is no global plugin accessor.
type Deps struct {
	Host       host.Host
	Log        *log.Logger
	UI         *ui.Registry
	AI         EntityTracker
	Currency   tuning.Currency
	Containers host.ProtectedContainers
	Audit      Audit

	// OnDirty is the persistence observer; invoked whenever any shopkeeper
	// acquires unsaved mutations. The observer coalesces.
	OnDirty func()
}

type worldChunk struct {
	World string
	Chunk host.ChunkKey
}

// Registry owns the authoritative shopkeeper collection. Integer ids are
// handed out from 1, strictly increasing for the registry's lifetime; UUIDs
// are generated once at creation and persisted.
type Registry struct {
	deps Deps

	nextID int

	byID    map[int]*Shopkeeper
	byUUID  map[uuid.UUID]*Shopkeeper
	byChunk map[worldChunk]map[*Shopkeeper]struct{}

	// Removed but not yet erased from the save file.
	pendingDeleted []*Shopkeeper

	containerTask host.Task
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:    deps,
		nextID:  0,
		byID:    map[int]*Shopkeeper{},
		byUUID:  map[uuid.UUID]*Shopkeeper{},
		byChunk: map[worldChunk]map[*Shopkeeper]struct{}{},
	}
}

// CreateShopkeeper validates a creation request, builds the shopkeeper,
// registers it and, if its chunk is already loaded, activates it.
func (r *Registry) CreateShopkeeper(data CreationData) (*Shopkeeper, error) {
	if data.Object.NeedsLocation() {
		if !data.HasPos {
			return nil, fmt.Errorf("%w: object type %q requires a spawn location", ErrCreation, data.Object)
		}
		if r.deps.Host.World(data.World) == nil {
			return nil, fmt.Errorf("%w: world %q is not loaded", ErrCreation, data.World)
		}
	}
	sk, err := loadFromCreation(data)
	if err != nil {
		return nil, err
	}
	if err := sk.setup(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreation, err)
	}
	r.add(sk)
	sk.MarkDirty()
	r.audit("create", sk, "")

	if ck, ok := sk.Chunk(); ok {
		if w := r.deps.Host.World(sk.world); w != nil && w.IsChunkLoaded(ck) {
			r.activate(sk)
		}
	}
	return sk, nil
}

// LoadShopkeeper rebuilds one shopkeeper from a save record. Activation is
// left to the post-load chunk sweep.
func (r *Registry) LoadShopkeeper(rec Record) (*Shopkeeper, error) {
	sk, err := shopkeeperFromRecord(rec)
	if err != nil {
		return nil, err
	}
	if err := sk.setup(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	if _, taken := r.byID[sk.id]; taken {
		return nil, fmt.Errorf("%w: duplicate shopkeeper id %d", ErrLoad, sk.id)
	}
	if _, taken := r.byUUID[sk.uid]; taken {
		return nil, fmt.Errorf("%w: duplicate shopkeeper uuid %s", ErrLoad, sk.uid)
	}
	r.add(sk)
	r.audit("load", sk, "")
	return sk, nil
}

// add performs SETUP -> REGISTERED.
func (r *Registry) add(sk *Shopkeeper) {
	if sk.id == 0 {
		r.nextID++
		sk.id = r.nextID
	} else if sk.id > r.nextID {
		r.nextID = sk.id
	}
	r.byID[sk.id] = sk
	r.byUUID[sk.uid] = sk
	r.chunkIndexAdd(sk)
	if ps := sk.player; ps != nil {
		r.deps.Containers.Protect(sk.world, ps.Container)
	}
	sk.state = StateRegistered
}

func (r *Registry) chunkIndexAdd(sk *Shopkeeper) {
	ck, ok := sk.Chunk()
	if !ok {
		return
	}
	key := worldChunk{World: sk.world, Chunk: ck}
	set := r.byChunk[key]
	if set == nil {
		set = map[*Shopkeeper]struct{}{}
		r.byChunk[key] = set
	}
	set[sk] = struct{}{}
}

func (r *Registry) chunkIndexRemove(sk *Shopkeeper, ck host.ChunkKey) {
	key := worldChunk{World: sk.world, Chunk: ck}
	set := r.byChunk[key]
	delete(set, sk)
	if len(set) == 0 {
		delete(r.byChunk, key)
	}
}

// onShopkeeperMoved keeps the chunk index consistent with the new location
// and follows chunk load state for activation.
func (r *Registry) onShopkeeperMoved(sk *Shopkeeper, oldPos host.Vec3i) {
	oldCk := host.ChunkAt(oldPos)
	newCk := host.ChunkAt(sk.pos)
	if oldCk != newCk {
		r.chunkIndexRemove(sk, oldCk)
		r.chunkIndexAdd(sk)
	}
	w := r.deps.Host.World(sk.world)
	loaded := w != nil && w.IsChunkLoaded(newCk)
	if loaded && sk.state == StateRegistered {
		r.activate(sk)
	} else if !loaded && sk.state == StateActive {
		r.deactivate(sk)
	} else if sk.state == StateActive {
		// MoveTo already despawned at the old location; respawn here.
		if err := sk.object.Spawn(); err != nil {
			r.deps.Log.Printf("%s: respawn after move: %v", sk, err)
			sk.state = StateRegistered
		}
	}
}

func (r *Registry) ByID(id int) (*Shopkeeper, bool) {
	sk, ok := r.byID[id]
	return sk, ok
}

func (r *Registry) ByUUID(id uuid.UUID) (*Shopkeeper, bool) {
	sk, ok := r.byUUID[id]
	return sk, ok
}

// All returns a snapshot sorted by id; safe to mutate the registry while
// iterating it.
func (r *Registry) All() []*Shopkeeper {
	out := make([]*Shopkeeper, 0, len(r.byID))
	for _, sk := range r.byID {
		out = append(out, sk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (r *Registry) Count() int { return len(r.byID) }

func (r *Registry) InChunk(world string, ck host.ChunkKey) []*Shopkeeper {
	set := r.byChunk[worldChunk{World: world, Chunk: ck}]
	out := make([]*Shopkeeper, 0, len(set))
	for sk := range set {
		out = append(out, sk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ByOwner returns all player shops owned by the given user, sorted by id.
func (r *Registry) ByOwner(owner uuid.UUID) []*Shopkeeper {
	var out []*Shopkeeper
	for _, sk := range r.byID {
		if ps := sk.player; ps != nil && ps.OwnerID == owner {
			out = append(out, sk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// activate performs REGISTERED -> ACTIVE. Idempotent.
func (r *Registry) activate(sk *Shopkeeper) {
	if sk.state == StateActive {
		return
	}
	if sk.state != StateRegistered {
		return
	}
	if err := sk.object.Spawn(); err != nil {
		r.deps.Log.Printf("%v", err)
		return
	}
	sk.state = StateActive
}

// deactivate performs ACTIVE -> REGISTERED, retaining all data. Idempotent.
func (r *Registry) deactivate(sk *Shopkeeper) {
	if sk.state != StateActive {
		return
	}
	sk.object.Despawn()
	sk.state = StateRegistered
}

func (r *Registry) ActivateChunk(world string, ck host.ChunkKey) {
	for _, sk := range r.InChunk(world, ck) {
		r.activate(sk)
	}
}

func (r *Registry) DeactivateChunk(world string, ck host.ChunkKey) {
	for _, sk := range r.InChunk(world, ck) {
		r.deactivate(sk)
	}
}

// ActivateAllLoadedChunks sweeps the chunk index and activates every
// shopkeeper whose chunk is currently loaded.
func (r *Registry) ActivateAllLoadedChunks() {
	keys := make([]worldChunk, 0, len(r.byChunk))
	for key := range r.byChunk {
		keys = append(keys, key)
	}
	for _, key := range keys {
		w := r.deps.Host.World(key.World)
		if w == nil || !w.IsChunkLoaded(key.Chunk) {
			continue
		}
		r.ActivateChunk(key.World, key.Chunk)
	}
}

func (r *Registry) DeactivateAll() {
	for _, sk := range r.All() {
		r.deactivate(sk)
	}
}

// Delete removes a shopkeeper permanently: open interfaces are force-closed,
// the world representation despawned, registry and index entries dropped and
// the record erased on the next save cycle.
func (r *Registry) Delete(sk *Shopkeeper) {
	if !sk.valid {
		return
	}
	r.deps.UI.CloseAllDelayed(sk)
	r.deactivate(sk)

	delete(r.byID, sk.id)
	delete(r.byUUID, sk.uid)
	if ck, ok := sk.Chunk(); ok {
		r.chunkIndexRemove(sk, ck)
	}
	if ps := sk.player; ps != nil {
		r.deps.Containers.Unprotect(sk.world, ps.Container)
	}
	sk.valid = false
	sk.state = StateRemoved
	r.pendingDeleted = append(r.pendingDeleted, sk)
	r.audit("remove", sk, "")
	if r.deps.OnDirty != nil {
		r.deps.OnDirty()
	}
}

// CollectRecords snapshots every live shopkeeper into save records, sorted
// by id.
func (r *Registry) CollectRecords() []Record {
	all := r.All()
	out := make([]Record, 0, len(all))
	for _, sk := range all {
		out = append(out, sk.toRecord())
	}
	return out
}

// OnSaveComplete clears dirty flags and finishes REMOVED -> DELETED for
// shopkeepers whose records are now erased from the store.
func (r *Registry) OnSaveComplete() {
	for _, sk := range r.byID {
		sk.clearDirty()
	}
	for _, sk := range r.pendingDeleted {
		sk.state = StateDeleted
	}
	r.pendingDeleted = nil
}

// StartTasks schedules the periodic container liveness check.
func (r *Registry) StartTasks(containerCheckTicks int) {
	if r.containerTask != nil || containerCheckTicks <= 0 {
		return
	}
	sched := r.deps.Host.Scheduler()
	r.containerTask = sched.RunRepeating(containerCheckTicks, containerCheckTicks, func() {
		for _, sk := range r.All() {
			if sk.state == StateActive {
				sk.tick()
			}
		}
	})
}

func (r *Registry) StopTasks() {
	if r.containerTask != nil {
		r.containerTask.Cancel()
		r.containerTask = nil
	}
}

func (r *Registry) audit(kind string, sk *Shopkeeper, detail string) {
	if r.deps.Audit == nil {
		return
	}
	r.deps.Audit.Record(AuditEvent{
		Tick:     r.deps.Host.Scheduler().CurrentTick(),
		Kind:     kind,
		ShopID:   sk.id,
		ShopUUID: sk.uid.String(),
		ShopType: string(sk.typ),
		Detail:   detail,
	})
}
