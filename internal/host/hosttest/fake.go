// Package hosttest provides an in-memory host engine for tests and the
// standalone demo server. The test goroutine plays the role of the logic
// thread: Tick advances time and drains marshalled work.
package hosttest

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
)

type Fake struct {
	worlds  map[string]*FakeWorld
	players map[uuid.UUID]*FakePlayer

	sched *FakeScheduler

	containers map[string]map[host.Vec3i]bool
	directory  *FakeDirectory

	chunkLoad    []func(string, host.ChunkKey)
	chunkUnload  []func(string, host.ChunkKey)
	playerJoin   []func(host.Player)
	playerQuit   []func(host.Player)
	windowClosed []func(host.Player)
}

func New() *Fake {
	return &Fake{
		worlds:     map[string]*FakeWorld{},
		players:    map[uuid.UUID]*FakePlayer{},
		sched:      newScheduler(),
		containers: map[string]map[host.Vec3i]bool{},
		directory:  &FakeDirectory{Names: map[uuid.UUID]string{}, Seen: map[uuid.UUID]time.Time{}},
	}
}

func (f *Fake) World(name string) host.World {
	w, ok := f.worlds[name]
	if !ok {
		return nil
	}
	return w
}

func (f *Fake) AddWorld(name string) *FakeWorld {
	w := &FakeWorld{
		fake:    f,
		name:    name,
		blocks:  map[host.Vec3i]string{},
		signs:   map[host.Vec3i][]string{},
		chests:  map[host.Vec3i]*FakeContainer{},
		loaded:  map[host.ChunkKey]bool{},
		nextEnt: 1,
	}
	f.worlds[name] = w
	return w
}

func (f *Fake) OnlinePlayers() []host.Player {
	out := make([]host.Player, 0, len(f.players))
	for _, p := range f.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (f *Fake) PlayerByID(id uuid.UUID) (host.Player, bool) {
	p, ok := f.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

func (f *Fake) Scheduler() host.Scheduler { return f.sched }
func (f *Fake) Containers() host.ProtectedContainers { return (*fakeContainers)(f) }
func (f *Fake) Directory() host.PlayerDirectory { return f.directory }
func (f *Fake) FakeDirectory() *FakeDirectory { return f.directory }
func (f *Fake) OnChunkLoad(fn func(string, host.ChunkKey)) {
	f.chunkLoad = append(f.chunkLoad, fn)
}
func (f *Fake) OnChunkUnload(fn func(string, host.ChunkKey)) {
	f.chunkUnload = append(f.chunkUnload, fn)
}
func (f *Fake) OnPlayerJoin(fn func(host.Player)) { f.playerJoin = append(f.playerJoin, fn) }
func (f *Fake) OnPlayerQuit(fn func(host.Player)) { f.playerQuit = append(f.playerQuit, fn) }
func (f *Fake) OnWindowClosed(fn func(host.Player)) { f.windowClosed = append(f.windowClosed, fn) }

// Join adds an online player and fires the join event.
func (f *Fake) Join(id uuid.UUID, name, world string) *FakePlayer {
	p := &FakePlayer{fake: f, id: id, name: name, world: world}
	f.players[id] = p
	f.directory.Names[id] = name
	for _, fn := range f.playerJoin {
		fn(p)
	}
	return p
}

func (f *Fake) Quit(id uuid.UUID) {
	p, ok := f.players[id]
	if !ok {
		return
	}
	delete(f.players, id)
	f.directory.Seen[id] = time.Now()
	for _, fn := range f.playerQuit {
		fn(p)
	}
}

// Tick advances n ticks, running due scheduled tasks and draining marshalled
// logic-thread work after each tick.
func (f *Fake) Tick(n int) {
	for i := 0; i < n; i++ {
		f.sched.step()
	}
}

// Drain runs queued logic-thread work without advancing time.
func (f *Fake) Drain() { f.sched.drain() }

func (f *Fake) IsProtected(world string, pos host.Vec3i) bool {
	return f.containers[world][pos]
}

type fakeContainers Fake

func (c *fakeContainers) Protect(world string, pos host.Vec3i) {
	m := c.containers[world]
	if m == nil {
		m = map[host.Vec3i]bool{}
		c.containers[world] = m
	}
	m[pos] = true
}

func (c *fakeContainers) Unprotect(world string, pos host.Vec3i) {
	delete(c.containers[world], pos)
}

type FakeDirectory struct {
	Names map[uuid.UUID]string
	Seen  map[uuid.UUID]time.Time
}

func (d *FakeDirectory) LookupNames(ids []uuid.UUID) map[uuid.UUID]string {
	out := map[uuid.UUID]string{}
	for _, id := range ids {
		if n, ok := d.Names[id]; ok {
			out[id] = n
		}
	}
	return out
}

func (d *FakeDirectory) LastSeen(id uuid.UUID) (time.Time, bool) {
	t, ok := d.Seen[id]
	return t, ok
}

type FakeWorld struct {
	fake   *Fake
	name   string
	blocks map[host.Vec3i]string
	signs  map[host.Vec3i][]string
	chests map[host.Vec3i]*FakeContainer
	loaded map[host.ChunkKey]bool

	entities []*FakeEntity
	nextEnt  int
}

func (w *FakeWorld) Name() string { return w.name }

func (w *FakeWorld) IsChunkLoaded(ck host.ChunkKey) bool { return w.loaded[ck] }

func (w *FakeWorld) LoadedChunks() []host.ChunkKey {
	out := make([]host.ChunkKey, 0, len(w.loaded))
	for ck := range w.loaded {
		out = append(out, ck)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CX != out[j].CX {
			return out[i].CX < out[j].CX
		}
		return out[i].CZ < out[j].CZ
	})
	return out
}

func (w *FakeWorld) LoadChunk(ck host.ChunkKey) {
	if w.loaded[ck] {
		return
	}
	w.loaded[ck] = true
	for _, fn := range w.fake.chunkLoad {
		fn(w.name, ck)
	}
}

func (w *FakeWorld) UnloadChunk(ck host.ChunkKey) {
	if !w.loaded[ck] {
		return
	}
	delete(w.loaded, ck)
	for _, fn := range w.fake.chunkUnload {
		fn(w.name, ck)
	}
}

func (w *FakeWorld) SetBlock(pos host.Vec3i, name string) {
	if name == "" {
		delete(w.blocks, pos)
		return
	}
	w.blocks[pos] = name
}

func (w *FakeWorld) BlockAt(pos host.Vec3i) string { return w.blocks[pos] }

func (w *FakeWorld) ContainerAt(pos host.Vec3i) (host.Container, bool) {
	if w.blocks[pos] != "CHEST" {
		return nil, false
	}
	inv := w.chests[pos]
	if inv == nil {
		inv = &FakeContainer{items: map[string]int{}}
		w.chests[pos] = inv
	}
	return inv, true
}

// PlaceChest sets a chest block at pos and returns its inventory.
func (w *FakeWorld) PlaceChest(pos host.Vec3i) *FakeContainer {
	w.blocks[pos] = "CHEST"
	c, _ := w.ContainerAt(pos)
	return c.(*FakeContainer)
}

type FakeContainer struct {
	items map[string]int
}

func (c *FakeContainer) Count(item string) int { return c.items[item] }

func (c *FakeContainer) All() map[string]int {
	out := map[string]int{}
	for k, v := range c.items {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

func (c *FakeContainer) Add(item string, n int) int {
	if n <= 0 {
		return 0
	}
	c.items[item] += n
	return 0
}

func (c *FakeContainer) Remove(item string, n int) int {
	if n <= 0 {
		return 0
	}
	have := c.items[item]
	if have <= 0 {
		return 0
	}
	take := n
	if take > have {
		take = have
	}
	c.items[item] = have - take
	if c.items[item] == 0 {
		delete(c.items, item)
	}
	return take
}

func (w *FakeWorld) GroundDistance(x, y, z float64, maxProbe float64) float64 {
	bx, bz := int(math.Floor(x)), int(math.Floor(z))
	for by := int(math.Floor(y)) - 1; float64(by) >= y-maxProbe-1; by-- {
		if w.blocks[host.Vec3i{X: bx, Y: by, Z: bz}] != "" {
			d := y - float64(by+1)
			if d < 0 {
				return 0
			}
			if d > maxProbe {
				return maxProbe
			}
			return d
		}
	}
	return maxProbe
}

func (w *FakeWorld) SpawnEntity(kind string, pos host.Vec3i) (host.Entity, error) {
	if !w.loaded[host.ChunkAt(pos)] {
		return nil, fmt.Errorf("spawn %s: chunk %v not loaded", kind, host.ChunkAt(pos))
	}
	e := &FakeEntity{
		id:    uuid.New(),
		kind:  kind,
		valid: true,
		x:     float64(pos.X) + 0.5,
		y:     float64(pos.Y),
		z:     float64(pos.Z) + 0.5,
	}
	w.nextEnt++
	w.entities = append(w.entities, e)
	return e, nil
}

func (w *FakeWorld) Entities() []*FakeEntity {
	out := make([]*FakeEntity, 0, len(w.entities))
	for _, e := range w.entities {
		if e.valid {
			out = append(out, e)
		}
	}
	return out
}

func (w *FakeWorld) PlaceSign(pos host.Vec3i, lines []string) error {
	if !w.loaded[host.ChunkAt(pos)] {
		return fmt.Errorf("place sign: chunk %v not loaded", host.ChunkAt(pos))
	}
	w.signs[pos] = lines
	w.blocks[pos] = "SIGN"
	return nil
}

func (w *FakeWorld) RemoveSign(pos host.Vec3i) {
	delete(w.signs, pos)
	if w.blocks[pos] == "SIGN" {
		delete(w.blocks, pos)
	}
}

func (w *FakeWorld) SignAt(pos host.Vec3i) []string { return w.signs[pos] }

type FakeEntity struct {
	id      uuid.UUID
	kind    string
	valid   bool
	name    string
	x, y, z float64

	lookX, lookY, lookZ float64
	looked              bool
}

func (e *FakeEntity) ID() uuid.UUID { return e.id }
func (e *FakeEntity) Kind() string { return e.kind }
func (e *FakeEntity) Valid() bool { return e.valid }

func (e *FakeEntity) Pos() (float64, float64, float64) { return e.x, e.y, e.z }
func (e *FakeEntity) SetPos(x, y, z float64) { e.x, e.y, e.z = x, y, z }

func (e *FakeEntity) LookAt(x, y, z float64) {
	e.lookX, e.lookY, e.lookZ = x, y, z
	e.looked = true
}

// Looked reports whether LookAt was called since the last reset.
func (e *FakeEntity) Looked() bool { return e.looked }
func (e *FakeEntity) ResetLooked() { e.looked = false }

func (e *FakeEntity) Chunk() host.ChunkKey {
	return host.ChunkAt(host.Vec3i{X: int(math.Floor(e.x)), Z: int(math.Floor(e.z))})
}

func (e *FakeEntity) SetName(name string) { e.name = name }
func (e *FakeEntity) Name() string { return e.name }
func (e *FakeEntity) Remove() { e.valid = false }

type FakePlayer struct {
	fake  *Fake
	id    uuid.UUID
	name  string
	world string
	chunk host.ChunkKey

	perms    map[string]bool
	allPerms bool

	windowTitle string
	windowOpen  bool

	inv *FakeContainer

	Messages []string
}

func (p *FakePlayer) Inventory() host.Container {
	if p.inv == nil {
		p.inv = &FakeContainer{items: map[string]int{}}
	}
	return p.inv
}

func (p *FakePlayer) Give(item string, n int) { p.Inventory().Add(item, n) }

func (p *FakePlayer) ID() uuid.UUID { return p.id }
func (p *FakePlayer) Name() string { return p.name }
func (p *FakePlayer) WorldName() string { return p.world }

func (p *FakePlayer) Chunk() host.ChunkKey { return p.chunk }
func (p *FakePlayer) MoveTo(ck host.ChunkKey) { p.chunk = ck }

func (p *FakePlayer) Pos() (float64, float64, float64) {
	return float64(p.chunk.CX*16 + 8), 0, float64(p.chunk.CZ*16 + 8)
}
func (p *FakePlayer) SendMessage(msg string) { p.Messages = append(p.Messages, msg) }
func (p *FakePlayer) GrantAll() { p.allPerms = true }
func (p *FakePlayer) Grant(perm string) {
	if p.perms == nil {
		p.perms = map[string]bool{}
	}
	p.perms[perm] = true
}

func (p *FakePlayer) HasPermission(perm string) bool {
	return p.allPerms || p.perms[perm]
}

func (p *FakePlayer) OpenWindow(title string, slots int) bool {
	if p.windowOpen {
		// The engine closes the previous window first.
		p.windowOpen = false
		for _, fn := range p.fake.windowClosed {
			fn(p)
		}
	}
	p.windowTitle = title
	p.windowOpen = true
	return true
}

func (p *FakePlayer) CloseWindow() {
	if !p.windowOpen {
		return
	}
	p.windowOpen = false
	for _, fn := range p.fake.windowClosed {
		fn(p)
	}
}

func (p *FakePlayer) HasWindowOpen() bool { return p.windowOpen }
func (p *FakePlayer) WindowTitle() string { return p.windowTitle }

// FakeScheduler's marshalling queue is guarded so RunOnLogicThread may be
// called from other goroutines (the admin transport does); everything else
// is logic-thread only.
type FakeScheduler struct {
	tick  uint64
	mu    sync.Mutex
	queue []func()
	tasks []*fakeTask
}

func newScheduler() *FakeScheduler { return &FakeScheduler{} }

type fakeTask struct {
	sched     *FakeScheduler
	runAt     uint64
	period    int
	fn        func()
	cancelled bool
}

func (t *fakeTask) Cancel() { t.cancelled = true }

func (s *FakeScheduler) CurrentTick() uint64 { return s.tick }

func (s *FakeScheduler) RunOnLogicThread(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
}

func (s *FakeScheduler) RunLater(delayTicks int, fn func()) host.Task {
	t := &fakeTask{sched: s, runAt: s.tick + uint64(delayTicks), fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

func (s *FakeScheduler) RunRepeating(delayTicks, periodTicks int, fn func()) host.Task {
	t := &fakeTask{sched: s, runAt: s.tick + uint64(delayTicks), period: periodTicks, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

// RunAsync executes inline; the fake has no real worker pool. Results handed
// back via RunOnLogicThread still wait for the next drain, preserving the
// marshalling order the plugin relies on.
func (s *FakeScheduler) RunAsync(fn func()) { fn() }

func (s *FakeScheduler) step() {
	s.tick++
	live := s.tasks[:0]
	due := []*fakeTask{}
	for _, t := range s.tasks {
		if t.cancelled {
			continue
		}
		if t.runAt <= s.tick {
			due = append(due, t)
			if t.period > 0 {
				t.runAt = s.tick + uint64(t.period)
				live = append(live, t)
			}
		} else {
			live = append(live, t)
		}
	}
	s.tasks = live
	for _, t := range due {
		if !t.cancelled {
			t.fn()
		}
	}
	s.drain()
}

func (s *FakeScheduler) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		fn()
	}
}
