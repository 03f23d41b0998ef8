// Package host defines the boundary to the game engine the plugin is embedded
// in. Everything here is implemented by the engine (or by hosttest in tests);
// the plugin only calls through these interfaces and never reaches into engine
// internals.
package host

import (
	"time"

	"github.com/google/uuid"
)

type Vec3i struct {
	X, Y, Z int
}

// ChunkKey identifies a 16x16 column of blocks within one world.
type ChunkKey struct {
	CX, CZ int
}

func ChunkAt(pos Vec3i) ChunkKey {
	return ChunkKey{CX: pos.X >> 4, CZ: pos.Z >> 4}
}

// Chebyshev reports the chessboard distance between two chunk keys.
func (k ChunkKey) Chebyshev(o ChunkKey) int {
	dx := k.CX - o.CX
	if dx < 0 {
		dx = -dx
	}
	dz := k.CZ - o.CZ
	if dz < 0 {
		dz = -dz
	}
	if dx > dz {
		return dx
	}
	return dz
}

// ItemStack is a typed amount of one item. Counts are always positive in
// valid stacks.
type ItemStack struct {
	Item  string `json:"item" yaml:"item"`
	Count int    `json:"count" yaml:"count"`
}

// Container is the mutable inventory of a container block (chest). All
// methods must be called from the logic thread.
type Container interface {
	Count(item string) int
	All() map[string]int
	// Add inserts up to n of item and returns how many did not fit.
	Add(item string, n int) int
	// Remove takes up to n of item and returns how many were actually taken.
	Remove(item string, n int) int
}

// World is a loaded game world. All methods must be called from the logic
// thread.
type World interface {
	Name() string
	IsChunkLoaded(ck ChunkKey) bool
	LoadedChunks() []ChunkKey

	// BlockAt returns the block name at pos, or "" for air.
	BlockAt(pos Vec3i) string

	// ContainerAt returns the inventory of the container block at pos, if the
	// block there is a container.
	ContainerAt(pos Vec3i) (Container, bool)

	// GroundDistance measures the vertical gap between y and the nearest
	// collidable surface below (x,z), probing at most maxProbe blocks down.
	// Returns maxProbe if no surface was found within range.
	GroundDistance(x, y, z float64, maxProbe float64) float64

	// SpawnEntity spawns a living entity of the given kind. The entity has no
	// default engine AI; the plugin drives it via the ai package.
	SpawnEntity(kind string, pos Vec3i) (Entity, error)

	PlaceSign(pos Vec3i, lines []string) error
	RemoveSign(pos Vec3i)
}

// Entity is a live in-world entity handle. Valid turns false once the engine
// has discarded the entity (world unload, death).
type Entity interface {
	ID() uuid.UUID
	Valid() bool
	Pos() (x, y, z float64)
	SetPos(x, y, z float64)
	LookAt(x, y, z float64)
	Chunk() ChunkKey
	SetName(name string)
	Remove()
}

type Player interface {
	ID() uuid.UUID
	Name() string
	WorldName() string
	Chunk() ChunkKey
	Pos() (x, y, z float64)

	HasPermission(perm string) bool
	SendMessage(msg string)

	// Inventory is the player's own item inventory.
	Inventory() Container

	// OpenWindow opens an inventory window. Opening a window while another is
	// open first closes the old one (firing the window-closed event for it).
	OpenWindow(title string, slots int) bool
	CloseWindow()
	HasWindowOpen() bool
}

// Task is a handle to a scheduled (delayed or repeating) task.
type Task interface {
	Cancel()
}

// Scheduler marshals work onto the engine's single logic thread and onto its
// background worker pool. Plugin state must only be touched from the logic
// thread; background functions hand results back via RunOnLogicThread.
type Scheduler interface {
	RunOnLogicThread(fn func())
	RunLater(delayTicks int, fn func()) Task
	RunRepeating(delayTicks, periodTicks int, fn func()) Task
	RunAsync(fn func())
	CurrentTick() uint64
}

// ProtectedContainers registers container blocks that the engine must shield
// from unauthorized breakage while a shop depends on them.
type ProtectedContainers interface {
	Protect(world string, pos Vec3i)
	Unprotect(world string, pos Vec3i)
}

// PlayerDirectory answers offline-player questions. Lookups may block on
// storage and must be called from a background worker, never the logic thread.
type PlayerDirectory interface {
	LookupNames(ids []uuid.UUID) map[uuid.UUID]string
	LastSeen(id uuid.UUID) (time.Time, bool)
}

// Host bundles the engine services handed to the plugin on enable.
type Host interface {
	World(name string) World
	OnlinePlayers() []Player
	PlayerByID(id uuid.UUID) (Player, bool)

	Scheduler() Scheduler
	Containers() ProtectedContainers
	Directory() PlayerDirectory

	// Event subscriptions. Callbacks run on the logic thread.
	OnChunkLoad(fn func(world string, ck ChunkKey))
	OnChunkUnload(fn func(world string, ck ChunkKey))
	OnPlayerJoin(fn func(p Player))
	OnPlayerQuit(fn func(p Player))
	OnWindowClosed(fn func(p Player))
}
