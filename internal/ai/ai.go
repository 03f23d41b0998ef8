// Package ai drives gravity and look-at-player behavior for shop entities,
// replacing the engine's default entity AI. Entities are bucketed by their
// initial chunk (shop entities are not expected to move); a bucket is only
// ticked while an online player is within a configurable chunk radius.
package ai

import (
	"errors"
	"math/rand"

	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
)

// Defaults applied by New for unset cadence settings, matching a 20Hz
// server.
const (
	DefaultActivationTicks   = 20
	DefaultGravityCheckTicks = 10
)

// Config holds the scheduler's cadence and range settings.
type Config struct {
	// ActivationTicks is how often chunk activations get rechecked.
	ActivationTicks int
	// AIChunkRange limits look-at ticking to chunks this close to an
	// online player. The behavior only targets players in a 12 block
	// radius, so the direct neighbor chunks suffice.
	AIChunkRange int
	// GravityChunkRange is the activation radius for gravity; a negative
	// value disables gravity entirely.
	GravityChunkRange int
	// GravityCheckTicks is the interval between falling checks for a
	// standing entity.
	GravityCheckTicks int
}

// Entities don't fall if their distance-to-ground is below this threshold.
const distanceToGroundThreshold = 0.01

// Max falling speed. Entities spawn 0.5 above the ground, so most falls
// finish in a single step, landing exactly on the surface.
const maxFallingDistancePerTick = 0.5

// Slightly larger than the per-tick step so the end of a fall is detected
// without a second collision check next tick.
const gravityCollisionCheckRange = maxFallingDistancePerTick + 0.1

// ErrTickInProgress is returned for structural changes attempted while the
// scheduler's tick is executing.
var ErrTickInProgress = errors.New("ai: tracked set is locked during tick")

type chunkBucket struct {
	world host.World
	chunk host.ChunkKey

	entityCount int

	// AI starts active for fast initial reactions in case players are
	// already nearby; gravity waits for the first activation sweep.
	activeAI      bool
	activeGravity bool
}

type entityData struct {
	entity host.Entity
	bucket *chunkBucket

	// Random initial delay to spread falling checks across ticks.
	skipFallingCheckTicks int
	falling               bool
	distanceToGround      float64
}

type worldChunk struct {
	world string
	chunk host.ChunkKey
}

// Scheduler is the periodic AI/gravity driver. All methods must be called
// from the logic thread.
type Scheduler struct {
	host host.Host

	cfg            Config
	gravityEnabled bool

	entities map[uuid.UUID]*entityData
	buckets  map[worldChunk]*chunkBucket

	task        host.Task
	running     bool
	tickCounter int

	activeAIChunks        int
	activeAIEntities      int
	activeGravityChunks   int
	activeGravityEntities int

	totalTimings      Timings
	activationTimings Timings
	gravityTimings    Timings
	aiTimings         Timings

	rand *rand.Rand
}

func New(h host.Host, cfg Config) *Scheduler {
	if cfg.ActivationTicks <= 0 {
		cfg.ActivationTicks = DefaultActivationTicks
	}
	if cfg.GravityCheckTicks <= 0 {
		cfg.GravityCheckTicks = DefaultGravityCheckTicks
	}
	if cfg.AIChunkRange < 0 {
		cfg.AIChunkRange = 0
	}
	return &Scheduler{
		host:           h,
		cfg:            cfg,
		gravityEnabled: cfg.GravityChunkRange >= 0,
		entities:       map[uuid.UUID]*entityData{},
		buckets:        map[worldChunk]*chunkBucket{},
		rand:           rand.New(rand.NewSource(1)),
	}
}

func (s *Scheduler) Active() bool { return s.task != nil }

// Add starts tracking an entity, lazily starting the tick task. Rejected
// while a tick is in progress.
func (s *Scheduler) Add(w host.World, e host.Entity) error {
	if s.running {
		return ErrTickInProgress
	}
	if _, ok := s.entities[e.ID()]; ok {
		return nil
	}
	key := worldChunk{world: w.Name(), chunk: e.Chunk()}
	bucket := s.buckets[key]
	if bucket == nil {
		bucket = &chunkBucket{world: w, chunk: key.chunk, activeAI: true}
		s.buckets[key] = bucket
	}
	bucket.entityCount++
	s.entities[e.ID()] = &entityData{
		entity:                e,
		bucket:                bucket,
		skipFallingCheckTicks: s.rand.Intn(s.cfg.GravityCheckTicks),
	}
	s.start()
	return nil
}

// Remove stops tracking an entity. Rejected while a tick is in progress.
func (s *Scheduler) Remove(e host.Entity) error {
	if s.running {
		return ErrTickInProgress
	}
	data, ok := s.entities[e.ID()]
	if !ok {
		return nil
	}
	delete(s.entities, e.ID())
	s.dropFromBucket(data)
	return nil
}

func (s *Scheduler) dropFromBucket(data *entityData) {
	b := data.bucket
	b.entityCount--
	if b.entityCount <= 0 {
		delete(s.buckets, worldChunk{world: b.world.Name(), chunk: b.chunk})
	}
}

func (s *Scheduler) EntityCount() int { return len(s.entities) }

func (s *Scheduler) ActiveAIChunks() int { return s.activeAIChunks }
func (s *Scheduler) ActiveAIEntities() int { return s.activeAIEntities }
func (s *Scheduler) ActiveGravityChunks() int { return s.activeGravityChunks }
func (s *Scheduler) ActiveGravityEntities() int { return s.activeGravityEntities }

func (s *Scheduler) TotalTimings() *Timings { return &s.totalTimings }
func (s *Scheduler) ActivationTimings() *Timings { return &s.activationTimings }
func (s *Scheduler) GravityTimings() *Timings { return &s.gravityTimings }
func (s *Scheduler) AITimings() *Timings { return &s.aiTimings }

func (s *Scheduler) start() {
	if s.task != nil {
		return
	}
	s.task = s.host.Scheduler().RunRepeating(1, 1, s.tick)
}

// Stop cancels the tick task and resets statistics.
func (s *Scheduler) Stop() {
	if s.task == nil {
		return
	}
	s.task.Cancel()
	s.task = nil
	s.resetStatistics()
}

// Reset drops all tracked entities and stops the task.
func (s *Scheduler) Reset() {
	if s.running {
		return
	}
	s.entities = map[uuid.UUID]*entityData{}
	s.buckets = map[worldChunk]*chunkBucket{}
	s.Stop()
}

func (s *Scheduler) resetStatistics() {
	s.totalTimings.Reset()
	s.activationTimings.Reset()
	s.gravityTimings.Reset()
	s.aiTimings.Reset()
}

func (s *Scheduler) tick() {
	s.running = true
	s.tickCounter++

	s.totalTimings.Start()
	s.gravityTimings.StartPaused()
	s.aiTimings.StartPaused()

	if s.tickCounter%s.cfg.ActivationTicks == 0 {
		s.activation()
	}

	s.activeAIEntities = 0
	s.activeGravityEntities = 0
	for id, data := range s.entities {
		e := data.entity
		if !e.Valid() || !data.bucket.world.IsChunkLoaded(e.Chunk()) {
			delete(s.entities, id)
			s.dropFromBucket(data)
			continue
		}

		s.gravityTimings.Resume()
		if data.bucket.activeGravity {
			s.activeGravityEntities++
			// Check periodically, or every tick while already falling.
			data.skipFallingCheckTicks--
			if data.skipFallingCheckTicks <= 0 || data.falling {
				x, y, z := e.Pos()
				data.distanceToGround = data.bucket.world.GroundDistance(x, y, z, gravityCollisionCheckRange)
				data.falling = data.distanceToGround >= distanceToGroundThreshold
				if data.falling {
					s.handleFalling(data)
				}
				data.skipFallingCheckTicks = s.cfg.GravityCheckTicks
			}
		}
		s.gravityTimings.Pause()

		s.aiTimings.Resume()
		if data.bucket.activeAI {
			s.activeAIEntities++
			// Look-at-player is suspended while falling.
			if !data.falling {
				s.handleLookAt(data.bucket.world.Name(), e)
			}
		}
		s.aiTimings.Pause()
	}

	if len(s.entities) == 0 {
		s.running = false
		s.Stop()
		return
	}

	s.totalTimings.StopMeasure()
	s.gravityTimings.StopMeasure()
	s.aiTimings.StopMeasure()
	s.running = false
}

// activation recomputes which chunk buckets are near online players.
func (s *Scheduler) activation() {
	s.activationTimings.Start()
	defer s.activationTimings.StopMeasure()

	for _, b := range s.buckets {
		b.activeAI = false
		b.activeGravity = false
	}
	s.activeAIChunks = 0
	s.activeGravityChunks = 0

	gravityRange := s.cfg.GravityChunkRange
	if gravityRange < 0 {
		gravityRange = 0
	}
	for _, p := range s.host.OnlinePlayers() {
		center := p.Chunk()
		world := p.WorldName()
		for key, b := range s.buckets {
			if key.world != world {
				continue
			}
			d := center.Chebyshev(key.chunk)
			if d <= s.cfg.AIChunkRange && !b.activeAI {
				b.activeAI = true
				s.activeAIChunks++
			}
			if s.gravityEnabled && d <= gravityRange && !b.activeGravity {
				b.activeGravity = true
				s.activeGravityChunks++
			}
		}
	}
}

// handleFalling moves the entity down by at most the per-tick step, clamping
// the final step to land exactly on the surface.
func (s *Scheduler) handleFalling(data *entityData) {
	var step float64
	remaining := data.distanceToGround - maxFallingDistancePerTick
	if remaining <= distanceToGroundThreshold {
		// Nearly there: position the entity exactly on the ground.
		step = data.distanceToGround
		data.falling = false
	} else {
		step = maxFallingDistancePerTick
	}
	x, y, z := data.entity.Pos()
	data.entity.SetPos(x, y-step, z)
}

// handleLookAt turns the entity towards the nearest online player in its
// world.
func (s *Scheduler) handleLookAt(world string, e host.Entity) {
	ex, _, ez := e.Pos()
	var best host.Player
	bestDist := 0.0
	for _, p := range s.host.OnlinePlayers() {
		if p.WorldName() != world {
			continue
		}
		px, _, pz := p.Pos()
		d := (px-ex)*(px-ex) + (pz-ez)*(pz-ez)
		if best == nil || d < bestDist {
			best = p
			bestDist = d
		}
	}
	if best == nil {
		return
	}
	px, py, pz := best.Pos()
	e.LookAt(px, py, pz)
}
