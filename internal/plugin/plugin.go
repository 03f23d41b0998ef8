// Package plugin wires the shopkeeper subsystem into a host engine:
// enable/disable/reload, event subscriptions, the startup extensibility
// hook, owner-name reconciliation and the owner-inactivity sweep.
package plugin

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"shopcraft.gg/internal/ai"
	"shopcraft.gg/internal/commands"
	"shopcraft.gg/internal/host"
	"shopcraft.gg/internal/persistence"
	"shopcraft.gg/internal/shop"
	"shopcraft.gg/internal/tuning"
	"shopcraft.gg/internal/ui"
)

// StartupHook runs after default types are registered and before shops are
// loaded, letting collaborators register additional shop/object/UI types.
type StartupHook func(p *Plugin)

type Plugin struct {
	host host.Host
	log  *log.Logger
	cfg  tuning.Tuning

	UI            *ui.Registry
	Registry      *shop.Registry
	Store         *persistence.Store
	AI            *ai.Scheduler
	Confirmations *commands.Confirmations
	Remove        *commands.RemoveCommand

	audit shop.Audit

	startupHooks []StartupHook
	enabled      bool
	subscribed   bool
}

func New(h host.Host, cfg tuning.Tuning, logger *log.Logger, audit shop.Audit) *Plugin {
	return &Plugin{host: h, cfg: cfg, log: logger, audit: audit}
}

// OnStartup registers a hook fired during Enable, after defaults and before
// loading.
func (p *Plugin) OnStartup(fn StartupHook) { p.startupHooks = append(p.startupHooks, fn) }

func (p *Plugin) Enabled() bool { return p.enabled }

func (p *Plugin) Host() host.Host { return p.host }

// Enable builds the subsystem and loads persisted shops. A storage-wide read
// failure aborts enabling entirely; enabling over unreadable data could
// overwrite it on the next save.
func (p *Plugin) Enable() error {
	if p.enabled {
		return nil
	}
	sched := p.host.Scheduler()

	p.UI = ui.NewRegistry(sched, p.log)
	p.AI = ai.New(p.host, ai.Config{
		ActivationTicks:   p.cfg.AI.ActivationTicks,
		AIChunkRange:      p.cfg.AI.AIChunkRange,
		GravityChunkRange: p.cfg.AI.GravityChunkRange,
		GravityCheckTicks: p.cfg.AI.GravityCheckTicks,
	})
	p.Registry = shop.NewRegistry(shop.Deps{
		Host:       p.host,
		Log:        p.log,
		UI:         p.UI,
		AI:         p.AI,
		Currency:   p.cfg.Currency,
		Containers: p.host.Containers(),
		Audit:      p.audit,
		OnDirty:    func() { p.Store.RequestSave() },
	})
	p.Store = persistence.NewStore(p.cfg.SaveFile, p.cfg.SaveDelayTicks, sched, p.Registry, p.log)
	p.Confirmations = commands.NewConfirmations(sched, p.cfg.ConfirmationExpiryTicks)
	p.Remove = commands.NewRemoveCommand(p.Registry, p.Confirmations)

	// Defaults are in place; let collaborators extend before loading.
	for _, hook := range p.startupHooks {
		hook(p)
	}

	loaded, failed, err := p.Store.Load()
	if err != nil {
		return fmt.Errorf("enable: %w", err)
	}
	if failed > 0 {
		p.log.Printf("loaded %d shopkeepers (%d records skipped)", loaded, failed)
	} else if loaded > 0 {
		p.log.Printf("loaded %d shopkeepers", loaded)
	}

	p.subscribe()
	p.enabled = true

	p.Registry.ActivateAllLoadedChunks()
	p.Registry.StartTasks(p.cfg.ContainerCheckTicks)
	p.ReconcileOwnerNames()
	return nil
}

// subscribe installs host event callbacks once; they check the enabled flag
// so a disabled plugin ignores events.
func (p *Plugin) subscribe() {
	if p.subscribed {
		return
	}
	p.subscribed = true

	p.host.OnChunkLoad(func(world string, ck host.ChunkKey) {
		if p.enabled {
			p.Registry.ActivateChunk(world, ck)
		}
	})
	p.host.OnChunkUnload(func(world string, ck host.ChunkKey) {
		if p.enabled {
			p.Registry.DeactivateChunk(world, ck)
		}
	})
	p.host.OnWindowClosed(func(pl host.Player) {
		if p.enabled {
			p.UI.OnWindowClosed(pl)
		}
	})
	p.host.OnPlayerJoin(func(pl host.Player) {
		if p.enabled {
			p.onJoin(pl)
		}
	})
	p.host.OnPlayerQuit(func(pl host.Player) {
		if p.enabled {
			p.UI.OnPlayerQuit(pl)
			p.Confirmations.Clear(pl.ID().String())
		}
	})
}

// Disable tears the subsystem down: sessions closed, representations
// despawned, scheduled work cancelled, and a final synchronous save once
// background work has drained.
func (p *Plugin) Disable() {
	if !p.enabled {
		return
	}
	p.enabled = false

	p.UI.CloseAllSessions()
	p.Confirmations.ClearAll()
	p.Registry.StopTasks()
	p.Registry.DeactivateAll()
	p.AI.Stop()

	timeout := time.Duration(p.cfg.ShutdownTimeoutMs) * time.Millisecond
	if !p.Store.WaitBackground(timeout) {
		p.log.Printf("disable: background save did not finish within %s", timeout)
	}
	if err := p.Store.SaveImmediateIfDirty(); err != nil {
		p.log.Printf("disable: %v", err)
	}
}

func (p *Plugin) Reload() error {
	p.Disable()
	return p.Enable()
}

// onJoin reconciles the cached owner name on the joining player's shops.
func (p *Plugin) onJoin(pl host.Player) {
	for _, sk := range p.Registry.ByOwner(pl.ID()) {
		if ps := sk.PlayerShop(); ps != nil && ps.OwnerName != pl.Name() {
			sk.SetOwner(pl.ID(), pl.Name())
		}
	}
}

// ReconcileOwnerNames refreshes every player shop's cached owner name from
// the player directory. The directory lookup runs on the background worker;
// the mutation is marshalled back to the logic thread and dirties the store
// once per batch, not once per shop.
func (p *Plugin) ReconcileOwnerNames() {
	owners := map[uuid.UUID]bool{}
	for _, sk := range p.Registry.All() {
		if ps := sk.PlayerShop(); ps != nil {
			owners[ps.OwnerID] = true
		}
	}
	if len(owners) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, len(owners))
	for id := range owners {
		ids = append(ids, id)
	}

	sched := p.host.Scheduler()
	dir := p.host.Directory()
	sched.RunAsync(func() {
		names := dir.LookupNames(ids)
		sched.RunOnLogicThread(func() {
			if !p.enabled {
				return
			}
			for _, sk := range p.Registry.All() {
				ps := sk.PlayerShop()
				if ps == nil {
					continue
				}
				if name, ok := names[ps.OwnerID]; ok && name != ps.OwnerName {
					sk.SetOwner(ps.OwnerID, name)
				}
			}
		})
	})
}

// SweepInactiveOwners removes player shops whose owner has not been seen for
// longer than maxInactivity. Last-seen lookups run on the background worker.
func (p *Plugin) SweepInactiveOwners(maxInactivity time.Duration) {
	if maxInactivity <= 0 {
		return
	}
	owners := map[uuid.UUID]bool{}
	online := map[uuid.UUID]bool{}
	for _, pl := range p.host.OnlinePlayers() {
		online[pl.ID()] = true
	}
	for _, sk := range p.Registry.All() {
		if ps := sk.PlayerShop(); ps != nil && !online[ps.OwnerID] {
			owners[ps.OwnerID] = true
		}
	}
	if len(owners) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, len(owners))
	for id := range owners {
		ids = append(ids, id)
	}

	sched := p.host.Scheduler()
	dir := p.host.Directory()
	sched.RunAsync(func() {
		cutoff := time.Now().Add(-maxInactivity)
		inactive := map[uuid.UUID]bool{}
		for _, id := range ids {
			if seen, ok := dir.LastSeen(id); ok && seen.Before(cutoff) {
				inactive[id] = true
			}
		}
		if len(inactive) == 0 {
			return
		}
		sched.RunOnLogicThread(func() {
			if !p.enabled {
				return
			}
			removed := 0
			for _, sk := range p.Registry.All() {
				if ps := sk.PlayerShop(); ps != nil && inactive[ps.OwnerID] {
					p.Registry.Delete(sk)
					removed++
				}
			}
			if removed > 0 {
				p.log.Printf("removed %d shops of inactive owners", removed)
			}
		})
	})
}
