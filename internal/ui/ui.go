// Package ui implements the interface-session protocol between players and
// shopkeepers. All state is owned by the logic thread; there is exactly one
// session per player at any time.
package ui

import (
	"log"

	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
)

type Type string

const (
	TypeTrading Type = "trading"
	TypeEditor  Type = "editor"
	TypeHiring  Type = "hiring"
)

// Shopkeeper is the slice of a shop record the session protocol needs. The
// shop package implements it; keeping it an interface here avoids an import
// cycle between sessions and shop state.
type Shopkeeper interface {
	UUID() uuid.UUID
	Valid() bool
	UIHandler(t Type) Handler

	// AcceptsUI is temporarily false while CloseAllDelayed runs, so the close
	// events it triggers cannot immediately reopen an interface.
	AcceptsUI() bool
	SetAcceptsUI(v bool)
}

// Handler owns one interface variant (trading/editor/hiring) of one
// shopkeeper.
type Handler interface {
	Type() Type
	CanOpen(p host.Player) bool
	OpenWindow(p host.Player) bool
	OnWindowClosed(s *Session)
	HandleClick(s *Session, ev *ClickEvent, phase Phase)
	HandleDrag(s *Session, ev *DragEvent, phase Phase)
}

// Session ties one online player to one open shopkeeper interface.
type Session struct {
	Player     host.Player
	Shopkeeper Shopkeeper
	Handler    Handler
}

// OpenVeto is consulted before a session opens; returning true cancels the
// open with no state change.
type OpenVeto func(t Type, sk Shopkeeper, p host.Player) bool

type Registry struct {
	sched host.Scheduler
	log   *log.Logger

	sessions map[uuid.UUID]*Session
	vetoes   []OpenVeto

	clickStack []dispatchFrame
	dragStack  []dispatchFrame
}

func NewRegistry(sched host.Scheduler, logger *log.Logger) *Registry {
	return &Registry{
		sched:    sched,
		log:      logger,
		sessions: map[uuid.UUID]*Session{},
	}
}

func (r *Registry) AddOpenVeto(v OpenVeto) { r.vetoes = append(r.vetoes, v) }

// RequestOpen opens the given interface type for the player. Returns false
// with no state change if the shopkeeper has no such handler, rejects the
// player, the identical session is already open, or a veto fires. A different
// prior session is implicitly closed by the engine when the new window opens.
func (r *Registry) RequestOpen(t Type, sk Shopkeeper, p host.Player) bool {
	if sk == nil || !sk.Valid() || !sk.AcceptsUI() {
		return false
	}
	h := sk.UIHandler(t)
	if h == nil {
		return false
	}
	if !h.CanOpen(p) {
		return false
	}
	if cur := r.sessions[p.ID()]; cur != nil && cur.Shopkeeper == sk && cur.Handler == h {
		// Same interface already open.
		return false
	}
	for _, veto := range r.vetoes {
		if veto(t, sk, p) {
			return false
		}
	}
	// Opening the new window makes the engine close any previous one first,
	// which fires OnWindowClosed and clears the old entry. The new entry is
	// installed only after the open succeeded.
	if !h.OpenWindow(p) {
		return false
	}
	r.sessions[p.ID()] = &Session{Player: p, Shopkeeper: sk, Handler: h}
	return true
}

func (r *Registry) Session(p host.Player) *Session { return r.sessions[p.ID()] }

func (r *Registry) OpenType(p host.Player) (Type, bool) {
	s := r.sessions[p.ID()]
	if s == nil {
		return "", false
	}
	return s.Handler.Type(), true
}

// OnWindowClosed removes the player's session. Idempotent.
func (r *Registry) OnWindowClosed(p host.Player) {
	s := r.sessions[p.ID()]
	if s == nil {
		return
	}
	delete(r.sessions, p.ID())
	s.Handler.OnWindowClosed(s)
}

// CloseAll force-closes every session referencing the given shopkeeper and
// returns how many were closed.
func (r *Registry) CloseAll(sk Shopkeeper) int {
	closed := 0
	for id, s := range r.sessions {
		if s.Shopkeeper != sk {
			continue
		}
		closed++
		if s.Player.HasWindowOpen() {
			s.Player.CloseWindow() // fires OnWindowClosed, removing the entry
		} else {
			// Stale session without a window; drop it directly.
			delete(r.sessions, id)
			s.Handler.OnWindowClosed(s)
		}
	}
	return closed
}

// CloseAllDelayed closes the shopkeeper's sessions while suspending its
// UI-acceptance flag, so a collaborator reacting to the close event cannot
// reopen an interface in the same tick. The flag is restored one tick later.
func (r *Registry) CloseAllDelayed(sk Shopkeeper) {
	sk.SetAcceptsUI(false)
	r.CloseAll(sk)
	r.sched.RunLater(1, func() {
		if sk.Valid() {
			sk.SetAcceptsUI(true)
		}
	})
}

// CloseAllSessions tears down every session (plugin disable).
func (r *Registry) CloseAllSessions() {
	for id, s := range r.sessions {
		delete(r.sessions, id)
		if s.Player.HasWindowOpen() {
			s.Player.CloseWindow()
		}
		s.Handler.OnWindowClosed(s)
	}
}

// OnPlayerQuit drops the quitting player's session without touching their
// (already gone) window.
func (r *Registry) OnPlayerQuit(p host.Player) {
	s := r.sessions[p.ID()]
	if s == nil {
		return
	}
	delete(r.sessions, p.ID())
	s.Handler.OnWindowClosed(s)
}

// ValidateSession recovers from an invalid window state: a session whose
// player no longer has the expected window open is forcibly closed.
func (r *Registry) ValidateSession(p host.Player) bool {
	s := r.sessions[p.ID()]
	if s == nil {
		return true
	}
	if !p.HasWindowOpen() {
		if r.log != nil {
			r.log.Printf("ui: session of %s has no open window, closing", p.Name())
		}
		delete(r.sessions, p.ID())
		s.Handler.OnWindowClosed(s)
		return false
	}
	return true
}

func (r *Registry) SessionCount() int { return len(r.sessions) }
