package ui

import (
	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
)

// Phase splits interaction dispatch into an early pass (before the engine
// applies the event) and a late pass (after). The engine calls both for every
// click/drag; collaborators handling the early pass may synthesize further
// interaction events, so late dispatch must pop the frame pushed by its own
// early dispatch rather than consult the (possibly changed) session map.
type Phase int

const (
	PhaseEarly Phase = iota
	PhaseLate
)

type ClickEvent struct {
	Slot       int
	RightClick bool
	Cursor     host.ItemStack
	Cancelled  bool
}

type DragEvent struct {
	Slots     []int
	Cancelled bool
}

type dispatchFrame struct {
	player  uuid.UUID
	session *Session
}

// ClickEarly routes the early phase of a click and pushes a dispatch frame
// for the matching late phase.
func (r *Registry) ClickEarly(p host.Player, ev *ClickEvent) {
	s := r.sessions[p.ID()]
	r.clickStack = append(r.clickStack, dispatchFrame{player: p.ID(), session: s})
	if s != nil {
		s.Handler.HandleClick(s, ev, PhaseEarly)
	}
}

// ClickLate pops the frame pushed by the matching ClickEarly. Using the stack
// instead of the session map keeps reentrant events (a handler causing the
// engine to emit another click during early dispatch) attributed to the
// handler instance that saw their early phase.
func (r *Registry) ClickLate(p host.Player, ev *ClickEvent) {
	n := len(r.clickStack) - 1
	if n < 0 {
		return
	}
	f := r.clickStack[n]
	r.clickStack = r.clickStack[:n]
	if f.session != nil && f.session.Shopkeeper.Valid() {
		f.session.Handler.HandleClick(f.session, ev, PhaseLate)
	}
}

func (r *Registry) DragEarly(p host.Player, ev *DragEvent) {
	s := r.sessions[p.ID()]
	r.dragStack = append(r.dragStack, dispatchFrame{player: p.ID(), session: s})
	if s != nil {
		s.Handler.HandleDrag(s, ev, PhaseEarly)
	}
}

func (r *Registry) DragLate(p host.Player, ev *DragEvent) {
	n := len(r.dragStack) - 1
	if n < 0 {
		return
	}
	f := r.dragStack[n]
	r.dragStack = r.dragStack[:n]
	if f.session != nil && f.session.Shopkeeper.Valid() {
		f.session.Handler.HandleDrag(f.session, ev, PhaseLate)
	}
}
