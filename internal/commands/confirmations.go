// Package commands implements the destructive command surface: target
// selection, typed permissions and the expiring confirmation step required
// before irreversible deletions.
package commands

import "shopcraft.gg/internal/host"

// Confirmations tracks at most one pending dangerous action per sender.
// Re-issuing a command replaces the previous pending entry instead of
// accumulating duplicates; unconfirmed entries expire after the configured
// number of ticks.
type Confirmations struct {
	sched       host.Scheduler
	expiryTicks int

	pending map[string]*pendingConfirmation
}

type pendingConfirmation struct {
	action func()
	expiry host.Task
}

func NewConfirmations(sched host.Scheduler, expiryTicks int) *Confirmations {
	return &Confirmations{
		sched:       sched,
		expiryTicks: expiryTicks,
		pending:     map[string]*pendingConfirmation{},
	}
}

// Await stores the action and arms its expiry. onExpire may be nil.
func (c *Confirmations) Await(sender string, action func(), onExpire func()) {
	c.drop(sender)
	p := &pendingConfirmation{action: action}
	p.expiry = c.sched.RunLater(c.expiryTicks, func() {
		if c.pending[sender] != p {
			return
		}
		delete(c.pending, sender)
		if onExpire != nil {
			onExpire()
		}
	})
	c.pending[sender] = p
}

// Confirm runs and clears the sender's pending action. Returns false if
// nothing was awaiting confirmation.
func (c *Confirmations) Confirm(sender string) bool {
	p := c.pending[sender]
	if p == nil {
		return false
	}
	c.drop(sender)
	p.action()
	return true
}

func (c *Confirmations) HasPending(sender string) bool { return c.pending[sender] != nil }

func (c *Confirmations) Clear(sender string) { c.drop(sender) }

func (c *Confirmations) ClearAll() {
	for sender := range c.pending {
		c.drop(sender)
	}
}

func (c *Confirmations) drop(sender string) {
	p := c.pending[sender]
	if p == nil {
		return
	}
	p.expiry.Cancel()
	delete(c.pending, sender)
}
