package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"shopcraft.gg/internal/shop"
)

// Sender is whoever invoked a command: an online player or a console
// connection.
type Sender interface {
	// Key identifies the sender for confirmation tracking.
	Key() string
	Name() string
	HasPermission(perm string) bool
	Reply(msg string)
	// PlayerID returns the sender's player identity, if the sender is a
	// player ("own" targeting requires it).
	PlayerID() (uuid.UUID, bool)
}

// SelectorKind enumerates the remove command's target selectors.
type SelectorKind int

const (
	SelectorPlayer SelectorKind = iota
	SelectorOwn
	SelectorAllPlayerShops
	SelectorAllAdminShops
)

type Selector struct {
	Kind SelectorKind

	// For SelectorPlayer: name or UUID of the targeted owner.
	Target string
}

// ParseSelector understands {player name/uuid, "own", "all-players",
// "all-admin"}.
func ParseSelector(arg string) (Selector, error) {
	switch strings.ToLower(arg) {
	case "":
		return Selector{}, fmt.Errorf("missing target selector")
	case "own":
		return Selector{Kind: SelectorOwn}, nil
	case "all-players":
		return Selector{Kind: SelectorAllPlayerShops}, nil
	case "all-admin":
		return Selector{Kind: SelectorAllAdminShops}, nil
	default:
		return Selector{Kind: SelectorPlayer, Target: arg}, nil
	}
}

func (s Selector) permission() string {
	switch s.Kind {
	case SelectorOwn:
		return shop.PermRemoveOwn
	case SelectorAllPlayerShops:
		return shop.PermRemovePlayer
	case SelectorAllAdminShops:
		return shop.PermRemoveAdmin
	default:
		return shop.PermRemoveOther
	}
}

// RemoveVeto lets collaborators cancel the deletion of individual shops at
// execution time; returning true keeps the shop.
type RemoveVeto func(sk *shop.Shopkeeper) bool

// RemoveCommand deletes shopkeepers by selector, behind a confirmation step.
type RemoveCommand struct {
	reg    *shop.Registry
	conf   *Confirmations
	vetoes []RemoveVeto
}

func NewRemoveCommand(reg *shop.Registry, conf *Confirmations) *RemoveCommand {
	return &RemoveCommand{reg: reg, conf: conf}
}

func (c *RemoveCommand) AddVeto(v RemoveVeto) { c.vetoes = append(c.vetoes, v) }

// Execute resolves the selector, checks the typed permission, and asks the
// sender to confirm. Nothing is deleted until Confirm is invoked by the same
// sender within the expiry window.
func (c *RemoveCommand) Execute(sender Sender, arg string) {
	sel, err := ParseSelector(arg)
	if err != nil {
		sender.Reply(fmt.Sprintf("Invalid target: %v", err))
		return
	}
	if !sender.HasPermission(sel.permission()) {
		sender.Reply("You do not have permission for this removal.")
		return
	}

	proposed := c.resolve(sender, sel)
	if proposed == nil {
		return // resolve already replied
	}
	if len(proposed) == 0 {
		sender.Reply("No matching shops found.")
		return
	}

	// Capture UUIDs rather than pointers; validity is rechecked at execution
	// time since shops may vanish while the confirmation is pending.
	ids := make([]uuid.UUID, len(proposed))
	for i, sk := range proposed {
		ids[i] = sk.UUID()
	}
	c.conf.Await(sender.Key(), func() {
		removed := 0
		for _, id := range ids {
			sk, ok := c.reg.ByUUID(id)
			if !ok || !sk.Valid() {
				continue
			}
			if c.vetoed(sk) {
				continue
			}
			c.reg.Delete(sk)
			removed++
		}
		sender.Reply(fmt.Sprintf("Removed %d shop(s).", removed))
	}, func() {
		sender.Reply("Confirmation expired; no shops were removed.")
	})
	sender.Reply(fmt.Sprintf("About to remove %d shop(s). Confirm to proceed.", len(proposed)))
}

// Confirm executes the sender's pending removal, if any.
func (c *RemoveCommand) Confirm(sender Sender) {
	if !c.conf.Confirm(sender.Key()) {
		sender.Reply("Nothing to confirm.")
	}
}

func (c *RemoveCommand) vetoed(sk *shop.Shopkeeper) bool {
	for _, v := range c.vetoes {
		if v(sk) {
			return true
		}
	}
	return false
}

func (c *RemoveCommand) resolve(sender Sender, sel Selector) []*shop.Shopkeeper {
	switch sel.Kind {
	case SelectorOwn:
		id, ok := sender.PlayerID()
		if !ok {
			sender.Reply("Only players can target their own shops.")
			return nil
		}
		return c.reg.ByOwner(id)

	case SelectorAllPlayerShops:
		var out []*shop.Shopkeeper
		for _, sk := range c.reg.All() {
			if sk.Type().IsPlayerShop() {
				out = append(out, sk)
			}
		}
		return out

	case SelectorAllAdminShops:
		var out []*shop.Shopkeeper
		for _, sk := range c.reg.All() {
			if !sk.Type().IsPlayerShop() {
				out = append(out, sk)
			}
		}
		return out

	default:
		if id, err := uuid.Parse(sel.Target); err == nil {
			return c.reg.ByOwner(id)
		}
		// Name targeting is ambiguous after renames; match the cached owner
		// name and reject multi-owner ambiguity.
		var owner uuid.UUID
		var out []*shop.Shopkeeper
		for _, sk := range c.reg.All() {
			ps := sk.PlayerShop()
			if ps == nil || !strings.EqualFold(ps.OwnerName, sel.Target) {
				continue
			}
			if out != nil && ps.OwnerID != owner {
				sender.Reply(fmt.Sprintf("Shop owner name %q is ambiguous; use the UUID.", sel.Target))
				return nil
			}
			owner = ps.OwnerID
			out = append(out, sk)
		}
		return out
	}
}
