package commands

import (
	"io"
	"log"
	"testing"

	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
	"shopcraft.gg/internal/host/hosttest"
	"shopcraft.gg/internal/shop"
	"shopcraft.gg/internal/tuning"
	"shopcraft.gg/internal/ui"
)

type fakeSender struct {
	key      string
	perms    map[string]bool
	all      bool
	player   uuid.UUID
	isPlayer bool

	replies []string
}

func (s *fakeSender) Key() string { return s.key }
func (s *fakeSender) Name() string { return s.key }
func (s *fakeSender) HasPermission(perm string) bool {
	return s.all || s.perms[perm]
}
func (s *fakeSender) Reply(msg string) { s.replies = append(s.replies, msg) }
func (s *fakeSender) PlayerID() (uuid.UUID, bool) {
	return s.player, s.isPlayer
}

func (s *fakeSender) lastReply(t *testing.T) string {
	t.Helper()
	if len(s.replies) == 0 {
		t.Fatalf("no replies")
	}
	return s.replies[len(s.replies)-1]
}

type cmdEnv struct {
	fake  *hosttest.Fake
	world *hosttest.FakeWorld
	reg   *shop.Registry
	conf  *Confirmations
	cmd   *RemoveCommand
}

func newCmdEnv(t *testing.T, expiryTicks int) *cmdEnv {
	t.Helper()
	f := hosttest.New()
	logger := log.New(io.Discard, "", 0)
	env := &cmdEnv{fake: f, world: f.AddWorld("overworld")}
	env.world.LoadChunk(host.ChunkKey{CX: 0, CZ: 0})
	env.reg = shop.NewRegistry(shop.Deps{
		Host:       f,
		Log:        logger,
		UI:         ui.NewRegistry(f.Scheduler(), logger),
		Currency:   tuning.Defaults().Currency,
		Containers: f.Containers(),
	})
	env.conf = NewConfirmations(f.Scheduler(), expiryTicks)
	env.cmd = NewRemoveCommand(env.reg, env.conf)
	return env
}

func (e *cmdEnv) adminShop(t *testing.T, name string, x int) *shop.Shopkeeper {
	t.Helper()
	sk, err := e.reg.CreateShopkeeper(shop.CreationData{
		Type: shop.TypeAdmin, Object: shop.ObjectEntity,
		Name: name, World: "overworld", Pos: host.Vec3i{X: x, Y: 1, Z: 1}, HasPos: true,
	})
	if err != nil {
		t.Fatalf("create admin shop: %v", err)
	}
	return sk
}

func (e *cmdEnv) playerShop(t *testing.T, owner uuid.UUID, ownerName string, x int) *shop.Shopkeeper {
	t.Helper()
	chest := host.Vec3i{X: x, Y: 1, Z: 3}
	e.world.PlaceChest(chest)
	sk, err := e.reg.CreateShopkeeper(shop.CreationData{
		Type: shop.TypeSelling, Object: shop.ObjectEntity,
		Name: "Stall", World: "overworld", Pos: host.Vec3i{X: x, Y: 1, Z: 2}, HasPos: true,
		OwnerID: owner, OwnerName: ownerName, Container: chest,
	})
	if err != nil {
		t.Fatalf("create player shop: %v", err)
	}
	return sk
}

func TestRemove_NothingDeletedUntilConfirmed(t *testing.T) {
	env := newCmdEnv(t, 10)
	env.adminShop(t, "a", 1)
	env.adminShop(t, "b", 2)
	env.playerShop(t, uuid.New(), "Alice", 5)

	s := &fakeSender{key: "console", all: true}
	env.cmd.Execute(s, "all-admin")
	if got := s.lastReply(t); got != "About to remove 2 shop(s). Confirm to proceed." {
		t.Fatalf("reply = %q", got)
	}
	if env.reg.Count() != 3 {
		t.Fatalf("shops removed before confirmation")
	}

	env.cmd.Confirm(s)
	if got := s.lastReply(t); got != "Removed 2 shop(s)." {
		t.Fatalf("reply = %q", got)
	}
	if env.reg.Count() != 1 {
		t.Fatalf("count = %d, want 1", env.reg.Count())
	}

	// A second confirm has nothing to act on.
	env.cmd.Confirm(s)
	if got := s.lastReply(t); got != "Nothing to confirm." {
		t.Fatalf("reply = %q", got)
	}
}

func TestRemove_ReissueReplacesPending(t *testing.T) {
	env := newCmdEnv(t, 10)
	env.adminShop(t, "a", 1)

	s := &fakeSender{key: "console", all: true}
	env.cmd.Execute(s, "all-admin")
	env.cmd.Execute(s, "all-admin")
	if !env.conf.HasPending(s.key) {
		t.Fatalf("no pending confirmation")
	}

	env.cmd.Confirm(s)
	if env.reg.Count() != 0 {
		t.Fatalf("count = %d, want 0", env.reg.Count())
	}
	// The replaced first entry must not fire or expire later.
	env.fake.Tick(20)
	for _, r := range s.replies {
		if r == "Confirmation expired; no shops were removed." {
			t.Fatalf("replaced pending entry expired: %v", s.replies)
		}
	}
}

func TestRemove_ConfirmationExpires(t *testing.T) {
	env := newCmdEnv(t, 10)
	env.adminShop(t, "a", 1)

	s := &fakeSender{key: "console", all: true}
	env.cmd.Execute(s, "all-admin")
	env.fake.Tick(10)

	if got := s.lastReply(t); got != "Confirmation expired; no shops were removed." {
		t.Fatalf("reply = %q", got)
	}
	if env.reg.Count() != 1 {
		t.Fatalf("expired confirmation deleted shops")
	}
	env.cmd.Confirm(s)
	if got := s.lastReply(t); got != "Nothing to confirm." {
		t.Fatalf("reply = %q", got)
	}
}

func TestRemove_RevalidatesAtConfirmTime(t *testing.T) {
	env := newCmdEnv(t, 10)
	a := env.adminShop(t, "a", 1)
	env.adminShop(t, "b", 2)

	s := &fakeSender{key: "console", all: true}
	env.cmd.Execute(s, "all-admin")

	// One of the proposed shops vanishes while the confirmation is pending.
	env.reg.Delete(a)
	env.cmd.Confirm(s)
	if got := s.lastReply(t); got != "Removed 1 shop(s)." {
		t.Fatalf("reply = %q", got)
	}
}

func TestRemove_PermissionChecks(t *testing.T) {
	env := newCmdEnv(t, 10)
	env.adminShop(t, "a", 1)

	s := &fakeSender{key: "console"}
	env.cmd.Execute(s, "all-admin")
	if got := s.lastReply(t); got != "You do not have permission for this removal." {
		t.Fatalf("reply = %q", got)
	}
	if env.conf.HasPending(s.key) {
		t.Fatalf("denied command left a pending confirmation")
	}

	// "own" needs a player identity even with the permission granted.
	s = &fakeSender{key: "console", perms: map[string]bool{shop.PermRemoveOwn: true}}
	env.cmd.Execute(s, "own")
	if got := s.lastReply(t); got != "Only players can target their own shops." {
		t.Fatalf("reply = %q", got)
	}
}

func TestRemove_OwnerSelectors(t *testing.T) {
	env := newCmdEnv(t, 10)
	alice := uuid.New()
	env.playerShop(t, alice, "Alice", 1)
	env.playerShop(t, alice, "Alice", 5)
	env.playerShop(t, uuid.New(), "Bob", 9)

	s := &fakeSender{key: "console", all: true}
	env.cmd.Execute(s, alice.String())
	if got := s.lastReply(t); got != "About to remove 2 shop(s). Confirm to proceed." {
		t.Fatalf("uuid selector: reply = %q", got)
	}
	env.cmd.Confirm(s)
	if env.reg.Count() != 1 {
		t.Fatalf("count = %d, want 1", env.reg.Count())
	}

	// Name targeting is case insensitive.
	env.cmd.Execute(s, "bob")
	if got := s.lastReply(t); got != "About to remove 1 shop(s). Confirm to proceed." {
		t.Fatalf("name selector: reply = %q", got)
	}
}

func TestRemove_OwnSelector(t *testing.T) {
	env := newCmdEnv(t, 10)
	alice := uuid.New()
	env.playerShop(t, alice, "Alice", 1)
	env.playerShop(t, uuid.New(), "Bob", 5)

	s := &fakeSender{key: "player:" + alice.String(), player: alice, isPlayer: true,
		perms: map[string]bool{shop.PermRemoveOwn: true}}
	env.cmd.Execute(s, "own")
	if got := s.lastReply(t); got != "About to remove 1 shop(s). Confirm to proceed." {
		t.Fatalf("reply = %q", got)
	}
	env.cmd.Confirm(s)
	if env.reg.Count() != 1 {
		t.Fatalf("count = %d, want 1", env.reg.Count())
	}
}

func TestRemove_VetoKeepsShop(t *testing.T) {
	env := newCmdEnv(t, 10)
	keep := env.adminShop(t, "keep", 1)
	env.adminShop(t, "drop", 2)

	env.cmd.AddVeto(func(sk *shop.Shopkeeper) bool { return sk.UUID() == keep.UUID() })

	s := &fakeSender{key: "console", all: true}
	env.cmd.Execute(s, "all-admin")
	env.cmd.Confirm(s)
	if got := s.lastReply(t); got != "Removed 1 shop(s)." {
		t.Fatalf("reply = %q", got)
	}
	if _, ok := env.reg.ByUUID(keep.UUID()); !ok {
		t.Fatalf("vetoed shop was removed")
	}
}

func TestRemove_InvalidAndEmptyTargets(t *testing.T) {
	env := newCmdEnv(t, 10)

	s := &fakeSender{key: "console", all: true}
	env.cmd.Execute(s, "")
	if got := s.lastReply(t); got != "Invalid target: missing target selector" {
		t.Fatalf("reply = %q", got)
	}

	env.cmd.Execute(s, "all-admin")
	if got := s.lastReply(t); got != "No matching shops found." {
		t.Fatalf("reply = %q", got)
	}
	if env.conf.HasPending(s.key) {
		t.Fatalf("empty result left a pending confirmation")
	}
}

func TestConfirmations_ClearAndClearAll(t *testing.T) {
	f := hosttest.New()
	conf := NewConfirmations(f.Scheduler(), 10)

	ran := 0
	conf.Await("a", func() { ran++ }, nil)
	conf.Await("b", func() { ran++ }, nil)
	conf.Clear("a")
	if conf.Confirm("a") {
		t.Fatalf("cleared confirmation still fired")
	}
	conf.ClearAll()
	if conf.Confirm("b") {
		t.Fatalf("confirmation survived ClearAll")
	}
	if ran != 0 {
		t.Fatalf("actions ran %d times", ran)
	}
}
