package shop

import (
	"sort"

	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
)

// Permission nodes checked against the host permission system.
const (
	PermAdmin  = "shopcraft.admin"
	PermBypass = "shopcraft.bypass"
	PermHire   = "shopcraft.hire"

	PermRemoveOwn    = "shopcraft.remove.own"
	PermRemoveOther  = "shopcraft.remove.other"
	PermRemovePlayer = "shopcraft.remove.player"
	PermRemoveAdmin  = "shopcraft.remove.admin"
)

// PlayerShopData extends a shopkeeper with an owning user, a chest-backed
// stock container, a trusted-player list and hire-for-purchase state.
type PlayerShopData struct {
	OwnerID   uuid.UUID
	OwnerName string

	// Container is the block location of the backing chest, always within
	// the shop's world. While the shop is valid the block is registered with
	// the host's protected-containers collaborator.
	Container host.Vec3i

	trusted  map[uuid.UUID]bool
	hireCost *host.ItemStack
}

func (ps *PlayerShopData) IsOwner(id uuid.UUID) bool { return ps.OwnerID == id }

func (ps *PlayerShopData) IsTrusted(id uuid.UUID) bool { return ps.trusted[id] }

func (ps *PlayerShopData) TrustedList() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ps.trusted))
	for id := range ps.trusted {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// ForHire reports whether a hire cost is configured.
func (ps *PlayerShopData) ForHire() bool { return ps.hireCost != nil }

func (ps *PlayerShopData) HireCost() (host.ItemStack, bool) {
	if ps.hireCost == nil {
		return host.ItemStack{}, false
	}
	return *ps.hireCost, true
}

// SetOwner reassigns ownership.
func (sk *Shopkeeper) SetOwner(id uuid.UUID, name string) {
	ps := sk.player
	if ps == nil {
		return
	}
	if ps.OwnerID == id && ps.OwnerName == name {
		return
	}
	ps.OwnerID = id
	ps.OwnerName = name
	sk.MarkDirty()
}

func (sk *Shopkeeper) Trust(id uuid.UUID) {
	ps := sk.player
	if ps == nil || ps.trusted[id] {
		return
	}
	ps.trusted[id] = true
	sk.MarkDirty()
}

func (sk *Shopkeeper) Untrust(id uuid.UUID) {
	ps := sk.player
	if ps == nil || !ps.trusted[id] {
		return
	}
	delete(ps.trusted, id)
	sk.MarkDirty()
}

// SetForHire marks the shop hireable for the given cost; nil clears the
// for-hire state.
func (sk *Shopkeeper) SetForHire(cost *host.ItemStack) {
	ps := sk.player
	if ps == nil {
		return
	}
	if cost != nil && (cost.Item == "" || cost.Count <= 0) {
		return
	}
	ps.hireCost = cost
	sk.MarkDirty()
}

// SetContainer relocates the backing chest, moving the protection
// registration along with it.
func (sk *Shopkeeper) SetContainer(pos host.Vec3i) {
	ps := sk.player
	if ps == nil || ps.Container == pos {
		return
	}
	if sk.reg != nil {
		sk.reg.deps.Containers.Unprotect(sk.world, ps.Container)
		sk.reg.deps.Containers.Protect(sk.world, pos)
	}
	ps.Container = pos
	sk.MarkDirty()
}

// StockContainer resolves the backing chest inventory, if the block still
// exists.
func (sk *Shopkeeper) StockContainer() (host.Container, bool) {
	ps := sk.player
	if ps == nil {
		return nil, false
	}
	w := sk.reg.deps.Host.World(sk.world)
	if w == nil {
		return nil, false
	}
	return w.ContainerAt(ps.Container)
}

// CurrencyInContainer totals the currency value stored in the shop's chest,
// counting high-denomination items at their configured value.
func (sk *Shopkeeper) CurrencyInContainer() int {
	c, ok := sk.StockContainer()
	if !ok {
		return 0
	}
	cur := sk.reg.deps.Currency
	total := c.Count(cur.Item)
	if cur.HighEnabled() {
		total += c.Count(cur.HighItem) * cur.HighValue
	}
	return total
}
