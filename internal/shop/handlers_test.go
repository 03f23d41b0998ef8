package shop

import (
	"testing"

	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
	"shopcraft.gg/internal/ui"
)

func TestExecuteTrade_SellingShop(t *testing.T) {
	env := newTestEnv(t)
	env.loadChunk(0, 0)

	chest := host.Vec3i{X: 2, Y: 1, Z: 2}
	c := env.world.PlaceChest(chest)
	c.Add("APPLE", 5)

	sk := mustCreate(t, env, playerSellShop(uuid.New(), "Alice", host.Vec3i{X: 1, Y: 1, Z: 1}, chest))
	sk.AddPriceOffer(PriceOffer{Item: host.ItemStack{Item: "APPLE", Count: 1}, Price: 10})

	buyer := env.fake.Join(uuid.New(), "Buyer", "overworld")
	buyer.Give("EMERALD", 10)

	h := sk.UIHandler(ui.TypeTrading).(*tradingHandler)
	if !h.ExecuteTrade(buyer, 0) {
		t.Fatalf("trade failed")
	}

	inv := buyer.Inventory()
	if inv.Count("APPLE") != 1 || inv.Count("EMERALD") != 0 {
		t.Fatalf("buyer inventory: apples=%d emeralds=%d", inv.Count("APPLE"), inv.Count("EMERALD"))
	}
	if c.Count("APPLE") != 4 || c.Count("EMERALD") != 10 {
		t.Fatalf("chest: apples=%d emeralds=%d", c.Count("APPLE"), c.Count("EMERALD"))
	}
}

func TestExecuteTrade_SellingShopOutOfStock(t *testing.T) {
	env := newTestEnv(t)
	env.loadChunk(0, 0)

	chest := host.Vec3i{X: 2, Y: 1, Z: 2}
	env.world.PlaceChest(chest)

	sk := mustCreate(t, env, playerSellShop(uuid.New(), "Alice", host.Vec3i{X: 1, Y: 1, Z: 1}, chest))
	sk.AddPriceOffer(PriceOffer{Item: host.ItemStack{Item: "APPLE", Count: 1}, Price: 10})

	buyer := env.fake.Join(uuid.New(), "Buyer", "overworld")
	buyer.Give("EMERALD", 10)

	h := sk.UIHandler(ui.TypeTrading).(*tradingHandler)
	if h.ExecuteTrade(buyer, 0) {
		t.Fatalf("out-of-stock trade succeeded")
	}
	if buyer.Inventory().Count("EMERALD") != 10 {
		t.Fatalf("payment taken for failed trade")
	}
}

func TestExecuteTrade_CannotAfford(t *testing.T) {
	env := newTestEnv(t)
	env.loadChunk(0, 0)

	chest := host.Vec3i{X: 2, Y: 1, Z: 2}
	c := env.world.PlaceChest(chest)
	c.Add("APPLE", 5)

	sk := mustCreate(t, env, playerSellShop(uuid.New(), "Alice", host.Vec3i{X: 1, Y: 1, Z: 1}, chest))
	sk.AddPriceOffer(PriceOffer{Item: host.ItemStack{Item: "APPLE", Count: 1}, Price: 10})

	buyer := env.fake.Join(uuid.New(), "Buyer", "overworld")
	buyer.Give("EMERALD", 9)

	h := sk.UIHandler(ui.TypeTrading).(*tradingHandler)
	if h.ExecuteTrade(buyer, 0) {
		t.Fatalf("unaffordable trade succeeded")
	}
	if c.Count("APPLE") != 5 {
		t.Fatalf("stock moved for failed trade")
	}
}

func TestExecuteTrade_BuyingShopBreaksHighCurrency(t *testing.T) {
	env := newTestEnv(t)
	env.loadChunk(0, 0)

	chest := host.Vec3i{X: 2, Y: 1, Z: 2}
	c := env.world.PlaceChest(chest)
	c.Add("EMERALD_BLOCK", 2) // value 18

	sk, err := env.reg.CreateShopkeeper(CreationData{
		Type: TypeBuying, Object: ObjectEntity,
		Name: "Buys", World: "overworld", Pos: host.Vec3i{X: 1, Y: 1, Z: 1}, HasPos: true,
		OwnerID: uuid.New(), OwnerName: "Alice", Container: chest,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sk.AddPriceOffer(PriceOffer{Item: host.ItemStack{Item: "APPLE", Count: 1}, Price: 10})

	seller := env.fake.Join(uuid.New(), "Seller", "overworld")
	seller.Give("APPLE", 1)

	h := sk.UIHandler(ui.TypeTrading).(*tradingHandler)
	if !h.ExecuteTrade(seller, 0) {
		t.Fatalf("trade failed")
	}

	inv := seller.Inventory()
	if inv.Count("EMERALD") != 10 || inv.Count("APPLE") != 0 {
		t.Fatalf("seller inventory: emeralds=%d apples=%d", inv.Count("EMERALD"), inv.Count("APPLE"))
	}
	// Both blocks were broken; 8 change emeralds stay in the chest.
	if c.Count("EMERALD_BLOCK") != 0 || c.Count("EMERALD") != 8 || c.Count("APPLE") != 1 {
		t.Fatalf("chest: blocks=%d emeralds=%d apples=%d",
			c.Count("EMERALD_BLOCK"), c.Count("EMERALD"), c.Count("APPLE"))
	}
}

func TestExecuteTrade_AdminShopUnlimitedStock(t *testing.T) {
	env := newTestEnv(t)
	env.loadChunk(0, 0)

	sk := mustCreate(t, env, adminEntity("Tools", host.Vec3i{X: 1, Y: 1, Z: 1}))
	sk.AddOffer(TradingOffer{
		Result: host.ItemStack{Item: "PICKAXE", Count: 1},
		Item1:  host.ItemStack{Item: "EMERALD", Count: 8},
	})

	buyer := env.fake.Join(uuid.New(), "Buyer", "overworld")
	buyer.Give("EMERALD", 20)

	h := sk.UIHandler(ui.TypeTrading).(*tradingHandler)
	for i := 0; i < 2; i++ {
		if !h.ExecuteTrade(buyer, 0) {
			t.Fatalf("trade %d failed", i)
		}
	}
	inv := buyer.Inventory()
	if inv.Count("PICKAXE") != 2 || inv.Count("EMERALD") != 4 {
		t.Fatalf("inventory: pickaxes=%d emeralds=%d", inv.Count("PICKAXE"), inv.Count("EMERALD"))
	}
}

func TestEditor_ReconcileOnClose(t *testing.T) {
	env := newTestEnv(t)
	env.loadChunk(0, 0)

	ownerID := uuid.New()
	chest := host.Vec3i{X: 2, Y: 1, Z: 2}
	env.world.PlaceChest(chest)
	sk := mustCreate(t, env, playerSellShop(ownerID, "Alice", host.Vec3i{X: 1, Y: 1, Z: 1}, chest))
	sk.AddPriceOffer(PriceOffer{Item: host.ItemStack{Item: "APPLE", Count: 1}, Price: 10})
	env.reg.OnSaveComplete() // start clean

	owner := env.fake.Join(ownerID, "Alice", "overworld")

	// Opening and closing without edits reports no changes.
	if !env.ui.RequestOpen(ui.TypeEditor, sk, owner) {
		t.Fatalf("editor did not open for the owner")
	}
	owner.CloseWindow()
	if got := owner.Messages[len(owner.Messages)-1]; got != "No changes to the shop's offers." {
		t.Fatalf("message = %q", got)
	}
	if sk.Dirty() {
		t.Fatalf("shop dirty after no-op edit")
	}

	// A price bump through the click dispatch counts as one change.
	if !env.ui.RequestOpen(ui.TypeEditor, sk, owner) {
		t.Fatalf("editor did not reopen")
	}
	ev := &ui.ClickEvent{Slot: 0}
	env.ui.ClickEarly(owner, ev)
	if !ev.Cancelled {
		t.Fatalf("editor click not cancelled in the early phase")
	}
	env.ui.ClickLate(owner, ev)
	owner.CloseWindow()

	if got := owner.Messages[len(owner.Messages)-1]; got != "1 offer(s) changed." {
		t.Fatalf("message = %q", got)
	}
	if sk.PriceOffers()[0].Price != 11 {
		t.Fatalf("price = %d, want 11", sk.PriceOffers()[0].Price)
	}
	if !sk.Dirty() {
		t.Fatalf("shop not dirty after edit")
	}
}

func TestEditor_RightClickToZeroRemovesOffer(t *testing.T) {
	env := newTestEnv(t)
	env.loadChunk(0, 0)

	ownerID := uuid.New()
	chest := host.Vec3i{X: 2, Y: 1, Z: 2}
	env.world.PlaceChest(chest)
	sk := mustCreate(t, env, playerSellShop(ownerID, "Alice", host.Vec3i{X: 1, Y: 1, Z: 1}, chest))
	sk.AddPriceOffer(PriceOffer{Item: host.ItemStack{Item: "APPLE", Count: 1}, Price: 1})

	owner := env.fake.Join(ownerID, "Alice", "overworld")
	if !env.ui.RequestOpen(ui.TypeEditor, sk, owner) {
		t.Fatalf("editor did not open")
	}
	ev := &ui.ClickEvent{Slot: 0, RightClick: true}
	env.ui.ClickEarly(owner, ev)
	env.ui.ClickLate(owner, ev)
	owner.CloseWindow()

	if n := len(sk.PriceOffers()); n != 0 {
		t.Fatalf("offers = %d, want 0", n)
	}
}

func TestHiring_TransfersOwnership(t *testing.T) {
	env := newTestEnv(t)
	env.loadChunk(0, 0)

	oldOwner := uuid.New()
	trusted := uuid.New()
	chest := host.Vec3i{X: 2, Y: 1, Z: 2}
	env.world.PlaceChest(chest)
	sk := mustCreate(t, env, playerSellShop(oldOwner, "Alice", host.Vec3i{X: 1, Y: 1, Z: 1}, chest))
	sk.Trust(trusted)
	sk.SetForHire(&host.ItemStack{Item: "EMERALD", Count: 5})

	hirer := env.fake.Join(uuid.New(), "Bob", "overworld")
	hirer.Grant(PermHire)
	hirer.Give("EMERALD", 5)

	if !env.ui.RequestOpen(ui.TypeHiring, sk, hirer) {
		t.Fatalf("hiring interface did not open")
	}
	h := sk.UIHandler(ui.TypeHiring).(*hiringHandler)
	if !h.Hire(hirer) {
		t.Fatalf("hire failed")
	}

	ps := sk.PlayerShop()
	if ps.OwnerID != hirer.ID() || ps.OwnerName != "Bob" {
		t.Fatalf("owner = %s/%s", ps.OwnerID, ps.OwnerName)
	}
	if ps.ForHire() {
		t.Fatalf("shop still for hire after transfer")
	}
	if ps.IsTrusted(trusted) {
		t.Fatalf("trusted list survived the transfer")
	}
	if hirer.Inventory().Count("EMERALD") != 0 {
		t.Fatalf("hire cost not taken")
	}

	// The new owner cannot hire their own shop.
	if env.ui.RequestOpen(ui.TypeHiring, sk, hirer) {
		t.Fatalf("owner opened the hiring interface")
	}
}

func TestHiring_CannotAfford(t *testing.T) {
	env := newTestEnv(t)
	env.loadChunk(0, 0)

	oldOwner := uuid.New()
	chest := host.Vec3i{X: 2, Y: 1, Z: 2}
	env.world.PlaceChest(chest)
	sk := mustCreate(t, env, playerSellShop(oldOwner, "Alice", host.Vec3i{X: 1, Y: 1, Z: 1}, chest))
	sk.SetForHire(&host.ItemStack{Item: "EMERALD", Count: 5})

	hirer := env.fake.Join(uuid.New(), "Bob", "overworld")
	hirer.Grant(PermHire)
	hirer.Give("EMERALD", 4)

	h := sk.UIHandler(ui.TypeHiring).(*hiringHandler)
	if h.Hire(hirer) {
		t.Fatalf("underfunded hire succeeded")
	}
	if sk.PlayerShop().OwnerID != oldOwner {
		t.Fatalf("ownership changed on failed hire")
	}
}

func TestOnInteract_Routing(t *testing.T) {
	env := newTestEnv(t)
	env.loadChunk(0, 0)

	ownerID := uuid.New()
	chest := host.Vec3i{X: 2, Y: 1, Z: 2}
	c := env.world.PlaceChest(chest)
	c.Add("APPLE", 1)
	sk := mustCreate(t, env, playerSellShop(ownerID, "Alice", host.Vec3i{X: 1, Y: 1, Z: 1}, chest))

	owner := env.fake.Join(ownerID, "Alice", "overworld")
	visitor := env.fake.Join(uuid.New(), "Bob", "overworld")

	if !sk.OnInteract(owner, true) {
		t.Fatalf("owner sneak-interact did not open a session")
	}
	if typ, _ := env.ui.OpenType(owner); typ != ui.TypeEditor {
		t.Fatalf("owner sneak opened %q, want editor", typ)
	}

	if !sk.OnInteract(visitor, false) {
		t.Fatalf("visitor interact did not open a session")
	}
	if typ, _ := env.ui.OpenType(visitor); typ != ui.TypeTrading {
		t.Fatalf("visitor opened %q, want trading", typ)
	}

	// Visitor sneaking without edit rights still gets the trading interface.
	visitor.CloseWindow()
	if !sk.OnInteract(visitor, true) {
		t.Fatalf("visitor sneak-interact did not open a session")
	}
	if typ, _ := env.ui.OpenType(visitor); typ != ui.TypeTrading {
		t.Fatalf("visitor sneak opened %q, want trading", typ)
	}
}
