package shop

import (
	"fmt"

	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
	"shopcraft.gg/internal/tuning"
	"shopcraft.gg/internal/ui"
)

// tradingHandler presents the resolved recipe list and executes trades.
type tradingHandler struct {
	sk *Shopkeeper
}

func (h *tradingHandler) Type() ui.Type { return ui.TypeTrading }

func (h *tradingHandler) CanOpen(p host.Player) bool { return true }

func (h *tradingHandler) OpenWindow(p host.Player) bool {
	title := h.sk.name
	if title == "" {
		title = "Shop"
	}
	return p.OpenWindow(title, 27)
}

func (h *tradingHandler) OnWindowClosed(*ui.Session) {}

// HandleClick executes the trade at the clicked recipe slot. The early phase
// cancels the engine's default slot behavior; the trade itself runs in the
// late phase so collaborators vetoing in between are honored.
func (h *tradingHandler) HandleClick(s *ui.Session, ev *ui.ClickEvent, phase ui.Phase) {
	if phase == ui.PhaseEarly {
		ev.Cancelled = true
		return
	}
	h.ExecuteTrade(s.Player, ev.Slot)
}

func (h *tradingHandler) HandleDrag(s *ui.Session, ev *ui.DragEvent, phase ui.Phase) {
	if phase == ui.PhaseEarly {
		ev.Cancelled = true
	}
}

// ExecuteTrade applies recipe idx for the player: demanded items move from
// the player into the shop's container, the result moves out of it. Admin
// shops have unlimited stock and absorb payment.
func (h *tradingHandler) ExecuteTrade(p host.Player, idx int) bool {
	sk := h.sk
	recipes := sk.behavior.Recipes(sk)
	if idx < 0 || idx >= len(recipes) {
		return false
	}
	r := recipes[idx]
	if r.OutOfStock {
		p.SendMessage("This shop is out of stock.")
		return false
	}
	inv := p.Inventory()
	for _, demand := range []host.ItemStack{r.Item1, r.Item2} {
		if demand.Item != "" && inv.Count(demand.Item) < demand.Count {
			p.SendMessage("You cannot afford this trade.")
			return false
		}
	}

	if sk.typ == TypeAdmin {
		for _, demand := range []host.ItemStack{r.Item1, r.Item2} {
			if demand.Item != "" {
				inv.Remove(demand.Item, demand.Count)
			}
		}
		inv.Add(r.Result.Item, r.Result.Count)
		return true
	}

	container, ok := sk.StockContainer()
	if !ok {
		p.SendMessage("This shop's container is missing.")
		return false
	}
	switch sk.typ {
	case TypeBuying:
		// The shop pays currency out of the container for the player's item.
		if payCurrency(container, sk.reg.deps.Currency, r.Result.Count) != r.Result.Count {
			return false
		}
		inv.Remove(r.Item1.Item, r.Item1.Count)
		container.Add(r.Item1.Item, r.Item1.Count)
		inv.Add(r.Result.Item, r.Result.Count)
	default:
		// Selling and trading shops hand the result out of the container and
		// bank the payment.
		if container.Remove(r.Result.Item, r.Result.Count) != r.Result.Count {
			return false
		}
		for _, demand := range []host.ItemStack{r.Item1, r.Item2} {
			if demand.Item != "" {
				inv.Remove(demand.Item, demand.Count)
				container.Add(demand.Item, demand.Count)
			}
		}
		inv.Add(r.Result.Item, r.Result.Count)
	}
	return true
}

// payCurrency removes amount worth of currency from the container, breaking
// high-denomination items as needed. Returns the value actually removed.
func payCurrency(c host.Container, cur tuning.Currency, amount int) int {
	removed := c.Remove(cur.Item, amount)
	if removed == amount || !cur.HighEnabled() {
		return removed
	}
	need := amount - removed
	highNeeded := (need + cur.HighValue - 1) / cur.HighValue
	got := c.Remove(cur.HighItem, highNeeded)
	value := got * cur.HighValue
	if value > need {
		// Change stays in the container as low currency.
		c.Add(cur.Item, value-need)
		value = need
	}
	return removed + value
}

// editorHandler lets shop editors rework the offer list via a draft that is
// reconciled against the live offers when the window closes.
type editorHandler struct {
	sk     *Shopkeeper
	drafts map[uuid.UUID]*editorDraft
}

type editorDraft struct {
	offers []*TradingOffer
	prices []*PriceOffer
}

func (h *editorHandler) Type() ui.Type { return ui.TypeEditor }

func (h *editorHandler) CanOpen(p host.Player) bool { return h.sk.canEdit(p) }

func (h *editorHandler) OpenWindow(p host.Player) bool {
	if !p.OpenWindow("Editor: "+h.sk.name, 27) {
		return false
	}
	if h.drafts == nil {
		h.drafts = map[uuid.UUID]*editorDraft{}
	}
	h.drafts[p.ID()] = h.draftFromOffers()
	return true
}

func (h *editorHandler) draftFromOffers() *editorDraft {
	d := &editorDraft{}
	for _, o := range h.sk.offers {
		offer := o
		d.offers = append(d.offers, &offer)
	}
	for _, o := range h.sk.priced {
		price := o
		d.prices = append(d.prices, &price)
	}
	return d
}

// Draft returns the player's editing draft, if the editor is open for them.
func (h *editorHandler) Draft(p host.Player) *editorDraft { return h.drafts[p.ID()] }

// HandleClick adjusts the draft price at the clicked slot: left-click
// increments, right-click decrements (removing the offer at zero).
func (h *editorHandler) HandleClick(s *ui.Session, ev *ui.ClickEvent, phase ui.Phase) {
	if phase == ui.PhaseEarly {
		ev.Cancelled = true
		return
	}
	d := h.drafts[s.Player.ID()]
	if d == nil || ev.Slot < 0 || ev.Slot >= len(d.prices) {
		return
	}
	o := d.prices[ev.Slot]
	if o == nil {
		return
	}
	if ev.RightClick {
		o.Price--
		if o.Price <= 0 {
			d.prices[ev.Slot] = nil
		}
	} else {
		o.Price++
	}
}

func (h *editorHandler) HandleDrag(s *ui.Session, ev *ui.DragEvent, phase ui.Phase) {
	if phase == ui.PhaseEarly {
		ev.Cancelled = true
	}
}

// OnWindowClosed reconciles the draft into the live offer lists and reports
// either "no changes" or the number of changed offers.
func (h *editorHandler) OnWindowClosed(s *ui.Session) {
	d := h.drafts[s.Player.ID()]
	if d == nil {
		return
	}
	delete(h.drafts, s.Player.ID())
	if !h.sk.valid {
		return
	}
	changed := 0
	switch h.sk.typ {
	case TypeSelling, TypeBuying:
		priced, n := ReconcilePriceOffers(h.sk.priced, d.prices)
		if n > 0 {
			h.sk.priced = priced
		}
		changed = n
	default:
		offers, n := ReconcileOffers(h.sk.offers, d.offers)
		if n > 0 {
			h.sk.offers = offers
		}
		changed = n
	}
	if changed == 0 {
		s.Player.SendMessage("No changes to the shop's offers.")
		return
	}
	h.sk.MarkDirty()
	s.Player.SendMessage(fmt.Sprintf("%d offer(s) changed.", changed))
}

// SetDraftOffer replaces draft position i (growing the draft as needed); nil
// marks the position empty.
func (h *editorHandler) SetDraftOffer(p host.Player, i int, o *TradingOffer) {
	d := h.drafts[p.ID()]
	if d == nil || i < 0 {
		return
	}
	for len(d.offers) <= i {
		d.offers = append(d.offers, nil)
	}
	d.offers[i] = o
}

func (h *editorHandler) SetDraftPrice(p host.Player, i int, o *PriceOffer) {
	d := h.drafts[p.ID()]
	if d == nil || i < 0 {
		return
	}
	for len(d.prices) <= i {
		d.prices = append(d.prices, nil)
	}
	d.prices[i] = o
}

// hiringHandler sells the shop itself to a new owner.
type hiringHandler struct {
	sk *Shopkeeper
}

func (h *hiringHandler) Type() ui.Type { return ui.TypeHiring }

func (h *hiringHandler) CanOpen(p host.Player) bool {
	ps := h.sk.player
	if ps == nil || !ps.ForHire() || ps.IsOwner(p.ID()) {
		return false
	}
	return p.HasPermission(PermHire)
}

func (h *hiringHandler) OpenWindow(p host.Player) bool {
	return p.OpenWindow("Hire: "+h.sk.name, 9)
}

func (h *hiringHandler) OnWindowClosed(*ui.Session) {}

func (h *hiringHandler) HandleClick(s *ui.Session, ev *ui.ClickEvent, phase ui.Phase) {
	if phase == ui.PhaseEarly {
		ev.Cancelled = true
		return
	}
	h.Hire(s.Player)
}

func (h *hiringHandler) HandleDrag(s *ui.Session, ev *ui.DragEvent, phase ui.Phase) {
	if phase == ui.PhaseEarly {
		ev.Cancelled = true
	}
}

// Hire transfers ownership to the player if they can pay the hire cost. All
// open interfaces of the shop are closed afterwards since its identity just
// changed.
func (h *hiringHandler) Hire(p host.Player) bool {
	sk := h.sk
	ps := sk.player
	if ps == nil || !ps.ForHire() {
		return false
	}
	cost := *ps.hireCost
	inv := p.Inventory()
	if inv.Count(cost.Item) < cost.Count {
		p.SendMessage("You cannot afford to hire this shop.")
		return false
	}
	inv.Remove(cost.Item, cost.Count)
	sk.SetForHire(nil)
	for id := range ps.trusted {
		delete(ps.trusted, id)
	}
	sk.SetOwner(p.ID(), p.Name())
	p.SendMessage("You have hired this shop.")
	sk.reg.deps.UI.CloseAllDelayed(sk)
	return true
}
