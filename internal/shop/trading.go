package shop

import (
	"shopcraft.gg/internal/host"
	"shopcraft.gg/internal/tuning"
)

// TradingRecipe is one resolved trade presented to players: one or two
// demanded items in exchange for the result. OutOfStock recipes are still
// listed but cannot be executed.
type TradingRecipe struct {
	Result     host.ItemStack
	Item1      host.ItemStack
	Item2      host.ItemStack
	OutOfStock bool
}

// SellingRecipe converts an abstract price into concrete currency stacks:
// the high denomination fills slot 1 (capped at its max stack size), the
// remainder goes into whichever slot is still free as low currency. Fails if
// the remainder exceeds the low currency's max stack size.
func SellingRecipe(cur tuning.Currency, item host.ItemStack, price int, outOfStock bool) (TradingRecipe, bool) {
	remaining := price

	var item1, item2 host.ItemStack
	if cur.HighEnabled() && price > cur.HighMinCost {
		high := price / cur.HighValue
		if high > cur.HighMaxStack {
			high = cur.HighMaxStack
		}
		if high > 0 {
			remaining -= high * cur.HighValue
			item1 = host.ItemStack{Item: cur.HighItem, Count: high}
		}
	}

	if remaining > 0 {
		if remaining > cur.MaxStack {
			// Not representable with the configured currency items.
			return TradingRecipe{}, false
		}
		low := host.ItemStack{Item: cur.Item, Count: remaining}
		if item1.Item == "" {
			item1 = low
		} else {
			// Slot 1 already holds the high currency.
			item2 = low
		}
	}
	return TradingRecipe{Result: item, Item1: item1, Item2: item2, OutOfStock: outOfStock}, true
}

// BuyingRecipe pays the price in low currency only, since it is what the
// shop hands out. Fails if the price exceeds the low currency's max stack
// size.
func BuyingRecipe(cur tuning.Currency, item host.ItemStack, price int, outOfStock bool) (TradingRecipe, bool) {
	if price > cur.MaxStack {
		return TradingRecipe{}, false
	}
	return TradingRecipe{
		Result:     host.ItemStack{Item: cur.Item, Count: price},
		Item1:      item,
		OutOfStock: outOfStock,
	}, true
}

// sellingRecipe wraps SellingRecipe with the registry's currency settings
// and the warning log for dropped offers.
func (r *Registry) sellingRecipe(sk *Shopkeeper, item host.ItemStack, price int, outOfStock bool) (TradingRecipe, bool) {
	rec, ok := SellingRecipe(r.deps.Currency, item, price, outOfStock)
	if !ok && r.deps.Log != nil {
		r.deps.Log.Printf("%s has an invalid cost %d for %s", sk, price, item.Item)
	}
	return rec, ok
}

func (r *Registry) buyingRecipe(sk *Shopkeeper, item host.ItemStack, price int, outOfStock bool) (TradingRecipe, bool) {
	rec, ok := BuyingRecipe(r.deps.Currency, item, price, outOfStock)
	if !ok && r.deps.Log != nil {
		r.deps.Log.Printf("%s has an invalid cost %d for %s", sk, price, item.Item)
	}
	return rec, ok
}

// ReconcileOffers applies a player-submitted draft positionally against the
// existing offer list: unchanged positions are kept, differing ones replaced,
// trailing entries appended, and nil draft positions removed. The returned
// count is 0 exactly when nothing changed, letting callers report "no
// changes" distinctly from "N offers changed".
func ReconcileOffers(existing []TradingOffer, draft []*TradingOffer) ([]TradingOffer, int) {
	changed := 0
	out := make([]TradingOffer, 0, len(draft))
	for i, d := range draft {
		if d == nil {
			if i < len(existing) {
				changed++
			}
			continue
		}
		if !d.valid() {
			if i < len(existing) {
				changed++
			}
			continue
		}
		if i < len(existing) && existing[i].equalItems(*d) {
			out = append(out, existing[i])
			continue
		}
		out = append(out, *d)
		changed++
	}
	// Existing offers beyond the draft's length are removed.
	if len(draft) < len(existing) {
		changed += len(existing) - len(draft)
	}
	return out, changed
}

// ReconcilePriceOffers is the priced-offer analogue of ReconcileOffers; a
// draft entry with a changed price but unchanged item still counts as a
// replacement.
func ReconcilePriceOffers(existing []PriceOffer, draft []*PriceOffer) ([]PriceOffer, int) {
	changed := 0
	out := make([]PriceOffer, 0, len(draft))
	for i, d := range draft {
		if d == nil || !d.valid() {
			if i < len(existing) {
				changed++
			}
			continue
		}
		if i < len(existing) && existing[i] == *d {
			out = append(out, existing[i])
			continue
		}
		out = append(out, *d)
		changed++
	}
	if len(draft) < len(existing) {
		changed += len(existing) - len(draft)
	}
	return out, changed
}
