package shop

import "shopcraft.gg/internal/host"

// TradingOffer is one configured item-for-item trade: one or two demanded
// items in exchange for a result item.
type TradingOffer struct {
	Result host.ItemStack
	Item1  host.ItemStack
	Item2  host.ItemStack // zero value when unused
}

func (o TradingOffer) valid() bool {
	if o.Result.Item == "" || o.Result.Count <= 0 {
		return false
	}
	if o.Item1.Item == "" || o.Item1.Count <= 0 {
		return false
	}
	if o.Item2.Item != "" && o.Item2.Count <= 0 {
		return false
	}
	return true
}

func (o TradingOffer) equalItems(p TradingOffer) bool {
	return o.Result == p.Result && o.Item1 == p.Item1 && o.Item2 == p.Item2
}

// PriceOffer is one configured item-for-currency trade.
type PriceOffer struct {
	Item  host.ItemStack
	Price int
}

func (o PriceOffer) valid() bool {
	return o.Item.Item != "" && o.Item.Count > 0 && o.Price > 0
}

// BookOffer prices one written-book title.
type BookOffer struct {
	Title string
	Price int
}

// Offers returns a copy of the shopkeeper's item-for-item offers.
func (sk *Shopkeeper) Offers() []TradingOffer {
	out := make([]TradingOffer, len(sk.offers))
	copy(out, sk.offers)
	return out
}

func (sk *Shopkeeper) AddOffer(o TradingOffer) bool {
	if !o.valid() {
		return false
	}
	sk.offers = append(sk.offers, o)
	sk.MarkDirty()
	return true
}

func (sk *Shopkeeper) RemoveOffer(i int) {
	if i < 0 || i >= len(sk.offers) {
		return
	}
	sk.offers = append(sk.offers[:i], sk.offers[i+1:]...)
	sk.MarkDirty()
}

func (sk *Shopkeeper) ClearOffers() {
	if len(sk.offers) == 0 {
		return
	}
	sk.offers = nil
	sk.MarkDirty()
}

// PriceOffers returns a copy of the shopkeeper's priced offers.
func (sk *Shopkeeper) PriceOffers() []PriceOffer {
	out := make([]PriceOffer, len(sk.priced))
	copy(out, sk.priced)
	return out
}

func (sk *Shopkeeper) AddPriceOffer(o PriceOffer) bool {
	if !o.valid() {
		return false
	}
	sk.priced = append(sk.priced, o)
	sk.MarkDirty()
	return true
}

func (sk *Shopkeeper) RemovePriceOffer(i int) {
	if i < 0 || i >= len(sk.priced) {
		return
	}
	sk.priced = append(sk.priced[:i], sk.priced[i+1:]...)
	sk.MarkDirty()
}

func (sk *Shopkeeper) ClearPriceOffers() {
	if len(sk.priced) == 0 {
		return
	}
	sk.priced = nil
	sk.MarkDirty()
}

func (sk *Shopkeeper) BookOffers() []BookOffer {
	out := make([]BookOffer, len(sk.books))
	copy(out, sk.books)
	return out
}

func (sk *Shopkeeper) SetBookOffer(title string, price int) {
	for i := range sk.books {
		if sk.books[i].Title == title {
			sk.books[i].Price = price
			sk.MarkDirty()
			return
		}
	}
	sk.books = append(sk.books, BookOffer{Title: title, Price: price})
	sk.MarkDirty()
}
