package shop

// Behavior is the capability set distinguishing the shop types: computing
// trading recipes from configured offers and stock, and persisting
// type-specific record fields.
type Behavior interface {
	Type() ShopType
	// Recipes resolves the currently tradable recipes. Offers whose price
	// cannot be represented in currency items are dropped (with a logged
	// warning) rather than failing the whole list.
	Recipes(sk *Shopkeeper) []TradingRecipe
	SaveExtra(sk *Shopkeeper, rec *Record)
	LoadExtra(sk *Shopkeeper, rec *Record) error
}

// adminBehavior trades from the configured offer list with unlimited stock.
type adminBehavior struct{}

func (adminBehavior) Type() ShopType { return TypeAdmin }

func (adminBehavior) Recipes(sk *Shopkeeper) []TradingRecipe {
	out := make([]TradingRecipe, 0, len(sk.offers))
	for _, o := range sk.offers {
		out = append(out, TradingRecipe{
			Result: o.Result,
			Item1:  o.Item1,
			Item2:  o.Item2,
		})
	}
	return out
}

func (adminBehavior) SaveExtra(*Shopkeeper, *Record) {}
func (adminBehavior) LoadExtra(*Shopkeeper, *Record) error { return nil }

// sellingBehavior sells items out of the backing chest for currency.
type sellingBehavior struct{}

func (sellingBehavior) Type() ShopType { return TypeSelling }

func (sellingBehavior) Recipes(sk *Shopkeeper) []TradingRecipe {
	container, haveContainer := sk.StockContainer()
	out := make([]TradingRecipe, 0, len(sk.priced))
	for _, o := range sk.priced {
		outOfStock := !haveContainer || container.Count(o.Item.Item) < o.Item.Count
		r, ok := sk.reg.sellingRecipe(sk, o.Item, o.Price, outOfStock)
		if !ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (sellingBehavior) SaveExtra(*Shopkeeper, *Record) {}
func (sellingBehavior) LoadExtra(*Shopkeeper, *Record) error { return nil }

// buyingBehavior buys items from players, paying low currency out of the
// chest.
type buyingBehavior struct{}

func (buyingBehavior) Type() ShopType { return TypeBuying }

func (buyingBehavior) Recipes(sk *Shopkeeper) []TradingRecipe {
	available := sk.CurrencyInContainer()
	out := make([]TradingRecipe, 0, len(sk.priced))
	for _, o := range sk.priced {
		outOfStock := available < o.Price
		r, ok := sk.reg.buyingRecipe(sk, o.Item, o.Price, outOfStock)
		if !ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (buyingBehavior) SaveExtra(*Shopkeeper, *Record) {}
func (buyingBehavior) LoadExtra(*Shopkeeper, *Record) error { return nil }

// tradingBehavior trades item-for-item out of the backing chest.
type tradingBehavior struct{}

func (tradingBehavior) Type() ShopType { return TypeTrading }

func (tradingBehavior) Recipes(sk *Shopkeeper) []TradingRecipe {
	container, haveContainer := sk.StockContainer()
	out := make([]TradingRecipe, 0, len(sk.offers))
	for _, o := range sk.offers {
		outOfStock := !haveContainer || container.Count(o.Result.Item) < o.Result.Count
		out = append(out, TradingRecipe{
			Result:     o.Result,
			Item1:      o.Item1,
			Item2:      o.Item2,
			OutOfStock: outOfStock,
		})
	}
	return out
}

func (tradingBehavior) SaveExtra(*Shopkeeper, *Record) {}
func (tradingBehavior) LoadExtra(*Shopkeeper, *Record) error { return nil }
