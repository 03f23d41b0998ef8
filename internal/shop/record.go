package shop

import (
	"fmt"

	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
)

// OfferRecord is the persisted form of one item-for-item offer.
type OfferRecord struct {
	Result host.ItemStack  `yaml:"result"`
	Item1  host.ItemStack  `yaml:"item1"`
	Item2  *host.ItemStack `yaml:"item2,omitempty"`
}

type PriceOfferRecord struct {
	Item  host.ItemStack `yaml:"item"`
	Price int            `yaml:"price"`
}

type BookOfferRecord struct {
	Title string `yaml:"title"`
	Price int    `yaml:"price"`
}

// Record is one shopkeeper's persisted state. Legacy field names ("owner",
// "chestx"/"chesty"/"chestz") are still accepted on load for one deprecated
// cycle while saves migrate to the current keys.
type Record struct {
	ID         int    `yaml:"id"`
	UUID       string `yaml:"unique-id"`
	Type       string `yaml:"type"`
	Object     string `yaml:"object"`
	EntityKind string `yaml:"entity-kind,omitempty"`

	Name      string `yaml:"name,omitempty"`
	World     string `yaml:"world,omitempty"`
	X         int    `yaml:"x"`
	Y         int    `yaml:"y"`
	Z         int    `yaml:"z"`
	HasPos    bool   `yaml:"positioned"`
	BlockFace string `yaml:"block-face,omitempty"`

	OwnerUUID string `yaml:"owner-uuid,omitempty"`
	OwnerName string `yaml:"owner-name,omitempty"`
	// Deprecated: single "uuid:name" field, replaced by owner-uuid/owner-name.
	OwnerLegacy string `yaml:"owner,omitempty"`

	ContainerX *int `yaml:"container-x,omitempty"`
	ContainerY *int `yaml:"container-y,omitempty"`
	ContainerZ *int `yaml:"container-z,omitempty"`
	// Deprecated: replaced by container-x/y/z.
	ChestX *int `yaml:"chestx,omitempty"`
	ChestY *int `yaml:"chesty,omitempty"`
	ChestZ *int `yaml:"chestz,omitempty"`

	Trusted  []string        `yaml:"trusted,omitempty"`
	HireCost *host.ItemStack `yaml:"hire-cost,omitempty"`

	Offers []OfferRecord      `yaml:"offers,omitempty"`
	Prices []PriceOfferRecord `yaml:"prices,omitempty"`
	Books  []BookOfferRecord  `yaml:"books,omitempty"`
}

func (sk *Shopkeeper) toRecord() Record {
	rec := Record{
		ID:         sk.id,
		UUID:       sk.uid.String(),
		Type:       string(sk.typ),
		Object:     string(sk.objType),
		EntityKind: sk.entityKind,
		Name:       sk.name,
		World:      sk.world,
		X:          sk.pos.X,
		Y:          sk.pos.Y,
		Z:          sk.pos.Z,
		HasPos:     sk.hasPos,
		BlockFace:  sk.blockFace,
	}
	if ps := sk.player; ps != nil {
		rec.OwnerUUID = ps.OwnerID.String()
		rec.OwnerName = ps.OwnerName
		cx, cy, cz := ps.Container.X, ps.Container.Y, ps.Container.Z
		rec.ContainerX, rec.ContainerY, rec.ContainerZ = &cx, &cy, &cz
		for _, id := range ps.TrustedList() {
			rec.Trusted = append(rec.Trusted, id.String())
		}
		if ps.hireCost != nil {
			cost := *ps.hireCost
			rec.HireCost = &cost
		}
	}
	for _, o := range sk.offers {
		or := OfferRecord{Result: o.Result, Item1: o.Item1}
		if o.Item2.Item != "" {
			item2 := o.Item2
			or.Item2 = &item2
		}
		rec.Offers = append(rec.Offers, or)
	}
	for _, o := range sk.priced {
		rec.Prices = append(rec.Prices, PriceOfferRecord{Item: o.Item, Price: o.Price})
	}
	for _, o := range sk.books {
		rec.Books = append(rec.Books, BookOfferRecord{Title: o.Title, Price: o.Price})
	}
	if sk.behavior != nil {
		sk.behavior.SaveExtra(sk, &rec)
	}
	return rec
}

// shopkeeperFromRecord rebuilds a shopkeeper in state LOADED. Missing or
// invalid required fields fail the single record, never the whole batch.
func shopkeeperFromRecord(rec Record) (*Shopkeeper, error) {
	typ := ShopType(rec.Type)
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: record %d: unknown shop type %q", ErrLoad, rec.ID, rec.Type)
	}
	objType := ObjectType(rec.Object)
	if !objType.Valid() {
		return nil, fmt.Errorf("%w: record %d: unknown object type %q", ErrLoad, rec.ID, rec.Object)
	}
	if rec.ID <= 0 {
		return nil, fmt.Errorf("%w: record has invalid id %d", ErrLoad, rec.ID)
	}
	uid, err := uuid.Parse(rec.UUID)
	if err != nil {
		return nil, fmt.Errorf("%w: record %d: bad unique-id: %v", ErrLoad, rec.ID, err)
	}
	if objType.NeedsLocation() && !rec.HasPos {
		return nil, fmt.Errorf("%w: record %d: object type %q without location", ErrLoad, rec.ID, objType)
	}

	sk := &Shopkeeper{
		id:         rec.ID,
		uid:        uid,
		typ:        typ,
		objType:    objType,
		entityKind: rec.EntityKind,
		name:       rec.Name,
		world:      rec.World,
		pos:        host.Vec3i{X: rec.X, Y: rec.Y, Z: rec.Z},
		hasPos:     rec.HasPos,
		blockFace:  rec.BlockFace,
		state:      StateLoaded,
		valid:      true,
		acceptsUI:  true,
	}

	if typ.IsPlayerShop() {
		ps, err := playerShopFromRecord(rec)
		if err != nil {
			return nil, err
		}
		sk.player = ps
	}

	for _, or := range rec.Offers {
		o := TradingOffer{Result: or.Result, Item1: or.Item1}
		if or.Item2 != nil {
			o.Item2 = *or.Item2
		}
		if !o.valid() {
			return nil, fmt.Errorf("%w: record %d: invalid offer %+v", ErrLoad, rec.ID, or)
		}
		sk.offers = append(sk.offers, o)
	}
	for _, pr := range rec.Prices {
		o := PriceOffer{Item: pr.Item, Price: pr.Price}
		if !o.valid() {
			return nil, fmt.Errorf("%w: record %d: invalid price offer %+v", ErrLoad, rec.ID, pr)
		}
		sk.priced = append(sk.priced, o)
	}
	for _, br := range rec.Books {
		sk.books = append(sk.books, BookOffer{Title: br.Title, Price: br.Price})
	}
	return sk, nil
}

func playerShopFromRecord(rec Record) (*PlayerShopData, error) {
	ownerRaw := rec.OwnerUUID
	ownerName := rec.OwnerName
	if ownerRaw == "" && rec.OwnerLegacy != "" {
		// Legacy format: "uuid:name".
		ownerRaw = rec.OwnerLegacy
		for i := 0; i < len(rec.OwnerLegacy); i++ {
			if rec.OwnerLegacy[i] == ':' {
				ownerRaw = rec.OwnerLegacy[:i]
				ownerName = rec.OwnerLegacy[i+1:]
				break
			}
		}
	}
	if ownerRaw == "" {
		return nil, fmt.Errorf("%w: record %d: player shop without owner uuid", ErrLoad, rec.ID)
	}
	ownerID, err := uuid.Parse(ownerRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: record %d: bad owner uuid: %v", ErrLoad, rec.ID, err)
	}

	cx, cy, cz := rec.ContainerX, rec.ContainerY, rec.ContainerZ
	if cx == nil || cy == nil || cz == nil {
		cx, cy, cz = rec.ChestX, rec.ChestY, rec.ChestZ
	}
	if cx == nil || cy == nil || cz == nil {
		return nil, fmt.Errorf("%w: record %d: player shop without container coordinates", ErrLoad, rec.ID)
	}

	ps := &PlayerShopData{
		OwnerID:   ownerID,
		OwnerName: ownerName,
		Container: host.Vec3i{X: *cx, Y: *cy, Z: *cz},
		trusted:   map[uuid.UUID]bool{},
	}
	for _, raw := range rec.Trusted {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: bad trusted uuid %q", ErrLoad, rec.ID, raw)
		}
		ps.trusted[id] = true
	}
	if rec.HireCost != nil {
		cost := *rec.HireCost
		if cost.Item == "" || cost.Count <= 0 {
			return nil, fmt.Errorf("%w: record %d: invalid hire cost", ErrLoad, rec.ID)
		}
		ps.hireCost = &cost
	}
	return ps, nil
}
