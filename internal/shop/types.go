// Package shop implements the shopkeeper core: identity and lifecycle,
// the registry with its spatial chunk index, shop behaviors and objects,
// the player-shop ownership model, and trading-recipe computation.
package shop

import (
	"errors"

	"github.com/google/uuid"

	"shopcraft.gg/internal/host"
)

// ShopType is the behavioral category of a shopkeeper.
type ShopType string

const (
	TypeAdmin   ShopType = "admin"
	TypeSelling ShopType = "player-sell"
	TypeBuying  ShopType = "player-buy"
	TypeTrading ShopType = "player-trade"
)

func (t ShopType) IsPlayerShop() bool { return t != TypeAdmin }

func (t ShopType) Valid() bool {
	switch t {
	case TypeAdmin, TypeSelling, TypeBuying, TypeTrading:
		return true
	}
	return false
}

// ObjectType is the rendering strategy for a shopkeeper's world presence.
type ObjectType string

const (
	ObjectEntity  ObjectType = "entity"
	ObjectSign    ObjectType = "sign"
	ObjectVirtual ObjectType = "virtual"
)

func (t ObjectType) Valid() bool {
	switch t {
	case ObjectEntity, ObjectSign, ObjectVirtual:
		return true
	}
	return false
}

// NeedsLocation reports whether this object type requires a spawn location.
func (t ObjectType) NeedsLocation() bool { return t != ObjectVirtual }

var (
	ErrCreation = errors.New("shopkeeper creation failed")
	ErrLoad     = errors.New("shopkeeper load failed")
)

// CreationData is a player- or admin-initiated request to create a new
// shopkeeper. Creator may be nil for programmatic admin-shop creation.
type CreationData struct {
	Type       ShopType
	Object     ObjectType
	EntityKind string

	Name      string
	World     string
	Pos       host.Vec3i
	HasPos    bool
	BlockFace string

	Creator host.Player

	// Player-shop fields.
	OwnerID   uuid.UUID
	OwnerName string
	Container host.Vec3i
}
