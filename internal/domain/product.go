package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle replaces nullable deleted-at checks. Every read path filters on LifecycleActive.
type Lifecycle string

const (
	LifecycleActive      Lifecycle = "active"
	LifecycleSoftDeleted Lifecycle = "soft_deleted"
)

// Product is this service's read model of a catalog row. Only StockQuantity is ever written here.
type Product struct {
	ID                    uint64              `json:"id" gorm:"primaryKey;autoIncrement"`
	Name                  string              `json:"name" gorm:"size:255;not null"`
	Price                 decimal.Decimal     `json:"price" gorm:"type:decimal(12,2);not null"`
	DiscountPrice         decimal.NullDecimal `json:"discountPrice" gorm:"type:decimal(12,2)"`
	DiscountActive        bool                `json:"discountActive" gorm:"not null;default:false"`
	StockQuantity         *int64              `json:"stockQuantity"`
	IsActive              bool                `json:"isActive" gorm:"not null;default:true"`
	InstallationAvailable bool                `json:"installationAvailable" gorm:"not null;default:false"`
	InstallationFee       decimal.Decimal     `json:"installationFee" gorm:"type:decimal(12,2);not null;default:0"`
	Lifecycle             Lifecycle           `json:"-" gorm:"size:16;not null;default:'active';index"`
	CreatedAt             time.Time           `json:"createdAt"`
	UpdatedAt             time.Time           `json:"updatedAt"`
}

// EffectivePrice is the discount price when a usable discount is switched on, else the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountActive && p.DiscountPrice.Valid &&
		p.DiscountPrice.Decimal.IsPositive() && p.DiscountPrice.Decimal.LessThan(p.Price) {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}

func (p Product) Purchasable() bool {
	return p.IsActive && p.Lifecycle == LifecycleActive
}

func (p Product) TracksStock() bool {
	return p.StockQuantity != nil
}
