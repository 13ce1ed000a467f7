package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartEntry is unique per (UserID, ProductID); quantity updates replace the row's value.
type CartEntry struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    string    `json:"userId" gorm:"size:128;not null;uniqueIndex:idx_cart_user_product"`
	ProductID uint64    `json:"productId" gorm:"not null;uniqueIndex:idx_cart_user_product"`
	Quantity  int64     `json:"quantity" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CartLine is a display row: the stored entry joined with the live product at read time.
type CartLine struct {
	ProductID             uint64          `json:"productId"`
	Quantity              int64           `json:"quantity"`
	Name                  string          `json:"name"`
	UnitPrice             decimal.Decimal `json:"unitPrice"`
	LineTotal             decimal.Decimal `json:"lineTotal"`
	Available             bool            `json:"available"`
	InStock               bool            `json:"inStock"`
	StockQuantity         *int64          `json:"stockQuantity,omitempty"`
	InstallationAvailable bool            `json:"installationAvailable"`
}

// LineRequest asks for a quantity of one product at checkout.
type LineRequest struct {
	ProductID uint64
	Quantity  int64
}
