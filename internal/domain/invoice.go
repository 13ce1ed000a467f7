package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is issued once per order, on its first entry into confirmed.
type Invoice struct {
	ID        uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID   uint64          `json:"orderId" gorm:"not null;uniqueIndex"`
	Number    string          `json:"number" gorm:"size:64;not null;uniqueIndex"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	IssuedAt  time.Time       `json:"issuedAt"`
	Lifecycle Lifecycle       `json:"-" gorm:"size:16;not null;default:'active'"`
}
