package services

import (
	"fmt"
	"sort"

	"furniture-order-service/internal/domain"

	"github.com/shopspring/decimal"
)

// PricingRules are the configuration values checkout consumes as given.
type PricingRules struct {
	TaxRate               decimal.Decimal
	DeliveryFee           decimal.Decimal
	InstallationFee       decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
}

type Totals struct {
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	DeliveryFee     decimal.Decimal
	InstallationFee decimal.Decimal
	Total           decimal.Decimal
}

// Pricer freezes catalog prices into line items.
type Pricer struct {
	rules PricingRules
}

func NewPricer(rules PricingRules) *Pricer {
	return &Pricer{rules: rules}
}

// MergeLines validates requested lines and folds duplicate products together.
// The result is ordered by product id.
func MergeLines(reqs []domain.LineRequest) ([]domain.LineRequest, error) {
	qty := make(map[uint64]int64, len(reqs))
	for _, r := range reqs {
		if r.ProductID == 0 {
			return nil, &domain.ValidationError{Field: "productId", Reason: "must be set"}
		}
		if r.Quantity <= 0 {
			return nil, &domain.ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be positive for product %d", r.ProductID)}
		}
		qty[r.ProductID] += r.Quantity
	}
	if len(qty) == 0 {
		return nil, &domain.EmptyOrderError{}
	}
	out := make([]domain.LineRequest, 0, len(qty))
	for id, q := range qty {
		out = append(out, domain.LineRequest{ProductID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// Snapshot prices each request against the given product rows.
func (p *Pricer) Snapshot(products []domain.Product, reqs []domain.LineRequest, installation bool) ([]domain.OrderLineItem, error) {
	byID := make(map[uint64]domain.Product, len(products))
	for _, prod := range products {
		byID[prod.ID] = prod
	}

	items := make([]domain.OrderLineItem, 0, len(reqs))
	for _, r := range reqs {
		prod, ok := byID[r.ProductID]
		if !ok || !prod.Purchasable() {
			return nil, &domain.ProductUnavailableError{ProductID: r.ProductID}
		}
		qty := decimal.NewFromInt(r.Quantity)
		unit := prod.EffectivePrice()

		item := domain.OrderLineItem{
			ProductID:       prod.ID,
			ProductName:     prod.Name,
			Quantity:        r.Quantity,
			UnitPrice:       unit,
			TotalPrice:      unit.Mul(qty),
			InstallationFee: decimal.Zero,
			Lifecycle:       domain.LifecycleActive,
		}
		if installation && prod.InstallationAvailable {
			item.InstallationRequired = true
			item.InstallationFee = p.installationPerUnit(prod).Mul(qty)
		}
		items = append(items, item)
	}
	return items, nil
}

func (p *Pricer) installationPerUnit(prod domain.Product) decimal.Decimal {
	if prod.InstallationFee.IsPositive() {
		return prod.InstallationFee
	}
	return p.rules.InstallationFee
}

// Totals derives the order money fields from frozen line items.
func (p *Pricer) Totals(items []domain.OrderLineItem) Totals {
	t := Totals{Subtotal: decimal.Zero, InstallationFee: decimal.Zero}
	for _, it := range items {
		t.Subtotal = t.Subtotal.Add(it.TotalPrice)
		t.InstallationFee = t.InstallationFee.Add(it.InstallationFee)
	}
	t.Tax = t.Subtotal.Mul(p.rules.TaxRate).Round(2)
	t.DeliveryFee = p.rules.DeliveryFee
	if p.rules.FreeDeliveryThreshold.IsPositive() && t.Subtotal.GreaterThanOrEqual(p.rules.FreeDeliveryThreshold) {
		t.DeliveryFee = decimal.Zero
	}
	t.Total = t.Subtotal.Add(t.Tax).Add(t.DeliveryFee).Add(t.InstallationFee)
	return t
}
