package domain

import (
	"github.com/shopspring/decimal"
)

// CatalogItem is a sellable product as served by the catalog API. Price is
// the legacy name for RetailPrice; either may be populated.
type CatalogItem struct {
	ID                 int64            `json:"id"`
	Name               string           `json:"name"`
	ImageURL           string           `json:"image_url"`
	RetailPrice        decimal.Decimal  `json:"retail_price"`
	Price              decimal.Decimal  `json:"price"`
	WholesalePrice     *decimal.Decimal `json:"wholesale_price,omitempty"`
	WholesaleThreshold *int             `json:"wholesale_threshold,omitempty"`
	Stock              int              `json:"stock"`
}

// Retail returns RetailPrice, falling back to Price when RetailPrice is zero.
func (c CatalogItem) Retail() decimal.Decimal {
	if !c.RetailPrice.IsZero() {
		return c.RetailPrice
	}
	return c.Price
}

// CartLine is one product in a cart. Prices and display fields are a
// snapshot taken when the product was first added.
type CartLine struct {
	ID                 int64            `json:"id"`
	Name               string           `json:"name"`
	ImageURL           string           `json:"image_url"`
	RetailPrice        decimal.Decimal  `json:"retail_price"`
	WholesalePrice     *decimal.Decimal `json:"wholesale_price,omitempty"`
	WholesaleThreshold int              `json:"wholesale_threshold,omitempty"`
	Quantity           int              `json:"quantity"`
}

// NewLine snapshots item into a line with quantity 1.
func NewLine(item CatalogItem) CartLine {
	line := CartLine{
		ID:          item.ID,
		Name:        item.Name,
		ImageURL:    item.ImageURL,
		RetailPrice: item.Retail(),
		Quantity:    1,
	}
	if item.WholesalePrice != nil {
		w := *item.WholesalePrice
		line.WholesalePrice = &w
	}
	if item.WholesaleThreshold != nil && *item.WholesaleThreshold > 0 {
		line.WholesaleThreshold = *item.WholesaleThreshold
	}
	return line
}

// WholesaleApplies reports whether the line's quantity has reached its
// wholesale threshold. The comparison is inclusive. A zero threshold or a
// zero wholesale price means no wholesale tier.
func (l CartLine) WholesaleApplies() bool {
	return l.WholesaleThreshold > 0 &&
		l.WholesalePrice != nil && l.WholesalePrice.IsPositive() &&
		l.Quantity >= l.WholesaleThreshold
}

// UnitPrice is the effective per-unit price at the line's current quantity.
func (l CartLine) UnitPrice() decimal.Decimal {
	if l.WholesaleApplies() {
		return *l.WholesalePrice
	}
	return l.RetailPrice
}

// LineTotal is UnitPrice times Quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Clone returns a copy that shares no pointers with l.
func (l CartLine) Clone() CartLine {
	if l.WholesalePrice != nil {
		w := *l.WholesalePrice
		l.WholesalePrice = &w
	}
	return l
}
