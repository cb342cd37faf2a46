package domain

import "github.com/shopspring/decimal"

// PricedLine is a cart line with its prices evaluated at its quantity.
type PricedLine struct {
	CartLine
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Wholesale bool            `json:"wholesale"`
}

// Summary is a priced, point-in-time view of a cart.
type Summary struct {
	Lines       []PricedLine    `json:"items"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Summarize prices lines and totals them.
func Summarize(lines []CartLine) Summary {
	s := Summary{Lines: make([]PricedLine, 0, len(lines)), TotalAmount: decimal.Zero}
	for _, l := range lines {
		pl := PricedLine{
			CartLine:  l.Clone(),
			UnitPrice: l.UnitPrice(),
			LineTotal: l.LineTotal(),
			Wholesale: l.WholesaleApplies(),
		}
		s.Lines = append(s.Lines, pl)
		s.TotalItems += l.Quantity
		s.TotalAmount = s.TotalAmount.Add(pl.LineTotal)
	}
	return s
}
