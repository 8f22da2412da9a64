package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"studio-pro/internal/domain"
)

// DefaultPrices is the studio's published price list.
var DefaultPrices = map[domain.Category]decimal.Decimal{
	domain.CategoryPortrait: decimal.NewFromInt(199),
	domain.CategoryEvent:    decimal.NewFromInt(499),
	domain.CategoryWedding:  decimal.NewFromInt(1499),
}

type Table struct {
	prices map[domain.Category]decimal.Decimal
}

// New copies prices into a table. A nil or empty map yields DefaultPrices.
func New(prices map[domain.Category]decimal.Decimal) *Table {
	if len(prices) == 0 {
		prices = DefaultPrices
	}
	t := &Table{prices: make(map[domain.Category]decimal.Decimal, len(prices))}
	for c, p := range prices {
		t.prices[c] = domain.Round(p)
	}
	return t
}

func (t *Table) Price(category domain.Category) (decimal.Decimal, error) {
	p, ok := t.prices[category]
	if !ok {
		return decimal.Zero, domain.Errorf(domain.ErrUnknownCategory, "%q", category)
	}
	return p, nil
}

type Entry struct {
	Category domain.Category `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

// Entries lists the table ordered by price.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.prices))
	for c, p := range t.prices {
		out = append(out, Entry{Category: c, Price: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price.Equal(out[j].Price) {
			return out[i].Category < out[j].Category
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
