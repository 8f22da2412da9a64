package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-pro/internal/domain"
)

func TestPrice(t *testing.T) {
	table := New(nil)

	for category, want := range map[domain.Category]int64{
		domain.CategoryPortrait: 199,
		domain.CategoryEvent:    499,
		domain.CategoryWedding:  1499,
	} {
		got, err := table.Price(category)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(want)), "%s = %s", category, got)
	}
}

func TestPrice_UnknownCategory(t *testing.T) {
	_, err := New(nil).Price("newborn")
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)
}

func TestNew_CustomTable(t *testing.T) {
	table := New(map[domain.Category]decimal.Decimal{
		"newborn":               decimal.RequireFromString("249.999"),
		domain.CategoryPortrait: decimal.NewFromInt(150),
	})

	p, err := table.Price("newborn")
	require.NoError(t, err)
	assert.Equal(t, "250", p.String())

	_, err = table.Price(domain.CategoryWedding)
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)

	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.CategoryPortrait, entries[0].Category)
}
