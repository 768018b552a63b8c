package persistence

import (
	"context"
	"testing"

	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormStockItemRepository(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormStockItemRepository(db.DB)
	ctx := context.Background()

	items := []*invoice.StockItem{
		{Code: "A-1", Name: "Cable", Unit: "m", Quantity: decimal.NewFromInt(0)},
		{Code: "A-2", Name: "Plug", Unit: "pcs", Quantity: decimal.NewFromInt(-2)},
		{Code: "A-3", Name: "Switch", Unit: "pcs", Quantity: decimal.NewFromFloat(1.5)},
	}
	for _, item := range items {
		require.NoError(t, repo.Save(ctx, item))
	}

	t.Run("find by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, items[2].ID)
		require.NoError(t, err)
		assert.Equal(t, "Switch", found.Name)
		assert.True(t, decimal.NewFromFloat(1.5).Equal(found.Quantity))
		assert.False(t, found.IsZeroBalance())
	})

	t.Run("zero balance lists empty and negative items", func(t *testing.T) {
		result, total, err := repo.FindZeroBalance(ctx, shared.Filter{OrderBy: "code", OrderDir: "asc"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, result, 2)
		assert.Equal(t, "A-1", result[0].Code)
		assert.Equal(t, "A-2", result[1].Code)
	})

	t.Run("update keeps the row", func(t *testing.T) {
		items[0].Quantity = decimal.NewFromInt(4)
		require.NoError(t, repo.Save(ctx, items[0]))

		_, total, err := repo.FindZeroBalance(ctx, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("missing item", func(t *testing.T) {
		_, err := repo.FindByID(ctx, 999)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
