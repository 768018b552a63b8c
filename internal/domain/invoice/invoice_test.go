package invoice

import (
	"errors"
	"testing"

	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvoice(t *testing.T) {
	inv, err := NewInvoice(TypeWithdrawal, "Sami")
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, inv.Status)
	assert.Equal(t, 1, inv.Version)
	assert.Empty(t, inv.Items)

	_, err = NewInvoice(PseudoDone, "Sami")
	assert.Error(t, err)
}

func TestInvoice_AddItem(t *testing.T) {
	inv, _ := NewInvoice(TypeAddition, "")

	require.NoError(t, inv.AddItem(1, "Bolt", "pcs", decimal.NewFromInt(3)))
	assert.Len(t, inv.Items, 1)

	assert.Error(t, inv.AddItem(1, "", "pcs", decimal.NewFromInt(1)))
	assert.Error(t, inv.AddItem(1, "Nut", "pcs", decimal.Zero))

	inv.Status = StatusConfirmed
	assert.Error(t, inv.AddItem(1, "Nut", "pcs", decimal.NewFromInt(1)))
}

func TestInvoice_AdvanceStatus(t *testing.T) {
	tests := []struct {
		name   string
		typ    Type
		from   Status
		expect Status
	}{
		{"withdrawal draft goes to accreditation", TypeWithdrawal, StatusDraft, StatusAccreditation},
		{"deposit draft goes to accreditation", TypeDeposit, StatusDraft, StatusAccreditation},
		{"addition draft is confirmed", TypeAddition, StatusDraft, StatusConfirmed},
		{"purchase request draft is accepted", TypePurchaseRequest, StatusDraft, StatusAccepted},
		{"accreditation is confirmed", TypeWithdrawal, StatusAccreditation, StatusConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := doc(tt.typ, tt.from)
			require.NoError(t, inv.AdvanceStatus())
			assert.Equal(t, tt.expect, inv.Status)
			if tt.expect == StatusConfirmed {
				assert.NotNil(t, inv.ConfirmedAt)
			}
		})
	}

	t.Run("final status cannot advance", func(t *testing.T) {
		err := doc(TypeAddition, StatusConfirmed).AdvanceStatus()
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
	})
}

func depositWithItems() *Invoice {
	return &Invoice{
		ID:     1,
		Type:   TypeDeposit,
		Status: StatusConfirmed,
		Items: []Item{
			{ID: 10, Name: "Drill", Quantity: decimal.NewFromInt(2)},
			{ID: 11, Name: "Ladder", Quantity: decimal.NewFromInt(1)},
		},
	}
}

func TestInvoice_ReturnDeposit(t *testing.T) {
	t.Run("nil returns everything", func(t *testing.T) {
		inv := depositWithItems()
		require.NoError(t, inv.ReturnDeposit(nil))
		assert.Equal(t, StatusReturned, inv.Status)
		assert.Equal(t, CategoryFinalSuccess, inv.Category())
	})

	t.Run("partial quantities", func(t *testing.T) {
		inv := depositWithItems()
		require.NoError(t, inv.ReturnDeposit(map[int64]decimal.Decimal{10: decimal.NewFromInt(1)}))
		assert.Equal(t, StatusPartiallyReturned, inv.Status)
		assert.True(t, inv.Items[0].Outstanding().Equal(decimal.NewFromInt(1)))

		require.NoError(t, inv.ReturnDeposit(nil))
		assert.Equal(t, StatusReturned, inv.Status)
	})

	t.Run("rejects excess and unknown items", func(t *testing.T) {
		inv := depositWithItems()
		assert.Error(t, inv.ReturnDeposit(map[int64]decimal.Decimal{10: decimal.NewFromInt(5)}))
		assert.Error(t, inv.ReturnDeposit(map[int64]decimal.Decimal{99: decimal.NewFromInt(1)}))
		assert.Error(t, inv.ReturnDeposit(map[int64]decimal.Decimal{10: decimal.NewFromInt(-1)}))
	})

	t.Run("only confirmed deposits", func(t *testing.T) {
		assert.Error(t, doc(TypeWithdrawal, StatusConfirmed).ReturnDeposit(nil))
		assert.Error(t, doc(TypeDeposit, StatusDraft).ReturnDeposit(nil))
	})
}

func TestInvoice_Decide(t *testing.T) {
	inv := doc(TypePurchaseRequest, StatusDraft)
	require.NoError(t, inv.Decide(false))
	assert.Equal(t, StatusRejected, inv.Status)
	assert.Error(t, inv.Decide(true))

	inv = doc(TypePurchaseRequest, StatusDraft)
	require.NoError(t, inv.Decide(true))
	assert.Equal(t, CategoryFinalAccepted, inv.Category())

	assert.Error(t, doc(TypeWithdrawal, StatusDraft).Decide(true))
}

func TestInvoice_MergeComment(t *testing.T) {
	inv := doc(TypePurchaseRequest, StatusDraft)
	inv.MergeComment("  ")
	assert.Equal(t, "", inv.Comment)

	inv.MergeComment("over budget")
	assert.Equal(t, "over budget", inv.Comment)

	inv.MergeComment("vendor unavailable")
	assert.Equal(t, "over budget\nvendor unavailable", inv.Comment)
}

func TestInvoice_IsDeleteBlocked(t *testing.T) {
	assert.True(t, doc(TypeAddition, StatusConfirmed).IsDeleteBlocked())
	assert.True(t, doc(TypeDeposit, StatusReturned).IsDeleteBlocked())
	assert.False(t, doc(TypeDeposit, StatusPartiallyReturned).IsDeleteBlocked())
	assert.False(t, doc(TypeAddition, StatusDraft).IsDeleteBlocked())
}

func TestInvoice_Details(t *testing.T) {
	inv := doc(TypeAddition, StatusDraft)
	inv.ApplyDetails(Details{Comment: "c", MachineName: "m", ClientName: "x"})
	d := inv.Details()
	assert.Equal(t, "c", d.Comment)
	assert.Equal(t, "m", d.MachineName)
	assert.Equal(t, "x", d.ClientName)
	assert.Equal(t, StatusDraft, inv.Status)
}
