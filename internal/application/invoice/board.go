package invoice

import (
	"context"
	"sync"

	"github.com/erp/invoicedesk/internal/domain/identity"
	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/erp/invoicedesk/internal/domain/shared"
	"go.uber.org/zap"
)

// Row is a list entry decorated for display
type Row struct {
	Invoice   invoice.Invoice       `json:"invoice"`
	TypeLabel string                `json:"type_label"`
	Display   invoice.DisplayStatus `json:"display"`
	Actions   []string              `json:"actions"`
	Busy      map[BusyClass]bool    `json:"busy"`
}

// BoardSnapshot is the current state of the list screen
type BoardSnapshot struct {
	Filters       []invoice.Filter `json:"filters"`
	SelectedIndex int              `json:"selected_index"`
	Rows          []Row            `json:"rows"`
	Page          int              `json:"page"`
	PageSize      int              `json:"page_size"`
	TotalPages    int              `json:"total_pages"`
	TotalItems    int64            `json:"total_items"`
}

// Board is the page-level controller of the list screen.
// It owns the user, the filter selection, paging and the list snapshot,
// and implements Refresher for the action engine.
type Board struct {
	gateway  InvoiceGateway
	registry LoadingRegistry
	logger   *zap.Logger

	mu       sync.RWMutex
	user     *identity.User
	selector *invoice.FilterSelector
	page     int
	pageSize int
	current  *InvoicePage
}

// NewBoard creates a Board with no user and the default page
func NewBoard(gateway InvoiceGateway, registry LoadingRegistry, logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := shared.DefaultFilter()
	return &Board{
		gateway:  gateway,
		registry: registry,
		logger:   logger,
		selector: invoice.NewFilterSelector(nil),
		page:     def.Page,
		pageSize: def.PageSize,
	}
}

// SetUser replaces the user and rebuilds the filter list
func (b *Board) SetUser(user *identity.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.user = user
	b.selector.SetUser(user)
}

// User returns the current user, nil while unresolved
func (b *Board) User() *identity.User {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.user
}

// SelectFilter changes the selected filter and returns the effective index
func (b *Board) SelectFilter(index int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selector.Select(index)
	b.page = 1
	return b.selector.SelectedIndex()
}

// SetPage changes paging; non-positive values keep the defaults
func (b *Board) SetPage(page, pageSize int) {
	f := shared.Filter{Page: page, PageSize: pageSize}.Normalize()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.page = f.Page
	b.pageSize = f.PageSize
}

// Refresh re-fetches the list for the selected filter
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.RLock()
	selected, ok := b.selector.Selected()
	page, pageSize := b.page, b.pageSize
	b.mu.RUnlock()
	if !ok {
		return nil
	}

	result, err := b.gateway.FetchInvoiceList(ctx, selected.APIType, page, pageSize)
	if err != nil {
		b.logger.Warn("Failed to fetch invoice list",
			zap.String("filter", string(selected.APIType)),
			zap.Error(err))
		return err
	}

	b.mu.Lock()
	b.current = result
	b.mu.Unlock()
	return nil
}

// Find returns the document with the id from the current snapshot
func (b *Board) Find(id int64) (*invoice.Invoice, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return nil, false
	}
	for i := range b.current.Items {
		if b.current.Items[i].ID == id {
			inv := b.current.Items[i]
			return &inv, true
		}
	}
	return nil, false
}

// Snapshot returns the filters and the decorated rows.
// Display status and actions are derived from the persisted status on every call.
func (b *Board) Snapshot(ctx context.Context) BoardSnapshot {
	b.mu.RLock()
	user := b.user
	snap := BoardSnapshot{
		Filters:       b.selector.Filters(),
		SelectedIndex: b.selector.SelectedIndex(),
		Page:          b.page,
		PageSize:      b.pageSize,
		Rows:          make([]Row, 0),
	}
	var items []invoice.Invoice
	if b.current != nil {
		items = append(items, b.current.Items...)
		snap.TotalPages = b.current.TotalPages
		snap.TotalItems = b.current.TotalItems
	}
	b.mu.RUnlock()

	for i := range items {
		inv := &items[i]
		snap.Rows = append(snap.Rows, Row{
			Invoice:   *inv,
			TypeLabel: inv.Type.Label(),
			Display:   inv.Display(),
			Actions:   invoice.AllowedActions(user, inv),
			Busy:      b.busyFlags(ctx, inv.ID),
		})
	}
	return snap
}

func (b *Board) busyFlags(ctx context.Context, id int64) map[BusyClass]bool {
	flags := make(map[BusyClass]bool, len(BusyClasses()))
	for _, class := range BusyClasses() {
		busy, err := b.registry.IsBusy(ctx, class, id)
		if err != nil {
			b.logger.Warn("Failed to read busy flag", zap.Int64("invoice_id", id), zap.Error(err))
			continue
		}
		flags[class] = busy
	}
	return flags
}
