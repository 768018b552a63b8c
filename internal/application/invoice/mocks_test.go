package invoice

import (
	"context"
	"sync"

	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockGateway is a mock implementation of InvoiceGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) FetchInvoiceList(ctx context.Context, filterType invoice.Type, page, pageSize int) (*InvoicePage, error) {
	args := m.Called(ctx, filterType, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*InvoicePage), args.Error(1)
}

func (m *MockGateway) FetchInvoice(ctx context.Context, id int64) (*invoice.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockGateway) UpdateInvoice(ctx context.Context, id int64, inv *invoice.Invoice) error {
	args := m.Called(ctx, id, inv)
	return args.Error(0)
}

func (m *MockGateway) DeleteInvoice(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGateway) AdvanceInvoiceStatus(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGateway) ReturnDeposit(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGateway) DecidePurchaseRequest(ctx context.Context, id int64, approved bool) error {
	args := m.Called(ctx, id, approved)
	return args.Error(0)
}

// MockInteraction is a mock implementation of Interaction
type MockInteraction struct {
	mock.Mock
}

func (m *MockInteraction) Confirm(ctx context.Context, title, message string) bool {
	args := m.Called(ctx, title, message)
	return args.Bool(0)
}

func (m *MockInteraction) PromptText(ctx context.Context, title, message, placeholder string) (string, bool) {
	args := m.Called(ctx, title, message, placeholder)
	return args.String(0), args.Bool(1)
}

// MockRefresher is a mock implementation of Refresher
type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockInvoiceRepository is a mock implementation of invoice.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id int64) (*invoice.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindPage(ctx context.Context, filterType invoice.Type, filter shared.Filter) ([]invoice.Invoice, int64, error) {
	args := m.Called(ctx, filterType, filter)
	return args.Get(0).([]invoice.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, inv *invoice.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Delete(ctx context.Context, id int64, version int) error {
	args := m.Called(ctx, id, version)
	return args.Error(0)
}

type notification struct {
	kind    NotificationKind
	message string
}

// recordingNotifier keeps every notification in order
type recordingNotifier struct {
	mu    sync.Mutex
	items []notification
}

func (n *recordingNotifier) Notify(_ context.Context, kind NotificationKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, notification{kind, message})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification, len(n.items))
	copy(out, n.items)
	return out
}

type recordedAction struct {
	workflow string
	outcome  string
}

type recordingRecorder struct {
	mu      sync.Mutex
	actions []recordedAction
}

func (r *recordingRecorder) RecordAction(_ context.Context, workflow, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, recordedAction{workflow, outcome})
}
