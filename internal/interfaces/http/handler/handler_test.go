package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/erp/invoicedesk/internal/domain/identity"
	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/erp/invoicedesk/internal/interfaces/http/dto"
	"github.com/erp/invoicedesk/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// memoryRepository is an in-memory InvoiceRepository with version checks
type memoryRepository struct {
	mu     sync.Mutex
	nextID int64
	docs   map[int64]invoice.Invoice
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{docs: make(map[int64]invoice.Invoice)}
}

func cloneInvoice(inv invoice.Invoice) invoice.Invoice {
	inv.Items = append([]invoice.Item(nil), inv.Items...)
	return inv
}

func (r *memoryRepository) FindByID(_ context.Context, id int64) (*invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.docs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := cloneInvoice(inv)
	return &out, nil
}

func (r *memoryRepository) FindPage(_ context.Context, filterType invoice.Type, filter shared.Filter) ([]invoice.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, byStatus := invoice.StatusForPseudo(filterType)
	matched := make([]invoice.Invoice, 0)
	for _, inv := range r.docs {
		switch {
		case filterType.IsOperation() && inv.Type == filterType:
		case byStatus && inv.Status == status:
		default:
			continue
		}
		matched = append(matched, cloneInvoice(inv))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	start := min(filter.Offset(), len(matched))
	end := min(start+filter.PageSize, len(matched))
	return matched[start:end], total, nil
}

func (r *memoryRepository) Save(_ context.Context, inv *invoice.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv.ID == 0 {
		r.nextID++
		inv.ID = r.nextID
		for i := range inv.Items {
			inv.Items[i].ID = inv.ID*100 + int64(i+1)
		}
		r.docs[inv.ID] = cloneInvoice(*inv)
		return nil
	}
	stored, ok := r.docs[inv.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != inv.Version {
		return shared.ErrConcurrencyConflict
	}
	inv.Version++
	r.docs[inv.ID] = cloneInvoice(*inv)
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id int64, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[id]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != version || stored.IsDeleteBlocked() {
		return shared.ErrConcurrencyConflict
	}
	delete(r.docs, id)
	return nil
}

// seed stores a document of the type in the given status.
// Whole-number quantities are used so returned quantities compare exactly.
func (r *memoryRepository) seed(t *testing.T, typ invoice.Type, status invoice.Status) *invoice.Invoice {
	t.Helper()
	inv, err := invoice.NewInvoice(typ, "Salem")
	require.NoError(t, err)
	require.NoError(t, inv.AddItem(1, "Cement", "bag", decimal.NewFromInt(10)))
	require.NoError(t, inv.AddItem(2, "Sand", "m3", decimal.NewFromInt(4)))
	inv.Status = status
	require.NoError(t, r.Save(context.Background(), inv))
	return inv
}

func mustUser(t *testing.T, username string, caps ...identity.Capability) *identity.User {
	t.Helper()
	u, err := identity.NewUser(1, username, caps...)
	require.NoError(t, err)
	return u
}

// withUser stands in for the JWT and current user middleware
func withUser(user *identity.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(middleware.CurrentUserKey, user)
		}
		c.Set(middleware.RequestIDKey, "req-test")
		c.Next()
	}
}

type registrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

func newTestRouter(user *identity.User, handlers ...registrar) *gin.Engine {
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(withUser(user))
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}
	return r
}

func perform(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// envelope decodes the response with typed data
type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode[json.RawMessage](t, w)
	require.NotNil(t, env.Error, w.Body.String())
	return env.Error.Code
}
