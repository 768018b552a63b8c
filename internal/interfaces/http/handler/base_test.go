package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/erp/invoicedesk/internal/interfaces/http/dto"
	"github.com/erp/invoicedesk/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*gin.Context)
		expected string
	}{
		{
			name:     "from context",
			setup:    func(c *gin.Context) { c.Set(middleware.RequestIDKey, "ctx-id") },
			expected: "ctx-id",
		},
		{
			name:     "from header",
			setup:    func(c *gin.Context) { c.Request.Header.Set(middleware.RequestIDHeader, "header-id") },
			expected: "header-id",
		},
		{
			name: "context wins",
			setup: func(c *gin.Context) {
				c.Set(middleware.RequestIDKey, "ctx-id")
				c.Request.Header.Set(middleware.RequestIDHeader, "header-id")
			},
			expected: "ctx-id",
		},
		{
			name:     "empty",
			setup:    func(*gin.Context) {},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext()
			tt.setup(c)
			assert.Equal(t, tt.expected, getRequestID(c))
		})
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound, "Resource not found"},
		{"wrapped conflict", fmt.Errorf("save: %w", shared.ErrConcurrencyConflict), http.StatusConflict, dto.ErrCodeConcurrencyConflict, "Resource was modified by another process"},
		{"invalid state", shared.NewDomainError("INVALID_STATE", "Already decided"), http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, "Already decided"},
		{"bad filter", shared.NewDomainError("INVALID_FILTER_TYPE", "Unknown filter type: x"), http.StatusBadRequest, dto.ErrCodeInvalidFilter, "Unknown filter type: x"},
		{"plain error", errors.New("pq: connection refused"), http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred"},
	}

	h := &BaseHandler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext()
			c.Set(middleware.RequestIDKey, "req-1")
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			env := decode[any](t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Equal(t, tt.message, env.Error.Message)
			assert.Equal(t, "req-1", env.Error.RequestID)
		})
	}
}

func TestHandleErrorNil(t *testing.T) {
	c, w := newTestContext()
	(&BaseHandler{}).HandleError(c, nil)
	assert.Empty(t, w.Body.String())
}

func TestParseID(t *testing.T) {
	h := &BaseHandler{}
	for _, raw := range []string{"abc", "0", "-3", ""} {
		c, w := newTestContext()
		c.Params = gin.Params{{Key: "id", Value: raw}}
		_, ok := h.parseID(c, "id")
		assert.False(t, ok, raw)
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}

	c, _ := newTestContext()
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, ok := h.parseID(c, "id")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestCurrentUserMissing(t *testing.T) {
	c, w := newTestContext()
	_, ok := (&BaseHandler{}).currentUser(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSuccessWithMeta(t *testing.T) {
	c, w := newTestContext()
	(&BaseHandler{}).SuccessWithMeta(c, []int{1, 2}, 45, 2, 20)

	assert.Equal(t, http.StatusOK, w.Code)
	env := decode[[]int](t, w)
	assert.True(t, env.Success)
	assert.Equal(t, []int{1, 2}, env.Data)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 3, env.Meta.TotalPages)
}
