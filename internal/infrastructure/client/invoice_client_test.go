package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/invoicedesk/internal/domain/identity"
	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/erp/invoicedesk/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoiceClient(t *testing.T, handler http.HandlerFunc) *InvoiceClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewClient(config.RemoteConfig{BaseURL: server.URL, Token: "tok"}, fastRetry(0))
	require.NoError(t, err)
	return NewInvoiceClient(c)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestInvoiceClient_FetchInvoiceList(t *testing.T) {
	c := newTestInvoiceClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/documents", r.URL.Path)
		assert.Equal(t, "deposit", r.URL.Query().Get("filter_type"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("page_size"))
		writeJSON(w, http.StatusOK, `{"success":true,
			"data":[{"id":7,"type":"deposit","status":"confirmed","items":[{"id":1,"name":"Drill","quantity":"2","returned_quantity":"0"}]}],
			"meta":{"total":11,"page":2,"page_size":10,"total_pages":2}}`)
	})

	page, err := c.FetchInvoiceList(context.Background(), invoice.TypeDeposit, 2, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(7), page.Items[0].ID)
	assert.Equal(t, invoice.StatusConfirmed, page.Items[0].Status)
	assert.Equal(t, "2", page.Items[0].Items[0].Quantity.String())
	assert.Equal(t, int64(11), page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
}

func TestInvoiceClient_Errors(t *testing.T) {
	t.Run("envelope error becomes RequestError", func(t *testing.T) {
		c := newTestInvoiceClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity,
				`{"success":false,"error":{"code":"ERR_INVALID_STATE","message":"Cannot advance a document in status confirmed"}}`)
		})

		err := c.AdvanceInvoiceStatus(context.Background(), 3)

		var reqErr *RequestError
		require.True(t, errors.As(err, &reqErr))
		assert.Equal(t, http.StatusUnprocessableEntity, reqErr.StatusCode)
		assert.Equal(t, "Cannot advance a document in status confirmed", reqErr.Message)
	})

	t.Run("detail body", func(t *testing.T) {
		c := newTestInvoiceClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusForbidden, `{"detail":"Forbidden for this user"}`)
		})

		err := c.DeleteInvoice(context.Background(), 3)
		require.Error(t, err)
		assert.Equal(t, "Forbidden for this user", err.Error())
	})
}

func TestInvoiceClient_Actions(t *testing.T) {
	var seen []string
	c := newTestInvoiceClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/v1/documents/5/decision":
			var body map[string]bool
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.False(t, body["approved"])
		case "/api/v1/documents/5":
			if r.Method == http.MethodPut {
				var body invoice.Invoice
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "late delivery", body.Comment)
			}
			if r.Method == http.MethodGet {
				writeJSON(w, http.StatusOK, `{"success":true,"data":{"id":5,"type":"purchase_request","status":"rejected","comment":"","version":2}}`)
				return
			}
		}
		writeJSON(w, http.StatusOK, `{"success":true}`)
	})
	ctx := context.Background()

	require.NoError(t, c.DecidePurchaseRequest(ctx, 5, false))
	inv, err := c.FetchInvoice(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, inv.Version)
	inv.MergeComment("late delivery")
	require.NoError(t, c.UpdateInvoice(ctx, 5, inv))
	require.NoError(t, c.ReturnDeposit(ctx, 5))
	require.NoError(t, c.DeleteInvoice(ctx, 5))

	assert.Equal(t, []string{
		"POST /api/v1/documents/5/decision",
		"GET /api/v1/documents/5",
		"PUT /api/v1/documents/5",
		"POST /api/v1/documents/5/return-deposit",
		"DELETE /api/v1/documents/5",
	}, seen)
}

func TestInvoiceClient_FetchCurrentUser(t *testing.T) {
	c := newTestInvoiceClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/desk/me", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"success":true,"data":{"id":3,"username":"keeper","display_name":"Keeper",
			"capabilities":["view_deposits","not_a_flag"]}}`)
	})

	user, err := c.FetchCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)
	assert.Equal(t, "Keeper", user.GetDisplayNameOrUsername())
	assert.True(t, user.HasCapability(identity.CapViewDeposits))
	assert.False(t, user.HasCapability(identity.CapViewAdditions))
}
