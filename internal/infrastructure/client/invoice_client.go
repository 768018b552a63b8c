package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	appinvoice "github.com/erp/invoicedesk/internal/application/invoice"
	"github.com/erp/invoicedesk/internal/domain/identity"
	"github.com/erp/invoicedesk/internal/domain/invoice"
)

const (
	documentsPath = "/api/v1/documents"
	mePath        = "/api/v1/desk/me"
)

// envelope is the server's standard response body
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

// InvoiceClient implements InvoiceGateway against the server's document API
type InvoiceClient struct {
	client *Client
}

// NewInvoiceClient creates a new InvoiceClient
func NewInvoiceClient(client *Client) *InvoiceClient {
	return &InvoiceClient{client: client}
}

var _ appinvoice.InvoiceGateway = (*InvoiceClient)(nil)

// FetchInvoiceList lists documents for a filter api type
func (c *InvoiceClient) FetchInvoiceList(ctx context.Context, filterType invoice.Type, page, pageSize int) (*appinvoice.InvoicePage, error) {
	env, err := c.call(ctx, Request{
		Method: http.MethodGet,
		Path:   documentsPath,
		QueryParams: map[string]string{
			"filter_type": string(filterType),
			"page":        strconv.Itoa(page),
			"page_size":   strconv.Itoa(pageSize),
		},
	})
	if err != nil {
		return nil, err
	}

	result := &appinvoice.InvoicePage{Items: make([]invoice.Invoice, 0), Page: page, PageSize: pageSize}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &result.Items); err != nil {
			return nil, fmt.Errorf("decoding invoice list: %w", err)
		}
	}
	if env.Meta != nil {
		result.TotalItems = env.Meta.Total
		result.TotalPages = env.Meta.TotalPages
		result.Page = env.Meta.Page
		result.PageSize = env.Meta.PageSize
	}
	return result, nil
}

// FetchInvoice returns the full document
func (c *InvoiceClient) FetchInvoice(ctx context.Context, id int64) (*invoice.Invoice, error) {
	env, err := c.call(ctx, Request{Method: http.MethodGet, Path: documentPath(id, "")})
	if err != nil {
		return nil, err
	}
	var inv invoice.Invoice
	if err := json.Unmarshal(env.Data, &inv); err != nil {
		return nil, fmt.Errorf("decoding invoice: %w", err)
	}
	return &inv, nil
}

// UpdateInvoice sends the full record with its changes
func (c *InvoiceClient) UpdateInvoice(ctx context.Context, id int64, inv *invoice.Invoice) error {
	_, err := c.call(ctx, Request{Method: http.MethodPut, Path: documentPath(id, ""), Body: inv})
	return err
}

// DeleteInvoice deletes a document
func (c *InvoiceClient) DeleteInvoice(ctx context.Context, id int64) error {
	_, err := c.call(ctx, Request{Method: http.MethodDelete, Path: documentPath(id, "")})
	return err
}

// AdvanceInvoiceStatus moves a document one lifecycle step forward
func (c *InvoiceClient) AdvanceInvoiceStatus(ctx context.Context, id int64) error {
	_, err := c.call(ctx, Request{Method: http.MethodPost, Path: documentPath(id, "advance")})
	return err
}

// ReturnDeposit returns every outstanding item of a deposit
func (c *InvoiceClient) ReturnDeposit(ctx context.Context, id int64) error {
	_, err := c.call(ctx, Request{Method: http.MethodPost, Path: documentPath(id, "return-deposit")})
	return err
}

// DecidePurchaseRequest accepts or rejects a purchase request
func (c *InvoiceClient) DecidePurchaseRequest(ctx context.Context, id int64, approved bool) error {
	_, err := c.call(ctx, Request{
		Method: http.MethodPost,
		Path:   documentPath(id, "decision"),
		Body:   map[string]bool{"approved": approved},
	})
	return err
}

// meResponse mirrors the server's current user payload
type meResponse struct {
	ID           int64    `json:"id"`
	Username     string   `json:"username"`
	DisplayName  string   `json:"display_name"`
	Capabilities []string `json:"capabilities"`
}

// FetchCurrentUser resolves the user the token belongs to
func (c *InvoiceClient) FetchCurrentUser(ctx context.Context) (*identity.User, error) {
	env, err := c.call(ctx, Request{Method: http.MethodGet, Path: mePath})
	if err != nil {
		return nil, err
	}
	var me meResponse
	if err := json.Unmarshal(env.Data, &me); err != nil {
		return nil, fmt.Errorf("decoding current user: %w", err)
	}
	caps := make([]identity.Capability, 0, len(me.Capabilities))
	for _, name := range me.Capabilities {
		if capability := identity.Capability(name); capability.IsValid() {
			caps = append(caps, capability)
		}
	}
	user, err := identity.NewUser(me.ID, me.Username, caps...)
	if err != nil {
		return nil, err
	}
	user.DisplayName = me.DisplayName
	return user, nil
}

// call executes a request and converts failures to *RequestError
func (c *InvoiceClient) call(ctx context.Context, req Request) (*envelope, error) {
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, TransportError(err)
	}
	if !resp.IsSuccess() {
		return nil, NewRequestError(resp.StatusCode, resp.Body)
	}

	var env envelope
	if len(resp.Body) == 0 {
		return &env, nil
	}
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &env, nil
}

func documentPath(id int64, action string) string {
	p := documentsPath + "/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}
