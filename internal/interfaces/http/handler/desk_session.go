package handler

import (
	"context"
	"strings"
	"sync"

	appinvoice "github.com/erp/invoicedesk/internal/application/invoice"
)

// Notification is one operator message produced by a workflow
type Notification struct {
	Kind    appinvoice.NotificationKind `json:"kind"`
	Message string                      `json:"message"`
}

// requestInteraction answers the engine's dialogs from the request body.
// An HTTP caller states its choice up front instead of being asked.
type requestInteraction struct {
	confirmed bool
	reason    string
}

func (i requestInteraction) Confirm(context.Context, string, string) bool {
	return i.confirmed
}

func (i requestInteraction) PromptText(context.Context, string, string, string) (string, bool) {
	if strings.TrimSpace(i.reason) == "" {
		return "", false
	}
	return i.reason, true
}

// collectingNotifier keeps the notifications of one request for the response
type collectingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (n *collectingNotifier) Notify(_ context.Context, kind appinvoice.NotificationKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notification{Kind: kind, Message: message})
}

func (n *collectingNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.items))
	copy(out, n.items)
	return out
}
