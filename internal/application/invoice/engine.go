package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/invoicedesk/internal/domain/identity"
	"github.com/erp/invoicedesk/internal/domain/invoice"
	"go.uber.org/zap"
)

// Workflow names one of the six mutating workflows
type Workflow string

const (
	WorkflowConfirm        Workflow = "confirm"
	WorkflowRecoverDeposit Workflow = "recover-deposit"
	WorkflowDeleteOne      Workflow = "delete-one"
	WorkflowDeleteMany     Workflow = "delete-many"
	WorkflowAccept         Workflow = "accept-purchase"
	WorkflowReject         Workflow = "reject-purchase"
)

// BusyClass returns the registry class the workflow holds while in flight
func (w Workflow) BusyClass() BusyClass {
	switch w {
	case WorkflowRecoverDeposit:
		return BusyDeposit
	case WorkflowDeleteOne, WorkflowDeleteMany:
		return BusyDelete
	}
	return BusyStatus
}

// Permitted evaluates the permission gate for the workflow
func (w Workflow) Permitted(user *identity.User, inv *invoice.Invoice) bool {
	switch w {
	case WorkflowConfirm:
		return invoice.CanAct(user, inv, invoice.ActionConfirm)
	case WorkflowRecoverDeposit:
		return invoice.CanRecoverDeposit(user, inv)
	case WorkflowDeleteOne, WorkflowDeleteMany:
		return invoice.CanAct(user, inv, invoice.ActionDelete)
	case WorkflowAccept:
		return invoice.CanAct(user, inv, invoice.ActionAcceptPurchase)
	case WorkflowReject:
		return invoice.CanAct(user, inv, invoice.ActionRejectPurchase)
	}
	return false
}

// Outcome is the settled result of a workflow
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomeRefused means a local precondition stopped the workflow before any request
	OutcomeRefused Outcome = "refused"
	// OutcomeCancelled means the operator backed out of a dialog
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeBusy means the same action was already in flight for the document
	OutcomeBusy Outcome = "busy"
)

// Operator-facing messages
const (
	msgDeleteBlocked      = "Confirmed or refunded invoices cannot be deleted"
	msgDeleteManyBlocked  = "The selection contains confirmed or refunded invoices; nothing was deleted"
	msgNothingSelected    = "No invoices selected"
	msgUnexpectedError    = "An unexpected error occurred"
	rejectPromptTitle     = "Reject purchase request"
	rejectPromptMessage   = "Enter the reason for rejecting this purchase request"
	rejectPromptHint      = "Reason"
	deleteConfirmTitle    = "Delete invoice"
	deleteManyConfirmName = "Delete invoices"
)

// ActionEngine drives the mutating workflows on documents.
// Each workflow validates its preconditions, optionally asks the operator,
// marks the document busy, calls the gateway, then notifies and refreshes.
// Failures never escape: they settle as a notification and an Outcome.
type ActionEngine struct {
	gateway     InvoiceGateway
	registry    LoadingRegistry
	interaction Interaction
	notifier    Notifier
	refresher   Refresher
	recorder    ActionRecorder
	logger      *zap.Logger
}

// NewActionEngine creates a new ActionEngine
func NewActionEngine(
	gateway InvoiceGateway,
	registry LoadingRegistry,
	interaction Interaction,
	notifier Notifier,
	logger *zap.Logger,
) *ActionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActionEngine{
		gateway:     gateway,
		registry:    registry,
		interaction: interaction,
		notifier:    notifier,
		logger:      logger,
	}
}

// SetRefresher sets the list refresher awaited after each successful workflow
func (e *ActionEngine) SetRefresher(r Refresher) {
	e.refresher = r
}

// SetRecorder sets the outcome recorder
func (e *ActionEngine) SetRecorder(r ActionRecorder) {
	e.recorder = r
}

// ConfirmStatus advances the document one lifecycle step. No dialog is shown.
func (e *ActionEngine) ConfirmStatus(ctx context.Context, inv *invoice.Invoice) Outcome {
	return e.single(ctx, WorkflowConfirm, inv,
		func(ctx context.Context) error { return e.gateway.AdvanceInvoiceStatus(ctx, inv.ID) },
		fmt.Sprintf("Invoice #%d status updated", inv.ID),
		"Failed to update invoice status")
}

// RecoverDeposit returns a confirmed deposit. No dialog is shown.
func (e *ActionEngine) RecoverDeposit(ctx context.Context, inv *invoice.Invoice) Outcome {
	return e.single(ctx, WorkflowRecoverDeposit, inv,
		func(ctx context.Context) error { return e.gateway.ReturnDeposit(ctx, inv.ID) },
		fmt.Sprintf("Deposit of invoice #%d recovered", inv.ID),
		"Failed to recover deposit")
}

// AcceptPurchaseRequest approves a purchase request. No dialog is shown.
func (e *ActionEngine) AcceptPurchaseRequest(ctx context.Context, inv *invoice.Invoice) Outcome {
	return e.single(ctx, WorkflowAccept, inv,
		func(ctx context.Context) error { return e.gateway.DecidePurchaseRequest(ctx, inv.ID, true) },
		fmt.Sprintf("Purchase request #%d accepted", inv.ID),
		"Failed to accept purchase request")
}

// DeleteOne deletes a document after the operator confirms.
// Confirmed and refunded documents are refused without any request.
func (e *ActionEngine) DeleteOne(ctx context.Context, inv *invoice.Invoice) Outcome {
	if inv.IsDeleteBlocked() {
		e.notify(ctx, NotifyWarning, msgDeleteBlocked)
		return e.settle(ctx, WorkflowDeleteOne, OutcomeRefused, zap.Int64("invoice_id", inv.ID))
	}

	if !e.interaction.Confirm(ctx, deleteConfirmTitle,
		fmt.Sprintf("Delete invoice #%d? This cannot be undone.", inv.ID)) {
		return e.settle(ctx, WorkflowDeleteOne, OutcomeCancelled, zap.Int64("invoice_id", inv.ID))
	}

	return e.single(ctx, WorkflowDeleteOne, inv,
		func(ctx context.Context) error { return e.gateway.DeleteInvoice(ctx, inv.ID) },
		fmt.Sprintf("Invoice #%d deleted", inv.ID),
		"Failed to delete invoice")
}

// DeleteMany deletes a batch after one confirmation. The batch is refused
// as a whole when any document is confirmed or refunded. Deletes run one
// after another and the batch reports a single notification.
func (e *ActionEngine) DeleteMany(ctx context.Context, invs []*invoice.Invoice) Outcome {
	if len(invs) == 0 {
		e.notify(ctx, NotifyWarning, msgNothingSelected)
		return e.settle(ctx, WorkflowDeleteMany, OutcomeRefused)
	}
	for _, inv := range invs {
		if inv.IsDeleteBlocked() {
			e.notify(ctx, NotifyWarning, msgDeleteManyBlocked)
			return e.settle(ctx, WorkflowDeleteMany, OutcomeRefused,
				zap.Int("count", len(invs)), zap.Int64("blocked_id", inv.ID))
		}
	}

	if !e.interaction.Confirm(ctx, deleteManyConfirmName,
		fmt.Sprintf("Delete %d invoices? This cannot be undone.", len(invs))) {
		return e.settle(ctx, WorkflowDeleteMany, OutcomeCancelled, zap.Int("count", len(invs)))
	}

	held := make([]Lease, 0, len(invs))
	defer func() {
		for _, lease := range held {
			e.release(ctx, lease)
		}
	}()
	for _, inv := range invs {
		lease, acquired, err := e.registry.TryAcquire(ctx, BusyDelete, inv.ID)
		if err != nil {
			e.notify(ctx, NotifyError, "Failed to delete invoices: "+errorMessage(err))
			return e.settle(ctx, WorkflowDeleteMany, OutcomeFailed, zap.Error(err))
		}
		if !acquired {
			return e.settle(ctx, WorkflowDeleteMany, OutcomeBusy, zap.Int64("invoice_id", inv.ID))
		}
		held = append(held, lease)
	}

	for i, inv := range invs {
		// flags of the documents still to delete must outlive the batch
		if i > 0 {
			if err := e.extend(ctx, held[i:]); err != nil {
				e.notify(ctx, NotifyError, fmt.Sprintf("Failed to delete invoices (%d of %d deleted): %s",
					i, len(invs), errorMessage(err)))
				return e.settle(ctx, WorkflowDeleteMany, OutcomeFailed, zap.Int("deleted", i), zap.Error(err))
			}
		}
		if err := e.gateway.DeleteInvoice(ctx, inv.ID); err != nil {
			e.notify(ctx, NotifyError, fmt.Sprintf("Failed to delete invoice #%d (%d of %d deleted): %s",
				inv.ID, i, len(invs), errorMessage(err)))
			return e.settle(ctx, WorkflowDeleteMany, OutcomeFailed,
				zap.Int64("invoice_id", inv.ID), zap.Int("deleted", i), zap.Error(err))
		}
	}

	e.notify(ctx, NotifySuccess, fmt.Sprintf("%d invoices deleted", len(invs)))
	e.refresh(ctx)
	return e.settle(ctx, WorkflowDeleteMany, OutcomeSucceeded, zap.Int("count", len(invs)))
}

// RejectPurchaseRequest asks for a reason, records the rejection and merges
// the reason into the comment of the latest server copy.
// A blank reason aborts silently. The two calls are not compensated:
// if the comment update fails the request stays rejected without the reason.
//
// TODO: make the comment merge conditional on the fetched version once the
// document API exposes an If-Match style precondition.
func (e *ActionEngine) RejectPurchaseRequest(ctx context.Context, inv *invoice.Invoice) Outcome {
	reason, ok := e.interaction.PromptText(ctx, rejectPromptTitle, rejectPromptMessage, rejectPromptHint)
	reason = strings.TrimSpace(reason)
	if !ok || reason == "" {
		return e.settle(ctx, WorkflowReject, OutcomeCancelled, zap.Int64("invoice_id", inv.ID))
	}

	return e.single(ctx, WorkflowReject, inv, func(ctx context.Context) error {
		if err := e.gateway.DecidePurchaseRequest(ctx, inv.ID, false); err != nil {
			return err
		}
		latest, err := e.gateway.FetchInvoice(ctx, inv.ID)
		if err != nil {
			return err
		}
		latest.MergeComment(reason)
		return e.gateway.UpdateInvoice(ctx, inv.ID, latest)
	},
		fmt.Sprintf("Purchase request #%d rejected", inv.ID),
		"Failed to reject purchase request")
}

// Run dispatches a single-document workflow by name
func (e *ActionEngine) Run(ctx context.Context, w Workflow, inv *invoice.Invoice) Outcome {
	switch w {
	case WorkflowConfirm:
		return e.ConfirmStatus(ctx, inv)
	case WorkflowRecoverDeposit:
		return e.RecoverDeposit(ctx, inv)
	case WorkflowDeleteOne:
		return e.DeleteOne(ctx, inv)
	case WorkflowDeleteMany:
		return e.DeleteMany(ctx, []*invoice.Invoice{inv})
	case WorkflowAccept:
		return e.AcceptPurchaseRequest(ctx, inv)
	case WorkflowReject:
		return e.RejectPurchaseRequest(ctx, inv)
	}
	e.logger.Warn("Unknown workflow", zap.String("workflow", string(w)))
	return OutcomeRefused
}

// single runs one guarded mutation on one document
func (e *ActionEngine) single(
	ctx context.Context,
	w Workflow,
	inv *invoice.Invoice,
	mutate func(ctx context.Context) error,
	successMsg, failurePrefix string,
) Outcome {
	class := w.BusyClass()
	e.logger.Debug("Starting invoice action",
		zap.String("workflow", string(w)),
		zap.Int64("invoice_id", inv.ID))

	lease, acquired, err := e.registry.TryAcquire(ctx, class, inv.ID)
	if err != nil {
		e.notify(ctx, NotifyError, failurePrefix+": "+errorMessage(err))
		return e.settle(ctx, w, OutcomeFailed, zap.Int64("invoice_id", inv.ID), zap.Error(err))
	}
	if !acquired {
		return e.settle(ctx, w, OutcomeBusy, zap.Int64("invoice_id", inv.ID))
	}
	defer e.release(ctx, lease)

	if err := mutate(ctx); err != nil {
		e.notify(ctx, NotifyError, failurePrefix+": "+errorMessage(err))
		return e.settle(ctx, w, OutcomeFailed, zap.Int64("invoice_id", inv.ID), zap.Error(err))
	}

	e.notify(ctx, NotifySuccess, successMsg)
	e.refresh(ctx)
	return e.settle(ctx, w, OutcomeSucceeded, zap.Int64("invoice_id", inv.ID))
}

func (e *ActionEngine) extend(ctx context.Context, leases []Lease) error {
	for _, lease := range leases {
		if err := e.registry.Extend(ctx, lease); err != nil {
			return fmt.Errorf("busy flag of invoice #%d: %w", lease.ID, err)
		}
	}
	return nil
}

// release clears the flag even when the caller has gone away
func (e *ActionEngine) release(ctx context.Context, lease Lease) {
	err := e.registry.Release(context.WithoutCancel(ctx), lease)
	switch {
	case err == nil:
	case errors.Is(err, ErrLeaseLost):
		e.logger.Warn("Busy flag expired before the action finished",
			zap.String("class", string(lease.Class)),
			zap.Int64("invoice_id", lease.ID))
	default:
		e.logger.Error("Failed to clear busy flag",
			zap.String("class", string(lease.Class)),
			zap.Int64("invoice_id", lease.ID),
			zap.Error(err))
	}
}

func (e *ActionEngine) refresh(ctx context.Context) {
	if e.refresher == nil {
		return
	}
	if err := e.refresher.Refresh(ctx); err != nil {
		e.logger.Warn("Failed to refresh invoice list", zap.Error(err))
	}
}

func (e *ActionEngine) notify(ctx context.Context, kind NotificationKind, message string) {
	if e.notifier != nil {
		e.notifier.Notify(ctx, kind, message)
	}
}

func (e *ActionEngine) settle(ctx context.Context, w Workflow, outcome Outcome, fields ...zap.Field) Outcome {
	fields = append(fields, zap.String("workflow", string(w)), zap.String("outcome", string(outcome)))
	switch outcome {
	case OutcomeFailed:
		e.logger.Warn("Invoice action failed", fields...)
	case OutcomeSucceeded:
		e.logger.Info("Invoice action completed", fields...)
	default:
		e.logger.Debug("Invoice action not performed", fields...)
	}
	if e.recorder != nil {
		e.recorder.RecordAction(ctx, string(w), string(outcome))
	}
	return outcome
}

// errorMessage returns the operator-facing text of an error
func errorMessage(err error) string {
	if err == nil {
		return msgUnexpectedError
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return msgUnexpectedError
}
