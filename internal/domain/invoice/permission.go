package invoice

import "github.com/erp/invoicedesk/internal/domain/identity"

// Action is a mutating action class evaluated by the permission gate
type Action string

const (
	ActionConfirm        Action = "confirm"
	ActionAcceptPurchase Action = "accept"
	ActionRejectPurchase Action = "reject"
	ActionDelete         Action = "delete"
)

// GatedActions returns the action classes evaluated by CanAct
func GatedActions() []Action {
	return []Action{ActionConfirm, ActionAcceptPurchase, ActionRejectPurchase, ActionDelete}
}

// CanAct reports whether the user may perform the action on the document.
//
// An absent user never acts. Final documents never expose a mutating action,
// not even to the admin; that rule is checked before any capability.
func CanAct(user *identity.User, inv *Invoice, action Action) bool {
	if user == nil || inv == nil {
		return false
	}
	if inv.Category().IsFinal() {
		return false
	}
	if user.IsAdmin() {
		return true
	}

	switch action {
	case ActionConfirm:
		switch inv.Status {
		case StatusDraft:
			return user.HasCapability(identity.CapConfirmWithdrawal)
		case StatusAccreditation:
			return user.HasCapability(identity.CapWithdraw)
		}
		return false
	case ActionAcceptPurchase, ActionRejectPurchase:
		return inv.IsPurchaseRequest() &&
			inv.Status == StatusDraft &&
			user.HasCapability(identity.CapConfirmWithdrawal)
	case ActionDelete:
		capability, ok := inv.Type.ViewCapability()
		return ok && user.HasCapability(capability)
	}
	return false
}

// CanRecoverDeposit reports whether the user may settle a confirmed or
// partially returned deposit. Deposit recovery acts on an already-final
// document and so sits outside CanAct.
func CanRecoverDeposit(user *identity.User, inv *Invoice) bool {
	if user == nil || inv == nil || !inv.IsDeposit() {
		return false
	}
	if inv.Status != StatusConfirmed && inv.Status != StatusPartiallyReturned {
		return false
	}
	return user.HasCapability(identity.CapWithdraw)
}

// AllowedActions lists the actions the user may run on the document, in display order.
// Deposit recovery is reported as "recover-deposit".
func AllowedActions(user *identity.User, inv *Invoice) []string {
	allowed := make([]string, 0, 4)
	if inv == nil {
		return allowed
	}
	for _, action := range GatedActions() {
		if (action == ActionAcceptPurchase || action == ActionRejectPurchase) && !inv.IsPurchaseRequest() {
			continue
		}
		if CanAct(user, inv, action) {
			allowed = append(allowed, string(action))
		}
	}
	if CanRecoverDeposit(user, inv) {
		allowed = append(allowed, "recover-deposit")
	}
	return allowed
}
