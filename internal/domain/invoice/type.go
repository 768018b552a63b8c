package invoice

import "github.com/erp/invoicedesk/internal/domain/identity"

// Type is the document kind; operation types are persisted,
// pseudo types exist only as list/report query keys
type Type string

const (
	TypeAddition        Type = "addition"
	TypeWithdrawal      Type = "withdrawal"
	TypeDeposit         Type = "deposit"
	TypeReturn          Type = "return"
	TypeDamage          Type = "damage"
	TypeReservation     Type = "reservation"
	TypePurchaseRequest Type = "purchase_request"
	TypeTransfer        Type = "transfer"
)

// Pseudo types used by status-only queries
const (
	PseudoNotReviewed  Type = "not_reviewed"
	PseudoNotConfirmed Type = "not_confirmed"
	PseudoDone         Type = "done"
	PseudoZeroBalance  Type = "zero_balance"
)

type operationInfo struct {
	label      string
	capability identity.Capability
}

var operations = map[Type]operationInfo{
	TypeAddition:        {label: "إضافة", capability: identity.CapViewAdditions},
	TypeWithdrawal:      {label: "صرف", capability: identity.CapViewWithdrawals},
	TypeDeposit:         {label: "أمانات", capability: identity.CapViewDeposits},
	TypeReturn:          {label: "مرتجع", capability: identity.CapViewReturns},
	TypeDamage:          {label: "توالف", capability: identity.CapViewDamages},
	TypeReservation:     {label: "حجز", capability: identity.CapViewReservations},
	TypePurchaseRequest: {label: "طلب شراء", capability: identity.CapViewPurchaseRequests},
	TypeTransfer:        {label: "تحويل", capability: identity.CapViewTransfers},
}

// OperationTypes returns the operation types in canonical order
func OperationTypes() []Type {
	return []Type{
		TypeAddition,
		TypeWithdrawal,
		TypeDeposit,
		TypeReturn,
		TypeDamage,
		TypeReservation,
		TypePurchaseRequest,
		TypeTransfer,
	}
}

// IsOperation reports whether the type is a persisted document type
func (t Type) IsOperation() bool {
	_, ok := operations[t]
	return ok
}

// IsPseudo reports whether the type is a status-only query key
func (t Type) IsPseudo() bool {
	switch t {
	case PseudoNotReviewed, PseudoNotConfirmed, PseudoDone, PseudoZeroBalance:
		return true
	}
	return false
}

// Label returns the display label of an operation type
func (t Type) Label() string {
	if info, ok := operations[t]; ok {
		return info.label
	}
	return string(t)
}

// ViewCapability returns the capability that makes the type visible
func (t Type) ViewCapability() (identity.Capability, bool) {
	info, ok := operations[t]
	return info.capability, ok
}

// StatusForPseudo returns the persisted status queried by a status pseudo type.
// zero_balance is not a status query and reports false.
func StatusForPseudo(t Type) (Status, bool) {
	switch t {
	case PseudoNotReviewed:
		return StatusDraft, true
	case PseudoNotConfirmed:
		return StatusAccreditation, true
	case PseudoDone:
		return StatusConfirmed, true
	}
	return "", false
}

// requiresAccreditation reports whether draft documents of the type pass
// through a second release step before they are confirmed
func (t Type) requiresAccreditation() bool {
	return t == TypeWithdrawal || t == TypeDeposit
}
