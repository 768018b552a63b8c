package identity

import (
	"sort"
	"strings"

	"github.com/erp/invoicedesk/internal/domain/shared"
)

// Capability is a named boolean permission flag on a user record
type Capability string

const (
	CapViewAdditions        Capability = "view_additions"
	CapViewWithdrawals      Capability = "view_withdrawals"
	CapViewDeposits         Capability = "view_deposits"
	CapViewReturns          Capability = "view_returns"
	CapViewDamages          Capability = "view_damages"
	CapViewReservations     Capability = "view_reservations"
	CapViewPurchaseRequests Capability = "view_purchase_requests"
	CapViewTransfers        Capability = "view_transfers"
	CapConfirmWithdrawal    Capability = "can_confirm_withdrawal"
	CapWithdraw             Capability = "can_withdraw"
)

// AdminUsername is the distinguished identity that holds every capability
const AdminUsername = "admin"

// AllCapabilities returns every known capability in a stable order
func AllCapabilities() []Capability {
	return []Capability{
		CapViewAdditions,
		CapViewWithdrawals,
		CapViewDeposits,
		CapViewReturns,
		CapViewDamages,
		CapViewReservations,
		CapViewPurchaseRequests,
		CapViewTransfers,
		CapConfirmWithdrawal,
		CapWithdraw,
	}
}

// IsValid checks if the capability is a known capability
func (c Capability) IsValid() bool {
	for _, known := range AllCapabilities() {
		if c == known {
			return true
		}
	}
	return false
}

// User is the acting identity of a back-office session.
// It is read-only for the action engine and replaced wholesale on re-fetch.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	capabilities map[Capability]bool
	admin        bool
}

// NewUser creates a user with the given granted capabilities.
// The admin flag is derived once here and consumed only through HasCapability/IsAdmin.
func NewUser(id int64, username string, granted ...Capability) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}

	caps := make(map[Capability]bool, len(granted))
	for _, c := range granted {
		if !c.IsValid() {
			return nil, shared.NewDomainError("INVALID_CAPABILITY", "Unknown capability: "+string(c))
		}
		caps[c] = true
	}

	return &User{
		ID:           id,
		Username:     username,
		capabilities: caps,
		admin:        strings.EqualFold(username, AdminUsername),
	}, nil
}

// NewUserFromFlags creates a user from a flag map as stored on the user record.
// Unknown flag names are ignored.
func NewUserFromFlags(id int64, username string, flags map[string]bool) (*User, error) {
	granted := make([]Capability, 0, len(flags))
	for name, on := range flags {
		c := Capability(name)
		if on && c.IsValid() {
			granted = append(granted, c)
		}
	}
	return NewUser(id, username, granted...)
}

// IsAdmin reports whether the user is the all-capabilities identity
func (u *User) IsAdmin() bool {
	return u != nil && u.admin
}

// HasCapability reports whether the user holds the capability, directly or as admin
func (u *User) HasCapability(c Capability) bool {
	if u == nil {
		return false
	}
	return u.admin || u.capabilities[c]
}

// Capabilities returns the effective capabilities in canonical order
func (u *User) Capabilities() []Capability {
	if u == nil {
		return nil
	}
	result := make([]Capability, 0, len(u.capabilities))
	for _, c := range AllCapabilities() {
		if u.HasCapability(c) {
			result = append(result, c)
		}
	}
	return result
}

// Flags returns the directly granted capability flags keyed by name
func (u *User) Flags() map[string]bool {
	flags := make(map[string]bool, len(AllCapabilities()))
	for _, c := range AllCapabilities() {
		flags[string(c)] = u.capabilities[c]
	}
	return flags
}

// CapabilityNames returns the effective capability names, sorted
func (u *User) CapabilityNames() []string {
	caps := u.Capabilities()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	sort.Strings(names)
	return names
}

// GetDisplayNameOrUsername returns display name if set, otherwise username
func (u *User) GetDisplayNameOrUsername() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
