package models

import (
	"github.com/erp/invoicedesk/internal/domain/identity"
)

// UserModel is the persistence model for a user and its capability flags.
// Each capability is a boolean column named after the flag.
type UserModel struct {
	BaseModel
	Username             string `gorm:"type:varchar(100);not null;uniqueIndex"`
	DisplayName          string `gorm:"type:varchar(200)"`
	ViewAdditions        bool   `gorm:"column:view_additions;not null;default:false"`
	ViewWithdrawals      bool   `gorm:"column:view_withdrawals;not null;default:false"`
	ViewDeposits         bool   `gorm:"column:view_deposits;not null;default:false"`
	ViewReturns          bool   `gorm:"column:view_returns;not null;default:false"`
	ViewDamages          bool   `gorm:"column:view_damages;not null;default:false"`
	ViewReservations     bool   `gorm:"column:view_reservations;not null;default:false"`
	ViewPurchaseRequests bool   `gorm:"column:view_purchase_requests;not null;default:false"`
	ViewTransfers        bool   `gorm:"column:view_transfers;not null;default:false"`
	CanConfirmWithdrawal bool   `gorm:"column:can_confirm_withdrawal;not null;default:false"`
	CanWithdraw          bool   `gorm:"column:can_withdraw;not null;default:false"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) flags() map[string]bool {
	return map[string]bool{
		string(identity.CapViewAdditions):        m.ViewAdditions,
		string(identity.CapViewWithdrawals):      m.ViewWithdrawals,
		string(identity.CapViewDeposits):         m.ViewDeposits,
		string(identity.CapViewReturns):          m.ViewReturns,
		string(identity.CapViewDamages):          m.ViewDamages,
		string(identity.CapViewReservations):     m.ViewReservations,
		string(identity.CapViewPurchaseRequests): m.ViewPurchaseRequests,
		string(identity.CapViewTransfers):        m.ViewTransfers,
		string(identity.CapConfirmWithdrawal):    m.CanConfirmWithdrawal,
		string(identity.CapWithdraw):             m.CanWithdraw,
	}
}

// ToDomain converts the persistence model to a domain User
func (m *UserModel) ToDomain() (*identity.User, error) {
	u, err := identity.NewUserFromFlags(m.ID, m.Username, m.flags())
	if err != nil {
		return nil, err
	}
	u.DisplayName = m.DisplayName
	return u, nil
}

// FromDomain populates the persistence model from a domain User.
// Only directly granted flags are stored; admin is derived from the username.
func (m *UserModel) FromDomain(u *identity.User) {
	m.ID = u.ID
	m.Username = u.Username
	m.DisplayName = u.DisplayName
	f := u.Flags()
	m.ViewAdditions = f[string(identity.CapViewAdditions)]
	m.ViewWithdrawals = f[string(identity.CapViewWithdrawals)]
	m.ViewDeposits = f[string(identity.CapViewDeposits)]
	m.ViewReturns = f[string(identity.CapViewReturns)]
	m.ViewDamages = f[string(identity.CapViewDamages)]
	m.ViewReservations = f[string(identity.CapViewReservations)]
	m.ViewPurchaseRequests = f[string(identity.CapViewPurchaseRequests)]
	m.ViewTransfers = f[string(identity.CapViewTransfers)]
	m.CanConfirmWithdrawal = f[string(identity.CapConfirmWithdrawal)]
	m.CanWithdraw = f[string(identity.CapWithdraw)]
}
