package persistence

import (
	"context"
	"errors"

	"github.com/erp/invoicedesk/internal/domain/identity"
	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/erp/invoicedesk/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormUserRepository implements UserRepository using GORM
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

var _ identity.UserRepository = (*GormUserRepository)(nil)

// FindByID finds a user by its ID
func (r *GormUserRepository) FindByID(ctx context.Context, id int64) (*identity.User, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByUsername finds a user by username, case-insensitively
func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	return r.first(ctx, "LOWER(username) = LOWER(?)", username)
}

func (r *GormUserRepository) first(ctx context.Context, query string, args ...any) (*identity.User, error) {
	var m models.UserModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain()
}

// Save creates or updates a user with its capability flags
func (r *GormUserRepository) Save(ctx context.Context, user *identity.User) error {
	var m models.UserModel
	m.FromDomain(user)
	db := r.db.WithContext(ctx)
	if m.ID != 0 {
		db = db.Omit("created_at")
	}
	if err := db.Save(&m).Error; err != nil {
		return err
	}
	user.ID = m.ID
	return nil
}
