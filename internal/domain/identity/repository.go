package identity

import "context"

// UserRepository defines persistence operations for users
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	// Save inserts the user when ID is zero and assigns the new ID
	Save(ctx context.Context, user *User) error
}
