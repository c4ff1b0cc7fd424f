package user

import (
	"context"
	"time"

	"thientam/pkg/models"
)

// Filter drives the admin user list. SortBy is one of the keys of
// SortFields.
type Filter struct {
	Search   string
	Role     string
	IsActive *bool
	SortBy   string
	Asc      bool
}

// SortFields whitelists sortBy values for the admin list.
var SortFields = map[string]string{
	"createdAt":   "createdAt",
	"updatedAt":   "updatedAt",
	"name":        "name",
	"email":       "email",
	"role":        "role",
	"lastLoginAt": "lastLoginAt",
}

type Patch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *string
	IsActive     *bool
	Avatar       *string
	DateOfBirth  *time.Time
	Preferences  *models.Preferences
	Stats        *models.UserStats
	LastLoginAt  *time.Time
}

type Store interface {
	// Create returns database.ErrDuplicate when the email is taken.
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Count(ctx context.Context, f Filter) (int64, error)
	Find(ctx context.Context, f Filter, skip, limit int) ([]models.User, error)
	Update(ctx context.Context, id string, p Patch) (*models.User, error)
	Delete(ctx context.Context, id string) error
}
