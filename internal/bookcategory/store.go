package bookcategory

import (
	"context"

	"thientam/pkg/models"
)

type Patch struct {
	Name         *string
	NameEn       *string
	Description  *string
	Icon         *string
	Color        *string
	DisplayOrder *int
	IsActive     *bool
}

type Store interface {
	// List orders by displayOrder then name; isActive nil lists all.
	List(ctx context.Context, isActive *bool) ([]models.BookCategory, error)
	Get(ctx context.Context, id string) (*models.BookCategory, error)
	GetByName(ctx context.Context, name string) (*models.BookCategory, error)
	// Create and Update return database.ErrDuplicate when the name is taken.
	Create(ctx context.Context, bc *models.BookCategory) error
	Update(ctx context.Context, id string, p Patch) (*models.BookCategory, error)
	Delete(ctx context.Context, id string) error
	// Reorder sets displayOrder to each id's index. Unknown ids are skipped.
	Reorder(ctx context.Context, ids []string) error
}

// BookCounter counts books filed under a category.
type BookCounter interface {
	CountByCategory(ctx context.Context, category string) (int64, error)
}
