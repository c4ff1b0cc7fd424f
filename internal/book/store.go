package book

import (
	"context"

	"thientam/pkg/models"
)

type Filter struct {
	Category string
	// Tags matches books carrying any of the tags.
	Tags     []string
	Search   string
	Language string
	IsPublic *bool
	SortBy   string
	Asc      bool
}

// SortFields whitelists sortBy values for the list endpoint.
var SortFields = map[string]string{
	"createdAt":     "createdAt",
	"updatedAt":     "updatedAt",
	"title":         "title",
	"author":        "author",
	"publishYear":   "publishYear",
	"downloadCount": "downloadCount",
	"viewCount":     "viewCount",
}

type Patch struct {
	Title        *string
	Author       *string
	Translator   *string
	Description  *string
	Category     *string
	Tags         *[]string
	BookLanguage *string
	Publisher    *string
	PublishYear  *int
	ISBN         *string
	PageCount    *int
	IsPublic     *bool
}

// Counter names a monotonically increasing field.
type Counter string

const (
	Downloads Counter = "downloadCount"
	Views     Counter = "viewCount"
)

type Store interface {
	Count(ctx context.Context, f Filter) (int64, error)
	Find(ctx context.Context, f Filter, skip, limit int) ([]models.Book, error)
	// Popular lists public books by downloads, then views.
	Popular(ctx context.Context, limit int) ([]models.Book, error)
	Get(ctx context.Context, id string) (*models.Book, error)
	Create(ctx context.Context, b *models.Book) error
	Update(ctx context.Context, id string, p Patch) (*models.Book, error)
	Delete(ctx context.Context, id string) error
	SetCounter(ctx context.Context, id string, c Counter, value int64) error
	CountByCategory(ctx context.Context, category string) (int64, error)
}
