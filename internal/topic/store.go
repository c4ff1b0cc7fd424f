package topic

import (
	"context"

	"thientam/internal/reading"
	"thientam/pkg/models"
)

type Patch struct {
	Name        *string
	Description *string
	Color       *string
	Icon        *string
	IsActive    *bool
	SortOrder   *int
}

type Store interface {
	Count(ctx context.Context, search string) (int64, error)
	// Find orders by sortOrder then name.
	Find(ctx context.Context, search string, skip, limit int) ([]models.Topic, error)
	// Active lists every active topic in display order.
	Active(ctx context.Context) ([]models.Topic, error)
	CountByActive(ctx context.Context, active bool) (int64, error)

	Get(ctx context.Context, id string) (*models.Topic, error)
	GetBySlug(ctx context.Context, slug string) (*models.Topic, error)
	// Create returns database.ErrDuplicate when the slug is taken.
	Create(ctx context.Context, t *models.Topic) error
	Update(ctx context.Context, id string, p Patch) (*models.Topic, error)
	Delete(ctx context.Context, id string) error
}

// ReadingCounter counts readings tagged with a topic slug.
type ReadingCounter interface {
	CountByTopic(ctx context.Context, slug string) (int64, error)
	// TopicCounts lists every slug in use, most used first.
	TopicCounts(ctx context.Context) ([]reading.TopicCount, error)
}
