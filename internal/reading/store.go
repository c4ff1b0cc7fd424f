package reading

import (
	"context"
	"time"

	"thientam/pkg/models"
)

// Filter is shared by the public list and the admin list.
type Filter struct {
	Topic  string
	Search string
}

// Patch holds the fields an admin update may change; nil means unchanged.
type Patch struct {
	Title      *string
	Body       *string
	TopicSlugs *[]string
	Keywords   *[]string
	Source     *string
	Lang       *string
}

type TopicCount struct {
	Topic string `bson:"_id" json:"topic"`
	Count int64  `bson:"count" json:"count"`
}

type Store interface {
	// ByDate returns the readings bucketed on day, oldest first.
	ByDate(ctx context.Context, day time.Time) ([]models.Reading, error)
	Count(ctx context.Context, f Filter) (int64, error)
	// Find pages through readings matching f, newest date first.
	Find(ctx context.Context, f Filter, skip, limit int) ([]models.Reading, error)
	// Month lists summaries with from <= date < to, ascending.
	Month(ctx context.Context, from, to time.Time) ([]models.ReadingSummary, error)
	Random(ctx context.Context) (*models.Reading, error)

	Get(ctx context.Context, id string) (*models.Reading, error)
	Create(ctx context.Context, r *models.Reading) error
	Update(ctx context.Context, id string, p Patch) (*models.Reading, error)
	Delete(ctx context.Context, id string) (*models.Reading, error)

	CountByTopic(ctx context.Context, slug string) (int64, error)
	TopicCounts(ctx context.Context) ([]TopicCount, error)
	Recent(ctx context.Context, n int) ([]models.ReadingSummary, error)
	// DatesSince returns the date of every reading with date >= from.
	DatesSince(ctx context.Context, from time.Time) ([]time.Time, error)
}
