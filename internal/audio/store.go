package audio

import (
	"context"

	"thientam/pkg/models"
)

type Filter struct {
	Category string
	Tags     []string
	Search   string
	IsPublic *bool
	SortBy   string
	Asc      bool
}

var SortFields = map[string]string{
	"createdAt": "createdAt",
	"updatedAt": "updatedAt",
	"title":     "title",
	"artist":    "artist",
	"duration":  "duration",
	"playCount": "playCount",
}

type Patch struct {
	Title       *string
	Description *string
	Artist      *string
	Category    *string
	Tags        *[]string
	IsPublic    *bool
}

type Store interface {
	Count(ctx context.Context, f Filter) (int64, error)
	Find(ctx context.Context, f Filter, skip, limit int) ([]models.Audio, error)
	Popular(ctx context.Context, limit int) ([]models.Audio, error)
	Get(ctx context.Context, id string) (*models.Audio, error)
	Create(ctx context.Context, a *models.Audio) error
	Update(ctx context.Context, id string, p Patch) (*models.Audio, error)
	Delete(ctx context.Context, id string) error
	SetPlayCount(ctx context.Context, id string, value int64) error
}
