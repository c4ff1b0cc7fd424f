package audio

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"thientam/pkg/database"
	"thientam/pkg/models"
)

const audioCols = `id, title, description, artist, duration, category, tags, file_public_id, file_url,
	file_secure_url, file_size, format, uploaded_by, play_count, is_public, created_ms, updated_ms`

var sqlSortColumns = map[string]string{
	"createdAt": "created_ms",
	"updatedAt": "updated_ms",
	"title":     "title",
	"artist":    "artist",
	"duration":  "duration",
	"playCount": "play_count",
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudio(s rowScanner) (models.Audio, error) {
	var (
		a                    models.Audio
		id, tags             string
		isPublic             int
		createdMs, updatedMs int64
	)
	err := s.Scan(&id, &a.Title, &a.Description, &a.Artist, &a.Duration, &a.Category, &tags, &a.FilePublicID, &a.FileURL,
		&a.FileSecureURL, &a.FileSize, &a.Format, &a.UploadedBy, &a.PlayCount, &isPublic, &createdMs, &updatedMs)
	if err != nil {
		return a, err
	}
	a.ID, _ = primitive.ObjectIDFromHex(id)
	a.Tags = database.ParseStrings(tags)
	a.IsPublic = isPublic == 1
	a.CreatedAt = database.FromMillis(createdMs)
	a.UpdatedAt = database.FromMillis(updatedMs)
	return a, nil
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) ([]models.Audio, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Audio{}
	for rows.Next() {
		a, err := scanAudio(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func where(f Filter) (string, []any) {
	clause := " WHERE 1=1"
	args := []any{}
	if f.Category != "" {
		clause += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.IsPublic != nil {
		clause += " AND is_public = ?"
		args = append(args, database.BoolInt(*f.IsPublic))
	}
	if len(f.Tags) > 0 {
		clause += " AND EXISTS (SELECT 1 FROM json_each(audios.tags) WHERE json_each.value IN (" + database.Placeholders(len(f.Tags)) + "))"
		for _, t := range f.Tags {
			args = append(args, t)
		}
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := database.LikePattern(q)
		clause += ` AND (title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR artist LIKE ? ESCAPE '\')`
		args = append(args, like, like, like)
	}
	return clause, args
}

func (s *SQLStore) Count(ctx context.Context, f Filter) (int64, error) {
	clause, args := where(f)
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audios`+clause, args...).Scan(&n)
	return n, err
}

func (s *SQLStore) Find(ctx context.Context, f Filter, skip, limit int) ([]models.Audio, error) {
	clause, args := where(f)
	col, ok := sqlSortColumns[f.SortBy]
	if !ok {
		col = "created_ms"
	}
	dir := "DESC"
	if f.Asc {
		dir = "ASC"
	}
	args = append(args, limit, skip)
	return s.query(ctx, `SELECT `+audioCols+` FROM audios`+clause+
		` ORDER BY `+col+` `+dir+`, id `+dir+` LIMIT ? OFFSET ?`, args...)
}

func (s *SQLStore) Popular(ctx context.Context, limit int) ([]models.Audio, error) {
	return s.query(ctx, `SELECT `+audioCols+` FROM audios WHERE is_public = 1
		ORDER BY play_count DESC, id DESC LIMIT ?`, limit)
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.Audio, error) {
	if _, err := database.ParseID(id); err != nil {
		return nil, err
	}
	a, err := scanAudio(s.db.QueryRowContext(ctx, `SELECT `+audioCols+` FROM audios WHERE id = ?`, id))
	if err != nil {
		return nil, database.MapSQLError(err)
	}
	return &a, nil
}

func (s *SQLStore) Create(ctx context.Context, a *models.Audio) error {
	now := time.Now().UTC()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Tags == nil {
		a.Tags = []string{}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO audios(`+audioCols+`) VALUES(`+database.Placeholders(17)+`)`,
		a.ID.Hex(), a.Title, a.Description, a.Artist, a.Duration, a.Category, database.StringsJSON(a.Tags),
		a.FilePublicID, a.FileURL, a.FileSecureURL, a.FileSize, a.Format, a.UploadedBy, a.PlayCount,
		database.BoolInt(a.IsPublic), database.Millis(now), database.Millis(now))
	if err != nil {
		return fmt.Errorf("insert audio: %w", database.MapSQLError(err))
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, id string, p Patch) (*models.Audio, error) {
	if _, err := database.ParseID(id); err != nil {
		return nil, err
	}
	sets := []string{"updated_ms = ?"}
	args := []any{database.Millis(time.Now())}
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Artist != nil {
		sets = append(sets, "artist = ?")
		args = append(args, *p.Artist)
	}
	if p.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *p.Category)
	}
	if p.Tags != nil {
		sets = append(sets, "tags = ?")
		args = append(args, database.StringsJSON(*p.Tags))
	}
	if p.IsPublic != nil {
		sets = append(sets, "is_public = ?")
		args = append(args, database.BoolInt(*p.IsPublic))
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE audios SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update audio: %w", err)
	}
	if err := database.RowsAffectedOrNotFound(res); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := database.ParseID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM audios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete audio: %w", err)
	}
	return database.RowsAffectedOrNotFound(res)
}

func (s *SQLStore) SetPlayCount(ctx context.Context, id string, value int64) error {
	if _, err := database.ParseID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE audios SET play_count = ?, updated_ms = ? WHERE id = ?`,
		value, database.Millis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update play count: %w", err)
	}
	return database.RowsAffectedOrNotFound(res)
}
