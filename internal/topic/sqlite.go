package topic

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

const topicCols = `id, slug, name, description, color, icon, is_active, sort_order, created_ms, updated_ms`

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTopic(s rowScanner) (models.Topic, error) {
	var (
		t                  models.Topic
		id                 string
		active             int
		createdMs, updated int64
	)
	if err := s.Scan(&id, &t.Slug, &t.Name, &t.Description, &t.Color, &t.Icon, &active, &t.SortOrder, &createdMs, &updated); err != nil {
		return t, err
	}
	t.ID, _ = primitive.ObjectIDFromHex(id)
	t.IsActive = active == 1
	t.CreatedAt = database.FromMillis(createdMs)
	t.UpdatedAt = database.FromMillis(updated)
	return t, nil
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) ([]models.Topic, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func where(search string) (string, []any) {
	if q := strings.TrimSpace(search); q != "" {
		like := database.LikePattern(q)
		return ` WHERE (name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`, []any{like, like}
	}
	return "", nil
}

func (s *SQLStore) Count(ctx context.Context, search string) (int64, error) {
	clause, args := where(search)
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM topics`+clause, args...).Scan(&n)
	return n, err
}

func (s *SQLStore) Find(ctx context.Context, search string, skip, limit int) ([]models.Topic, error) {
	clause, args := where(search)
	args = append(args, limit, skip)
	return s.query(ctx, `SELECT `+topicCols+` FROM topics`+clause+` ORDER BY sort_order ASC, name ASC LIMIT ? OFFSET ?`, args...)
}

func (s *SQLStore) Active(ctx context.Context) ([]models.Topic, error) {
	return s.query(ctx, `SELECT `+topicCols+` FROM topics WHERE is_active = 1 ORDER BY sort_order ASC, name ASC`)
}

func (s *SQLStore) CountByActive(ctx context.Context, active bool) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM topics WHERE is_active = ?`, database.BoolInt(active)).Scan(&n)
	return n, err
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.Topic, error) {
	if _, err := database.ParseID(id); err != nil {
		return nil, err
	}
	t, err := scanTopic(s.db.QueryRowContext(ctx, `SELECT `+topicCols+` FROM topics WHERE id = ?`, id))
	if err != nil {
		return nil, database.MapSQLError(err)
	}
	return &t, nil
}

func (s *SQLStore) GetBySlug(ctx context.Context, slug string) (*models.Topic, error) {
	t, err := scanTopic(s.db.QueryRowContext(ctx, `SELECT `+topicCols+` FROM topics WHERE slug = ?`, slug))
	if err != nil {
		return nil, database.MapSQLError(err)
	}
	return &t, nil
}

func (s *SQLStore) Create(ctx context.Context, t *models.Topic) error {
	now := time.Now().UTC()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `INSERT INTO topics(`+topicCols+`) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		t.ID.Hex(), t.Slug, t.Name, t.Description, t.Color, t.Icon,
		database.BoolInt(t.IsActive), t.SortOrder, database.Millis(now), database.Millis(now))
	if err != nil {
		return fmt.Errorf("insert topic: %w", database.MapSQLError(err))
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, id string, p Patch) (*models.Topic, error) {
	if _, err := database.ParseID(id); err != nil {
		return nil, err
	}
	sets := []string{"updated_ms = ?"}
	args := []any{database.Millis(time.Now())}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *p.Color)
	}
	if p.Icon != nil {
		sets = append(sets, "icon = ?")
		args = append(args, *p.Icon)
	}
	if p.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, database.BoolInt(*p.IsActive))
	}
	if p.SortOrder != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *p.SortOrder)
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE topics SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update topic: %w", err)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM topics WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	return database.RowsAffectedOrNotFound(res)
}
