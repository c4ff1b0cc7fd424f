package reading

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

const readingCols = `id, date_ms, title, body, topic_slugs, keywords, source, lang, created_ms, updated_ms`

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(s rowScanner) (models.Reading, error) {
	var (
		r                      models.Reading
		id, topics, keywords   string
		dateMs, createdMs, upd int64
	)
	if err := s.Scan(&id, &dateMs, &r.Title, &r.Body, &topics, &keywords, &r.Source, &r.Lang, &createdMs, &upd); err != nil {
		return r, err
	}
	r.ID, _ = primitive.ObjectIDFromHex(id)
	r.Date = database.FromMillis(dateMs)
	r.TopicSlugs = database.ParseStrings(topics)
	r.Keywords = database.ParseStrings(keywords)
	r.CreatedAt = database.FromMillis(createdMs)
	r.UpdatedAt = database.FromMillis(upd)
	return r, nil
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Reading{}
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *SQLStore) ByDate(ctx context.Context, day time.Time) ([]models.Reading, error) {
	return s.query(ctx, `SELECT `+readingCols+` FROM readings WHERE date_ms = ? ORDER BY created_ms ASC, id ASC`,
		database.Millis(day))
}

func where(f Filter) (string, []any) {
	clause := " WHERE 1=1"
	args := []any{}
	if f.Topic != "" {
		clause += " AND EXISTS (SELECT 1 FROM json_each(readings.topic_slugs) WHERE json_each.value = ?)"
		args = append(args, f.Topic)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := database.LikePattern(q)
		clause += ` AND (title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\')`
		args = append(args, like, like)
	}
	return clause, args
}

func (s *SQLStore) Count(ctx context.Context, f Filter) (int64, error) {
	clause, args := where(f)
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`+clause, args...).Scan(&n)
	return n, err
}

func (s *SQLStore) Find(ctx context.Context, f Filter, skip, limit int) ([]models.Reading, error) {
	clause, args := where(f)
	args = append(args, limit, skip)
	return s.query(ctx, `SELECT `+readingCols+` FROM readings`+clause+` ORDER BY date_ms DESC, created_ms DESC LIMIT ? OFFSET ?`, args...)
}

func (s *SQLStore) Month(ctx context.Context, from, to time.Time) ([]models.ReadingSummary, error) {
	return s.summaries(ctx, `SELECT id, date_ms, title, topic_slugs FROM readings
		WHERE date_ms >= ? AND date_ms < ? ORDER BY date_ms ASC, created_ms ASC`,
		database.Millis(from), database.Millis(to))
}

func (s *SQLStore) summaries(ctx context.Context, q string, args ...any) ([]models.ReadingSummary, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.ReadingSummary{}
	for rows.Next() {
		var (
			sum        models.ReadingSummary
			id, topics string
			dateMs     int64
		)
		if err := rows.Scan(&id, &dateMs, &sum.Title, &topics); err != nil {
			return nil, err
		}
		sum.ID, _ = primitive.ObjectIDFromHex(id)
		sum.Date = database.FromMillis(dateMs)
		sum.TopicSlugs = database.ParseStrings(topics)
		res = append(res, sum)
	}
	return res, rows.Err()
}

func (s *SQLStore) Random(ctx context.Context) (*models.Reading, error) {
	r, err := scanReading(s.db.QueryRowContext(ctx, `SELECT `+readingCols+` FROM readings ORDER BY RANDOM() LIMIT 1`))
	if err != nil {
		return nil, database.MapSQLError(err)
	}
	return &r, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.Reading, error) {
	if _, err := database.ParseID(id); err != nil {
		return nil, err
	}
	r, err := scanReading(s.db.QueryRowContext(ctx, `SELECT `+readingCols+` FROM readings WHERE id = ?`, id))
	if err != nil {
		return nil, database.MapSQLError(err)
	}
	return &r, nil
}

func (s *SQLStore) Create(ctx context.Context, r *models.Reading) error {
	now := time.Now().UTC()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	r.CreatedAt, r.UpdatedAt = now, now
	if r.TopicSlugs == nil {
		r.TopicSlugs = []string{}
	}
	if r.Keywords == nil {
		r.Keywords = []string{}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO readings(`+readingCols+`) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.ID.Hex(), database.Millis(r.Date), r.Title, r.Body,
		database.StringsJSON(r.TopicSlugs), database.StringsJSON(r.Keywords),
		r.Source, r.Lang, database.Millis(now), database.Millis(now))
	if err != nil {
		return fmt.Errorf("insert reading: %w", database.MapSQLError(err))
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, id string, p Patch) (*models.Reading, error) {
	if _, err := database.ParseID(id); err != nil {
		return nil, err
	}
	sets := []string{"updated_ms = ?"}
	args := []any{database.Millis(time.Now())}
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Body != nil {
		sets = append(sets, "body = ?")
		args = append(args, *p.Body)
	}
	if p.TopicSlugs != nil {
		sets = append(sets, "topic_slugs = ?")
		args = append(args, database.StringsJSON(*p.TopicSlugs))
	}
	if p.Keywords != nil {
		sets = append(sets, "keywords = ?")
		args = append(args, database.StringsJSON(*p.Keywords))
	}
	if p.Source != nil {
		sets = append(sets, "source = ?")
		args = append(args, *p.Source)
	}
	if p.Lang != nil {
		sets = append(sets, "lang = ?")
		args = append(args, *p.Lang)
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE readings SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update reading: %w", err)
	}
	if err := database.RowsAffectedOrNotFound(res); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Delete(ctx context.Context, id string) (*models.Reading, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM readings WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("delete reading: %w", err)
	}
	if err := database.RowsAffectedOrNotFound(res); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLStore) CountByTopic(ctx context.Context, slug string) (int64, error) {
	return s.Count(ctx, Filter{Topic: slug})
}

func (s *SQLStore) TopicCounts(ctx context.Context) ([]TopicCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT j.value, COUNT(*) AS n
		FROM readings, json_each(readings.topic_slugs) AS j
		GROUP BY j.value ORDER BY n DESC, j.value ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []TopicCount{}
	for rows.Next() {
		var tc TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, err
		}
		res = append(res, tc)
	}
	return res, rows.Err()
}

func (s *SQLStore) Recent(ctx context.Context, n int) ([]models.ReadingSummary, error) {
	return s.summaries(ctx, `SELECT id, date_ms, title, topic_slugs FROM readings
		ORDER BY date_ms DESC, created_ms DESC LIMIT ?`, n)
}

func (s *SQLStore) DatesSince(ctx context.Context, from time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date_ms FROM readings WHERE date_ms >= ?`, database.Millis(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []time.Time{}
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, err
		}
		res = append(res, database.FromMillis(ms))
	}
	return res, rows.Err()
}
