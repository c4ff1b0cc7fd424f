package book

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

const bookCols = `id, title, author, translator, description, category, tags, book_language,
	file_public_id, file_url, file_secure_url, file_size, page_count, cover_image_url, cover_image_public_id,
	publisher, publish_year, isbn, download_count, view_count, is_public, uploaded_by, created_ms, updated_ms`

var sqlSortColumns = map[string]string{
	"createdAt":     "created_ms",
	"updatedAt":     "updated_ms",
	"title":         "title",
	"author":        "author",
	"publishYear":   "publish_year",
	"downloadCount": "download_count",
	"viewCount":     "view_count",
}

var sqlCounterColumns = map[Counter]string{
	Downloads: "download_count",
	Views:     "view_count",
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

func scanBook(s rowScanner) (models.Book, error) {
	var (
		b                    models.Book
		id, tags             string
		pageCount, year      sql.NullInt64
		isPublic             int
		createdMs, updatedMs int64
	)
	err := s.Scan(&id, &b.Title, &b.Author, &b.Translator, &b.Description, &b.Category, &tags, &b.BookLanguage,
		&b.FilePublicID, &b.FileURL, &b.FileSecureURL, &b.FileSize, &pageCount, &b.CoverImageURL, &b.CoverImagePublicID,
		&b.Publisher, &year, &b.ISBN, &b.DownloadCount, &b.ViewCount, &isPublic, &b.UploadedBy, &createdMs, &updatedMs)
	if err != nil {
		return b, err
	}
	b.ID, _ = primitive.ObjectIDFromHex(id)
	b.Tags = database.ParseStrings(tags)
	b.PageCount = database.FromNullInt(pageCount)
	b.PublishYear = database.FromNullInt(year)
	b.IsPublic = isPublic == 1
	b.CreatedAt = database.FromMillis(createdMs)
	b.UpdatedAt = database.FromMillis(updatedMs)
	return b, nil
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) ([]models.Book, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
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
	if f.Language != "" {
		clause += " AND book_language = ?"
		args = append(args, f.Language)
	}
	if f.IsPublic != nil {
		clause += " AND is_public = ?"
		args = append(args, database.BoolInt(*f.IsPublic))
	}
	if len(f.Tags) > 0 {
		clause += " AND EXISTS (SELECT 1 FROM json_each(books.tags) WHERE json_each.value IN (" + database.Placeholders(len(f.Tags)) + "))"
		for _, t := range f.Tags {
			args = append(args, t)
		}
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := database.LikePattern(q)
		clause += ` AND (title LIKE ? ESCAPE '\' OR author LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`
		args = append(args, like, like, like)
	}
	return clause, args
}

func (s *SQLStore) Count(ctx context.Context, f Filter) (int64, error) {
	clause, args := where(f)
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`+clause, args...).Scan(&n)
	return n, err
}

func (s *SQLStore) Find(ctx context.Context, f Filter, skip, limit int) ([]models.Book, error) {
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
	return s.query(ctx, `SELECT `+bookCols+` FROM books`+clause+
		` ORDER BY `+col+` `+dir+`, id `+dir+` LIMIT ? OFFSET ?`, args...)
}

func (s *SQLStore) Popular(ctx context.Context, limit int) ([]models.Book, error) {
	return s.query(ctx, `SELECT `+bookCols+` FROM books WHERE is_public = 1
		ORDER BY download_count DESC, view_count DESC, id DESC LIMIT ?`, limit)
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.Book, error) {
	if _, err := database.ParseID(id); err != nil {
		return nil, err
	}
	b, err := scanBook(s.db.QueryRowContext(ctx, `SELECT `+bookCols+` FROM books WHERE id = ?`, id))
	if err != nil {
		return nil, database.MapSQLError(err)
	}
	return &b, nil
}

func (s *SQLStore) Create(ctx context.Context, b *models.Book) error {
	now := time.Now().UTC()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	b.CreatedAt, b.UpdatedAt = now, now
	if b.Tags == nil {
		b.Tags = []string{}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO books(`+bookCols+`) VALUES(`+database.Placeholders(24)+`)`,
		b.ID.Hex(), b.Title, b.Author, b.Translator, b.Description, b.Category, database.StringsJSON(b.Tags), b.BookLanguage,
		b.FilePublicID, b.FileURL, b.FileSecureURL, b.FileSize, database.NullInt(b.PageCount), b.CoverImageURL, b.CoverImagePublicID,
		b.Publisher, database.NullInt(b.PublishYear), b.ISBN, b.DownloadCount, b.ViewCount, database.BoolInt(b.IsPublic), b.UploadedBy,
		database.Millis(now), database.Millis(now))
	if err != nil {
		return fmt.Errorf("insert book: %w", database.MapSQLError(err))
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, id string, p Patch) (*models.Book, error) {
	if _, err := database.ParseID(id); err != nil {
		return nil, err
	}
	sets := []string{"updated_ms = ?"}
	args := []any{database.Millis(time.Now())}
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Author != nil {
		set("author", *p.Author)
	}
	if p.Translator != nil {
		set("translator", *p.Translator)
	}
	if p.Description != nil {
		set("description", *p.Description)
	}
	if p.Category != nil {
		set("category", *p.Category)
	}
	if p.Tags != nil {
		set("tags", database.StringsJSON(*p.Tags))
	}
	if p.BookLanguage != nil {
		set("book_language", *p.BookLanguage)
	}
	if p.Publisher != nil {
		set("publisher", *p.Publisher)
	}
	if p.PublishYear != nil {
		set("publish_year", *p.PublishYear)
	}
	if p.ISBN != nil {
		set("isbn", *p.ISBN)
	}
	if p.PageCount != nil {
		set("page_count", *p.PageCount)
	}
	if p.IsPublic != nil {
		set("is_public", database.BoolInt(*p.IsPublic))
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE books SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return database.RowsAffectedOrNotFound(res)
}

func (s *SQLStore) SetCounter(ctx context.Context, id string, c Counter, value int64) error {
	col, ok := sqlCounterColumns[c]
	if !ok {
		return fmt.Errorf("unknown counter %q", c)
	}
	if _, err := database.ParseID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE books SET `+col+` = ?, updated_ms = ? WHERE id = ?`,
		value, database.Millis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update %s: %w", c, err)
	}
	return database.RowsAffectedOrNotFound(res)
}

func (s *SQLStore) CountByCategory(ctx context.Context, category string) (int64, error) {
	return s.Count(ctx, Filter{Category: category})
}
