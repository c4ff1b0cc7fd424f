package bookcategory

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

const categoryCols = `id, name, name_en, description, icon, color, display_order, is_active, book_count, created_ms, updated_ms`

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(s rowScanner) (models.BookCategory, error) {
	var (
		bc                   models.BookCategory
		id                   string
		isActive             int
		createdMs, updatedMs int64
	)
	err := s.Scan(&id, &bc.Name, &bc.NameEn, &bc.Description, &bc.Icon, &bc.Color, &bc.DisplayOrder,
		&isActive, &bc.BookCount, &createdMs, &updatedMs)
	if err != nil {
		return bc, err
	}
	bc.ID, _ = primitive.ObjectIDFromHex(id)
	bc.IsActive = isActive == 1
	bc.CreatedAt = database.FromMillis(createdMs)
	bc.UpdatedAt = database.FromMillis(updatedMs)
	return bc, nil
}

func (s *SQLStore) List(ctx context.Context, isActive *bool) ([]models.BookCategory, error) {
	q := `SELECT ` + categoryCols + ` FROM book_categories`
	args := []any{}
	if isActive != nil {
		q += ` WHERE is_active = ?`
		args = append(args, database.BoolInt(*isActive))
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY display_order ASC, name ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.BookCategory{}
	for rows.Next() {
		bc, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, bc)
	}
	return res, rows.Err()
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.BookCategory, error) {
	if _, err := database.ParseID(id); err != nil {
		return nil, err
	}
	return s.one(ctx, `WHERE id = ?`, id)
}

func (s *SQLStore) GetByName(ctx context.Context, name string) (*models.BookCategory, error) {
	return s.one(ctx, `WHERE name = ?`, name)
}

func (s *SQLStore) one(ctx context.Context, where string, args ...any) (*models.BookCategory, error) {
	bc, err := scanCategory(s.db.QueryRowContext(ctx, `SELECT `+categoryCols+` FROM book_categories `+where, args...))
	if err != nil {
		return nil, database.MapSQLError(err)
	}
	return &bc, nil
}

func (s *SQLStore) Create(ctx context.Context, bc *models.BookCategory) error {
	now := time.Now().UTC()
	if bc.ID.IsZero() {
		bc.ID = primitive.NewObjectID()
	}
	bc.CreatedAt, bc.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `INSERT INTO book_categories(`+categoryCols+`) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		bc.ID.Hex(), bc.Name, bc.NameEn, bc.Description, bc.Icon, bc.Color, bc.DisplayOrder,
		database.BoolInt(bc.IsActive), bc.BookCount, database.Millis(now), database.Millis(now))
	if err != nil {
		return fmt.Errorf("insert book category: %w", database.MapSQLError(err))
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, id string, p Patch) (*models.BookCategory, error) {
	if _, err := database.ParseID(id); err != nil {
		return nil, err
	}
	sets := []string{"updated_ms = ?"}
	args := []any{database.Millis(time.Now())}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.NameEn != nil {
		sets = append(sets, "name_en = ?")
		args = append(args, *p.NameEn)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Icon != nil {
		sets = append(sets, "icon = ?")
		args = append(args, *p.Icon)
	}
	if p.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *p.Color)
	}
	if p.DisplayOrder != nil {
		sets = append(sets, "display_order = ?")
		args = append(args, *p.DisplayOrder)
	}
	if p.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, database.BoolInt(*p.IsActive))
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE book_categories SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update book category: %w", database.MapSQLError(err))
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM book_categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book category: %w", err)
	}
	return database.RowsAffectedOrNotFound(res)
}

func (s *SQLStore) Reorder(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE book_categories SET display_order = ?, updated_ms = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := database.Millis(time.Now())
	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, i, now, id); err != nil {
			return fmt.Errorf("reorder %s: %w", id, err)
		}
	}
	return tx.Commit()
}
