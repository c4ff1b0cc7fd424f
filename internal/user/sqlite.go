package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"thientam/pkg/database"
	"thientam/pkg/models"
)

const userCols = `id, email, password_hash, name, avatar, date_of_birth_ms, role, preferences, stats,
	is_active, is_email_verified, last_login_ms, created_ms, updated_ms`

var sqlSortColumns = map[string]string{
	"createdAt":   "created_ms",
	"updatedAt":   "updated_ms",
	"name":        "name",
	"email":       "email",
	"role":        "role",
	"lastLoginAt": "last_login_ms",
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

func scanUser(s rowScanner) (models.User, error) {
	var (
		u                  models.User
		id                 string
		avatar             sql.NullString
		dob, lastLogin     sql.NullInt64
		prefs, stats       sql.NullString
		active, verified   int
		createdMs, updated int64
	)
	err := s.Scan(&id, &u.Email, &u.PasswordHash, &u.Name, &avatar, &dob, &u.Role, &prefs, &stats,
		&active, &verified, &lastLogin, &createdMs, &updated)
	if err != nil {
		return u, err
	}
	u.ID, _ = primitive.ObjectIDFromHex(id)
	if avatar.Valid {
		u.Avatar = &avatar.String
	}
	u.DateOfBirth = database.FromNullMillis(dob)
	u.LastLoginAt = database.FromNullMillis(lastLogin)
	if prefs.Valid && prefs.String != "" {
		u.Preferences = &models.Preferences{}
		if err := json.Unmarshal([]byte(prefs.String), u.Preferences); err != nil {
			return u, fmt.Errorf("decode preferences: %w", err)
		}
	}
	if stats.Valid && stats.String != "" {
		u.Stats = &models.UserStats{}
		if err := json.Unmarshal([]byte(stats.String), u.Stats); err != nil {
			return u, fmt.Errorf("decode stats: %w", err)
		}
	}
	u.IsActive = active == 1
	u.IsEmailVerified = verified == 1
	u.CreatedAt = database.FromMillis(createdMs)
	u.UpdatedAt = database.FromMillis(updated)
	return u, nil
}

func nullJSON(v any) (sql.NullString, error) {
	switch x := v.(type) {
	case *models.Preferences:
		if x == nil {
			return sql.NullString{}, nil
		}
	case *models.UserStats:
		if x == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (s *SQLStore) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = NormalizeEmail(u.Email)
	u.CreatedAt, u.UpdatedAt = now, now

	prefs, err := nullJSON(u.Preferences)
	if err != nil {
		return err
	}
	stats, err := nullJSON(u.Stats)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO users(`+userCols+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID.Hex(), u.Email, u.PasswordHash, u.Name, nullString(u.Avatar), database.NullMillis(u.DateOfBirth),
		u.Role, prefs, stats, database.BoolInt(u.IsActive), database.BoolInt(u.IsEmailVerified),
		database.NullMillis(u.LastLoginAt), database.Millis(now), database.Millis(now))
	if err != nil {
		return fmt.Errorf("insert user: %w", database.MapSQLError(err))
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.User, error) {
	if _, err := database.ParseID(id); err != nil {
		return nil, err
	}
	return s.one(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
}

func (s *SQLStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.one(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, NormalizeEmail(email))
}

func (s *SQLStore) one(ctx context.Context, q string, args ...any) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, database.MapSQLError(err)
	}
	return &u, nil
}

func where(f Filter) (string, []any) {
	clause := " WHERE 1=1"
	args := []any{}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := database.LikePattern(q)
		clause += ` AND (name LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')`
		args = append(args, like, like)
	}
	if f.Role != "" {
		clause += " AND role = ?"
		args = append(args, f.Role)
	}
	if f.IsActive != nil {
		clause += " AND is_active = ?"
		args = append(args, database.BoolInt(*f.IsActive))
	}
	return clause, args
}

func (s *SQLStore) Count(ctx context.Context, f Filter) (int64, error) {
	clause, args := where(f)
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+clause, args...).Scan(&n)
	return n, err
}

func (s *SQLStore) Find(ctx context.Context, f Filter, skip, limit int) ([]models.User, error) {
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
	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users`+clause+
		` ORDER BY `+col+` `+dir+`, id `+dir+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (s *SQLStore) Update(ctx context.Context, id string, p Patch) (*models.User, error) {
	if _, err := database.ParseID(id); err != nil {
		return nil, err
	}
	sets := []string{"updated_ms = ?"}
	args := []any{database.Millis(time.Now())}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Email != nil {
		add("email", NormalizeEmail(*p.Email))
	}
	if p.PasswordHash != nil {
		add("password_hash", *p.PasswordHash)
	}
	if p.Role != nil {
		add("role", *p.Role)
	}
	if p.IsActive != nil {
		add("is_active", database.BoolInt(*p.IsActive))
	}
	if p.Avatar != nil {
		add("avatar", *p.Avatar)
	}
	if p.DateOfBirth != nil {
		add("date_of_birth_ms", database.Millis(*p.DateOfBirth))
	}
	if p.LastLoginAt != nil {
		add("last_login_ms", database.Millis(*p.LastLoginAt))
	}
	if p.Preferences != nil {
		v, err := nullJSON(p.Preferences)
		if err != nil {
			return nil, err
		}
		add("preferences", v)
	}
	if p.Stats != nil {
		v, err := nullJSON(p.Stats)
		if err != nil {
			return nil, err
		}
		add("stats", v)
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", database.MapSQLError(err))
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return database.RowsAffectedOrNotFound(res)
}
