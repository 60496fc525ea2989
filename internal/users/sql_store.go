package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	queryFindByMobileAndType = `SELECT id, user_type, name, mobile, email, division, district, upazila, address, password, status, created_at
		FROM users
		WHERE mobile = ? AND user_type = ?`

	queryExistsByMobile = `SELECT 1 FROM users WHERE mobile = ? LIMIT 1`

	queryInsertUser = `INSERT INTO users (user_type, name, mobile, password, email, division, district, upazila, address)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
)

// SQLStore は database/sql 上の Store 実装です。Postgres と SQLite で共有します。
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SQLStore)(nil)

// NewPostgresStore は pgx ドライバーで開いた DB 用のストアを作成します。
func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: Postgres}
}

// NewSQLiteStore は modernc SQLite で開いた DB 用のストアを作成します。
func NewSQLiteStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: SQLite}
}

// DB は内部の接続を返します。
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// FindByMobileAndType implements Store.
func (s *SQLStore) FindByMobileAndType(ctx context.Context, mobile, userType string) (*User, error) {
	var (
		user   User
		status string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(queryFindByMobileAndType), mobile, userType).Scan(
		&user.ID, &user.UserType, &user.Name, &user.Mobile, &user.Email,
		&user.Division, &user.District, &user.Upazila, &user.Address,
		&user.PasswordHash, &status, timeScanner{&user.CreatedAt},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user by mobile: %w", err)
	}
	user.Status = Status(status)
	return &user, nil
}

// ExistsByMobile implements Store.
func (s *SQLStore) ExistsByMobile(ctx context.Context, mobile string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(queryExistsByMobile), mobile).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check mobile: %w", err)
	}
	return true, nil
}

// Create implements Store. 一意制約違反は ErrDuplicateMobile として返します。
func (s *SQLStore) Create(ctx context.Context, user NewUser) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(queryInsertUser),
		user.UserType, user.Name, user.Mobile, user.PasswordHash, user.Email,
		user.Division, user.District, user.Upazila, user.Address,
	).Scan(&id)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return 0, errors.Join(ErrDuplicateMobile, err)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// rebind は ? プレースホルダーを方言に合わせて書き換えます。
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.NumberedParams {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 16)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLite の DATETIME はドライバーによって文字列のまま返るため両方を受け付ける
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

type timeScanner struct {
	dst *time.Time
}

func (ts timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*ts.dst = time.Time{}
		return nil
	case time.Time:
		*ts.dst = v.UTC()
		return nil
	case []byte:
		return ts.parse(string(v))
	case string:
		return ts.parse(v)
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (ts timeScanner) parse(s string) error {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*ts.dst = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse time %q", s)
}
