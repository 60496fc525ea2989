package users

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// goose の設定はパッケージグローバルなので直列化する
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate は方言に対応する埋め込みマイグレーションを適用します。
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect.GooseDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, dialect.MigrationsDir); err != nil {
		return fmt.Errorf("run %s migrations: %w", dialect.Name, err)
	}
	return nil
}

// Migrate はストア自身の方言でマイグレーションを適用します。
func (s *SQLStore) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.db, s.dialect)
}
