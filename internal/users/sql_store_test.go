package users

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := NewSQLiteStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func sampleUser(mobile string) NewUser {
	return NewUser{
		UserType:     "farmer",
		Name:         "Karim",
		Mobile:       mobile,
		PasswordHash: "$2a$10$hash",
		Email:        "karim@example.com",
		Division:     "Dhaka",
		District:     "Gazipur",
		Upazila:      "Kaliakair",
		Address:      "Village road 1",
	}
}

func TestSQLiteStore_CreateAndFind(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, sampleUser("01712345678"))
	require.NoError(t, err)
	assert.Positive(t, id)

	found, err := store.FindByMobileAndType(ctx, "01712345678", "farmer")
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, "Karim", found.Name)
	assert.Equal(t, "Kaliakair", found.Upazila)
	assert.Equal(t, "$2a$10$hash", found.PasswordHash)
	assert.Equal(t, StatusActive, found.Status, "status should come from the column default")
	assert.True(t, found.IsActive())
	assert.False(t, found.CreatedAt.IsZero(), "created_at should come from the column default")
	assert.WithinDuration(t, time.Now(), found.CreatedAt, time.Minute)
}

func TestSQLiteStore_FindRequiresMatchingType(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, sampleUser("01712345678"))
	require.NoError(t, err)

	_, err = store.FindByMobileAndType(ctx, "01712345678", "admin")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.FindByMobileAndType(ctx, "01899999999", "farmer")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ExistsByMobile(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	exists, err := store.ExistsByMobile(ctx, "01712345678")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Create(ctx, sampleUser("01712345678"))
	require.NoError(t, err)

	exists, err = store.ExistsByMobile(ctx, "01712345678")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLiteStore_CreateDuplicateMobile(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, sampleUser("01712345678"))
	require.NoError(t, err)

	dup := sampleUser("01712345678")
	dup.UserType = "admin"
	_, err = store.Create(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateMobile)

	var count int
	require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_InactiveStatus(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, sampleUser("01712345678"))
	require.NoError(t, err)
	_, err = store.DB().ExecContext(ctx, "UPDATE users SET status = 'inactive' WHERE id = ?", id)
	require.NoError(t, err)

	found, err := store.FindByMobileAndType(ctx, "01712345678", "farmer")
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, found.Status)
	assert.False(t, found.IsActive())
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	store := newSQLiteStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: Postgres}
	assert.Equal(t, "SELECT 1 FROM users WHERE mobile = $1 AND user_type = $2",
		pg.rebind("SELECT 1 FROM users WHERE mobile = ? AND user_type = ?"))

	lite := &SQLStore{dialect: SQLite}
	assert.Equal(t, "WHERE mobile = ?", lite.rebind("WHERE mobile = ?"))
}

func TestTimeScanner(t *testing.T) {
	want := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	for _, src := range []any{"2024-05-01 09:30:00", []byte("2024-05-01T09:30:00Z"), want} {
		var got time.Time
		require.NoError(t, timeScanner{&got}.Scan(src))
		assert.True(t, got.Equal(want), "src %v", src)
	}

	var got time.Time
	assert.Error(t, timeScanner{&got}.Scan("yesterday"))
	assert.Error(t, timeScanner{&got}.Scan(42))
}
