package auth_test

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"testing"

	auth "github.com/PeteRetep191/boring-seo-crm-sub000"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestRepo(t *testing.T) auth.RepositoryManager {
	repo, _ := setupTestRepoDB(t)
	return repo
}

func setupTestRepoDB(t *testing.T) (auth.RepositoryManager, *bun.DB) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	applyMigrations(t, bunDB)

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	return auth.NewRepositoryManager(bunDB), bunDB
}

func applyMigrations(t *testing.T, db *bun.DB) {
	t.Helper()

	mfs := auth.GetMigrationsFS()

	var files []string
	err := fs.WalkDir(mfs, "data/sql/migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)

	sort.Strings(files)

	for _, file := range files {
		content, err := fs.ReadFile(mfs, file)
		require.NoError(t, err)

		_, err = db.Exec(string(content))
		require.NoError(t, err, "migration %s", file)
	}
}

func createTestUser(t *testing.T, repo auth.RepositoryManager, email, password string) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	user, err := repo.Users().Create(context.Background(), &auth.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	require.NotNil(t, user)

	return user
}

func testConfig() *auth.SimpleConfig {
	return &auth.SimpleConfig{}
}

func testFingerprint() auth.Fingerprint {
	fp := auth.Fingerprint{
		IP:        "203.0.113.10",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		OS:        "macOS",
	}
	fp.Browser.Name = "Chrome"
	fp.Browser.Version = "120.0.0.0"
	fp.Device.Vendor = "Apple"
	return fp
}
