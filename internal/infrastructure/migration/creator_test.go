package migration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var createdAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add reservation index", "add_reservation_index"},
		{"Add-Transfer-Lines", "add_transfer_lines"},
		{"ADD__RECEIPT__STATUS", "add_receipt_status"},
		{"  padded  ", "padded"},
		{"drop!@#legacy", "droplegacy"},
		{"_leading and trailing_", "leading_and_trailing"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_NumbersAfterLatest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001_init_ledger.up.sql", "000001_init_ledger.down.sql", "000004_add_lots.up.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	mf, err := CreateMigration(dir, "Add reservation expiry index", "Speeds up the expiry sweep", createdAt)
	require.NoError(t, err)

	assert.Equal(t, "000005", mf.Version)
	assert.Equal(t, "add_reservation_expiry_index", mf.Name)
	assert.Equal(t, filepath.Join(dir, "000005_add_reservation_expiry_index.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000005_add_reservation_expiry_index.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Equal(t, "-- 000005_add_reservation_expiry_index (up)\n-- Created: 2026-03-02T09:00:00Z\n-- Speeds up the expiry sweep\n\n", string(up))

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(down)")
}

func TestCreateMigration_EmptyDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")

	mf, err := CreateMigration(dir, "init", "", createdAt)
	require.NoError(t, err)
	assert.Equal(t, "000001", mf.Version)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.NotContains(t, string(up), "-- \n")
}

func TestCreateMigration_RejectsBlankName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "", createdAt)
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000010_add_lots.up.sql",
		"000002_add_receipts.up.sql",
		"000002_add_receipts.down.sql",
		"000001_init_ledger.up.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000003_dir.up.sql"), 0o755))

	names, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init_ledger", "000002_add_receipts", "000010_add_lots"}, names)

	names, err = ListMigrations(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestEmbeddedMigrationsAreListed(t *testing.T) {
	src, err := sourceFS("")
	require.NoError(t, err)

	latest, err := latestVersion(src)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, latest, uint64(1))

	_, err = sourceFS(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
