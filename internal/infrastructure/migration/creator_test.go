package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/firesafe/ledger/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add batch code index", "add_batch_code_index"},
		{"Add-Batch-Code", "add_batch_code"},
		{"add__snapshot__table", "add_snapshot_table"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_NumbersAfterExisting(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"000001_ledger.up.sql", "000001_ledger.down.sql", "000002_costing.up.sql", "000002_costing.down.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- test"), 0o644))
	}

	mf, err := CreateMigration(dir, "Add batch code index", "Speeds up transfers by code")
	require.NoError(t, err)
	assert.Equal(t, "000003", mf.Version)
	assert.Equal(t, filepath.Join(dir, "000003_add_batch_code_index.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000003_add_batch_code_index.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: Add batch code index")
	assert.Contains(t, string(up), "-- Description: Speeds up transfers by code")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")
}

func TestCreateMigration_EmptyDirectoryStartsAtOne(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(dir, "init", "")
	require.NoError(t, err)
	assert.Equal(t, "000001", mf.Version)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsUnusableName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_costing.up.sql":   {Data: []byte("--")},
		"000002_costing.down.sql": {Data: []byte("--")},
		"000001_ledger.up.sql":    {Data: []byte("--")},
		"000001_ledger.down.sql":  {Data: []byte("--")},
		"000003_no_down.up.sql":   {Data: []byte("--")},
		"README.md":               {Data: []byte("docs")},
		"nonumber.up.sql":         {Data: []byte("--")},
		"subdir.up.sql/file":      {Data: []byte("--")},
	}

	got, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []Migration{
		{Version: 1, Name: "ledger", HasDown: true},
		{Version: 2, Name: "costing", HasDown: true},
		{Version: 3, Name: "no_down", HasDown: false},
	}, got)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	got, err := ListMigrations(os.DirFS("/nonexistent/path/to/migrations"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	got, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, m := range got {
		assert.Equal(t, i+1, m.Version)
		assert.True(t, m.HasDown, "migration %d has no down file", m.Version)
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("down")
	require.NoError(t, err)
	assert.Equal(t, Down, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}
