package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrations(t *testing.T) {
	t.Run("lists up migrations in order", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{
			"000002_stock.up.sql", "000002_stock.down.sql",
			"000001_init.up.sql", "000001_init.down.sql",
			"README.md",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644))
		}
		require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.up.sql"), 0o755))

		names, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_init", "000002_stock"}, names)
	})

	t.Run("missing directory is empty", func(t *testing.T) {
		names, err := ListMigrations(filepath.Join(t.TempDir(), "absent"))
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("repository migrations come in pairs", func(t *testing.T) {
		dir := filepath.Join("..", "..", "..", "migrations")
		names, err := ListMigrations(dir)
		require.NoError(t, err)
		require.NotEmpty(t, names)
		for _, name := range names {
			_, err := os.Stat(filepath.Join(dir, name+".down.sql"))
			assert.NoError(t, err, name)
		}
	})
}

func TestPendingAfter(t *testing.T) {
	names := []string{"000001_init", "000002_stock", "000003_indexes"}

	tests := []struct {
		name     string
		version  uint
		expected []string
	}{
		{"fresh database", 0, names},
		{"partially applied", 2, []string{"000003_indexes"}},
		{"up to date", 3, []string{}},
		{"ahead of files", 9, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, pendingAfter(names, tt.version))
		})
	}

	t.Run("unnumbered files stay pending", func(t *testing.T) {
		assert.Equal(t, []string{"manual_fix"}, pendingAfter([]string{"manual_fix"}, 5))
	})
}
