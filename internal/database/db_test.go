package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_indexes.up.sql":       {Data: []byte("CREATE INDEX x ON t (a);")},
		"001_pps_samples.up.sql":   {Data: []byte("CREATE TABLE t (a INT);")},
		"001_pps_samples.down.sql": {Data: []byte("DROP TABLE t;")},
		"README.md":                {Data: []byte("notes")},
		"archive/000_old.up.sql":   {Data: []byte("SELECT 1;")},
	}

	got, err := PendingMigrations(fsys, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_pps_samples.up.sql", "002_indexes.up.sql"}, got)

	got, err = PendingMigrations(fsys, map[string]bool{"001_pps_samples.up.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"002_indexes.up.sql"}, got)
}

func TestPendingMigrationsEmpty(t *testing.T) {
	got, err := PendingMigrations(fstest.MapFS{}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
