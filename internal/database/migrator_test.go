package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, name := range names {
		base := strings.TrimPrefix(name, "migrations/")
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			ups[strings.TrimSuffix(base, ".up.sql")] = true
		case strings.HasSuffix(base, ".down.sql"):
			downs[strings.TrimSuffix(base, ".down.sql")] = true
		default:
			t.Errorf("migration %s is neither up nor down", base)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestChangeTriggerUsesFeedChannel(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/000003_session_change_notify.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "pg_notify('session_changes'")
	assert.Contains(t, string(raw), "'owner_id'")
}
