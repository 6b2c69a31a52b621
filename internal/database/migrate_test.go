package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "0001_init", migrations[0].Version)
	for _, table := range []string{"users", "strategies", "backtests", "metrics", "tokens"} {
		assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, migrations[0].SQL, "ON DELETE CASCADE")
}

func TestMigrationsOrdered(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}
