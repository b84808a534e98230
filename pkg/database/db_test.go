package database_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/database"
)

func TestOpenSQLite(t *testing.T) {
	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	assert.NoError(t, database.Close(db))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := database.Open("oracle", "x")
	assert.ErrorContains(t, err, "unsupported DB_DRIVER")
}
