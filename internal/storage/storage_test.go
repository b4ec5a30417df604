package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/teamterrain/internal/config"
	"github.com/sakif/teamterrain/internal/logger"
)

func TestOpen_SQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "teamterrain.db")

	store, err := Open(context.Background(), config.DBConfig{Driver: config.DriverSQLite, Path: path}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.NoError(t, store.Ping(context.Background()))
	assert.FileExists(t, path)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DBConfig{Driver: "mongo"}, logger.Discard())
	assert.ErrorContains(t, err, `unknown driver "mongo"`)
}
