package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/flatapi/internal/config"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

func TestStorageType(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want int
	}{
		{"dsn wins", config.Config{DatabaseDSN: "postgres://localhost/flat", DataDir: "x"}, StorageTypePostgresql},
		{"data dir", config.Config{DataDir: "x"}, StorageTypeFile},
		{"nothing set", config.Config{}, StorageTypeMemory},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, storageType(&test.cfg))
		})
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	db, err := OpenStore(ctx, &config.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &recordstore.FileStore{}, db)
	require.NoError(t, db.Close())

	db, err = OpenStore(ctx, &config.Config{})
	require.NoError(t, err)
	assert.IsType(t, &recordstore.MemoryStore{}, db)
}

func TestNewBuildsBothKinds(t *testing.T) {
	for _, kind := range []Kind{Uptime, Pizza} {
		t.Run(kind.String(), func(t *testing.T) {
			t.Setenv("FILE_STORAGE_PATH", t.TempDir())

			app, err := New(kind, config.WithDisableFlagsParsing(true))

			require.NoError(t, err)
			assert.NotNil(t, app.httpHandler)
			assert.Nil(t, app.adminServer)
			assert.Equal(t, kind == Uptime, app.checker != nil)
			assert.Equal(t, kind == Pizza, app.pizza != nil)
			require.NoError(t, app.db.Close())
		})
	}
}

func TestOpenConsoleLocal(t *testing.T) {
	c, closeSource, err := OpenConsole(context.Background(), &config.Config{DataDir: t.TempDir()}, "", "")

	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.True(t, c.Process(context.Background(), "list users"))
	assert.NoError(t, closeSource())
}
