package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/verifybot/internal/config"
	"github.com/patric-chuzhbe/verifybot/internal/db/jsondb"
	"github.com/patric-chuzhbe/verifybot/internal/db/memorystorage"
	"github.com/patric-chuzhbe/verifybot/internal/models"
)

func TestGetAvailableStorageType(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want int
	}{
		{name: "dsn wins", cfg: config.Config{DatabaseDSN: "host=db", DBFileName: "db.json"}, want: models.StorageTypePostgresql},
		{name: "file", cfg: config.Config{DBFileName: "db.json"}, want: models.StorageTypeFile},
		{name: "memory", cfg: config.Config{}, want: models.StorageTypeMemory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getAvailableStorageType(&tt.cfg))
		})
	}
}

func TestGetStorageByType(t *testing.T) {
	db, err := getStorageByType(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, &memorystorage.MemoryStorage{}, db)

	fileName := filepath.Join(t.TempDir(), "database.json")
	db, err = getStorageByType(&config.Config{DBFileName: fileName})
	require.NoError(t, err)
	assert.IsType(t, &jsondb.JSONDB{}, db)
	assert.FileExists(t, fileName)
}

func TestGetStorageByTypeRejectsMalformedDocument(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "database.json")
	require.NoError(t, os.WriteFile(fileName, []byte(`{"users": `), 0644))

	_, err := getStorageByType(&config.Config{DBFileName: fileName})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "database.json")
	require.NoError(t, os.WriteFile(fileName, []byte(`{"users": {"u1": {"email": "a@example.com"}}, "discord": {}}`), 0644))
	t.Setenv("TOKEN", "test-token")
	t.Setenv("FILE_STORAGE_PATH", fileName)
	t.Setenv("TRUSTED_SUBNET", "127.0.0.0/8")

	app, err := New(config.WithDisableFlagsParsing(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		app.stopLimiter()
		require.NoError(t, app.db.Close())
	})

	assert.Nil(t, app.grpcServer)
	assert.NotNil(t, app.bot)
	assert.NotNil(t, app.httpHandler)

	email, found, err := app.service.GetEmail(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a@example.com", email)
}

func TestNewWithoutToken(t *testing.T) {
	t.Setenv("TOKEN", "")
	t.Setenv("FILE_STORAGE_PATH", filepath.Join(t.TempDir(), "database.json"))

	_, err := New(config.WithDisableFlagsParsing(true))
	assert.Error(t, err)
}

func TestNewGame(t *testing.T) {
	t.Setenv("TOKEN", "test-token")
	t.Setenv("GUILD_ID", "g1")

	app, err := NewGame(config.WithDisableFlagsParsing(true))
	require.NoError(t, err)
	assert.Equal(t, "g1", app.cfg.GuildID)
	assert.NotNil(t, app.bot)
}
