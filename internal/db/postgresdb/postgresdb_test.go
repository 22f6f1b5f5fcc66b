package postgresdb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/verifybot/internal/models"
)

// TEST_DATABASE_DSN, e.g. "host=localhost user=verifybot password=verifybot dbname=verifybot sslmode=disable".
// The tests drop every table in the public schema of that database.
func newTestDB(t *testing.T) *PostgresDB {
	t.Helper()
	databaseDSN := os.Getenv("TEST_DATABASE_DSN")
	if databaseDSN == "" {
		t.Skip("TEST_DATABASE_DSN is not set")
	}

	db, err := New(context.Background(), databaseDSN, 5*time.Second, WithDBPreReset(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

func TestPostgresDB(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Ping(ctx))
	require.NoError(t, db.InsertUser(ctx, "u1", "a@example.com"))

	email, found, err := db.FindEmailByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a@example.com", email)

	_, found, err = db.FindEmailByUserID(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = db.FindUserIDByChatUserID(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.LinkChatUser(ctx, "c1", "u1"))
	require.NoError(t, db.LinkChatUser(ctx, "c1", "u1"))

	userID, found, err := db.FindUserIDByChatUserID(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "u1", userID)

	users, verified, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, users)
	assert.Equal(t, 1, verified)
}

func TestImportDocument(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.LinkChatUser(ctx, "c1", "u2"))

	err := db.ImportDocument(ctx, models.Document{
		Users: map[string]models.UserRecord{
			"u1": {Email: "a@example.com"},
			"u2": {Email: "b@example.com"},
		},
		Discord: map[string]string{"c1": "u1", "c2": "u1"},
	})
	require.NoError(t, err)

	email, found, err := db.FindEmailByUserID(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "b@example.com", email)

	userID, found, err := db.FindUserIDByChatUserID(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "u2", userID, "existing links win over imported ones")

	users, verified, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, users)
	assert.Equal(t, 2, verified)
}
