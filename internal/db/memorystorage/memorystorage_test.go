package memorystorage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test(t *testing.T) {
	t.Run("The base memorystorage package test", func(t *testing.T) {
		theStorage, err := New(WithUser("u1", "a@example.com"))
		require.NoError(t, err, "The memorystorage.New() should not return error")

		email, found, err := theStorage.FindEmailByUserID(context.Background(), "u1")
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "a@example.com", email)

		err = theStorage.LinkChatUser(context.Background(), "c1", "u1")
		assert.NoError(t, err, "Linking without a backing file should not return error")

		userID, found, err := theStorage.FindUserIDByChatUserID(context.Background(), "c1")
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "u1", userID)

		err = theStorage.Ping(context.Background())
		assert.NoError(t, err, "The memorystorage.Ping() should not return error")

		err = theStorage.Close()
		assert.NoError(t, err, "The memorystorage.Close() should not return error")
	})
}
