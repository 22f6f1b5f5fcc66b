// Package mockstorage provides a testify-based mock of the verification
// storage, for tests that need storage failures the real backends do not
// produce on demand.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// StorageMock implements every storage method used by the verification
// service, the link endpoint and the health server.
type StorageMock struct {
	mock.Mock
}

func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StorageMock) FindEmailByUserID(ctx context.Context, userID string) (string, bool, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *StorageMock) FindUserIDByChatUserID(ctx context.Context, chatUserID string) (string, bool, error) {
	args := m.Called(ctx, chatUserID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *StorageMock) LinkChatUser(ctx context.Context, chatUserID, userID string) error {
	args := m.Called(ctx, chatUserID, userID)
	return args.Error(0)
}

func (m *StorageMock) Counts(ctx context.Context) (int, int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
