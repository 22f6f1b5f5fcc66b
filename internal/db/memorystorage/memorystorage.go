// Package memorystorage is a jsondb document with no backing file. Links are
// lost on restart.
package memorystorage

import (
	"context"

	"github.com/patric-chuzhbe/verifybot/internal/db/jsondb"
	"github.com/patric-chuzhbe/verifybot/internal/models"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

type InitOption func(*models.Document)

// WithUser seeds an external user record.
func WithUser(userID, email string) InitOption {
	return func(document *models.Document) {
		document.Users[userID] = models.UserRecord{Email: email}
	}
}

func New(optionsProto ...InitOption) (*MemoryStorage, error) {
	document := models.Document{
		Users:   map[string]models.UserRecord{},
		Discord: map[string]string{},
	}
	for _, protoOption := range optionsProto {
		protoOption(&document)
	}

	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: document,
		},
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
