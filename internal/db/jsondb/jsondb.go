// Package jsondb keeps the verification document in memory and mirrors it
// to a single JSON file. Every mutation rewrites the whole file.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/patric-chuzhbe/verifybot/internal/models"
)

// JSONDB is not safe for concurrent use; callers serialize access.
type JSONDB struct {
	fileName string
	Cache    models.Document
}

func initDBFile(fileName string) error {
	dbFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(dbFile, `{
	"users": {},
	"discord": {}
}`)
	if err != nil {
		return err
	}
	return dbFile.Close()
}

// writeToJSONFile replaces fileName with the marshaled document. The data is
// written to a sibling temporary file first and renamed over the target, so
// a crash mid-write leaves the previous document intact.
func writeToJSONFile(fileName string, document interface{}) error {
	jsonData, err := json.MarshalIndent(document, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fileName), filepath.Base(fileName)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(jsonData); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing to file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("error syncing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing file: %w", err)
	}

	if err := os.Rename(tmpName, fileName); err != nil {
		return fmt.Errorf("error replacing file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, document *models.Document) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	err = decoder.Decode(document)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrInvalidDocument, fileName, err)
	}

	if document.Users == nil || document.Discord == nil {
		return fmt.Errorf("%w: %s: both \"users\" and \"discord\" are required", models.ErrInvalidDocument, fileName)
	}

	return nil
}

// New loads the document stored in fileName, creating an empty one when the
// file does not exist yet. A malformed document is reported as
// models.ErrInvalidDocument.
func New(fileName string) (*JSONDB, error) {
	db := JSONDB{
		fileName: fileName,
		Cache:    models.Document{},
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		err := initDBFile(fileName)
		if err != nil {
			return nil, err
		}
		err = parseJSONFile(db.fileName, &db.Cache)
		if err != nil {
			return nil, err
		}
	}

	return &db, nil
}

func (db *JSONDB) save() error {
	if db.fileName == "" {
		return nil
	}

	return writeToJSONFile(db.fileName, db.Cache)
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// FindEmailByUserID returns the email of the external user.
func (db *JSONDB) FindEmailByUserID(ctx context.Context, userID string) (email string, found bool, err error) {
	record, found := db.Cache.Users[userID]

	return record.Email, found, nil
}

// FindUserIDByChatUserID returns the external user id the chat user was linked with.
func (db *JSONDB) FindUserIDByChatUserID(ctx context.Context, chatUserID string) (userID string, found bool, err error) {
	userID, found = db.Cache.Discord[chatUserID]

	return userID, found, nil
}

// LinkChatUser records chatUserID as verified and rewrites the file.
// When the write fails the previous mapping is restored.
func (db *JSONDB) LinkChatUser(ctx context.Context, chatUserID, userID string) error {
	previous, existed := db.Cache.Discord[chatUserID]
	db.Cache.Discord[chatUserID] = userID

	if err := db.save(); err != nil {
		if existed {
			db.Cache.Discord[chatUserID] = previous
		} else {
			delete(db.Cache.Discord, chatUserID)
		}
		return err
	}

	return nil
}

// Counts returns the number of known external users and verified chat users.
func (db *JSONDB) Counts(ctx context.Context) (users int, verified int, err error) {
	return len(db.Cache.Users), len(db.Cache.Discord), nil
}

func (db *JSONDB) Close() error {
	err := db.save()
	if err != nil {
		return err
	}

	return nil
}
