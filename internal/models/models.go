// Package models holds the data types shared by the storage backends,
// the verification service and the transport layers.
package models

import "errors"

// UserRecord is the persisted attribute set of an external user.
type UserRecord struct {
	Email string `json:"email"`
}

// Document is the whole persisted verification state.
//
// Users maps an external user id to its record, Discord maps a chat-user id
// to the external user id it was linked with.
type Document struct {
	Users   map[string]UserRecord `json:"users"`
	Discord map[string]string     `json:"discord"`
}

// Session is a pending, single-use verification request.
type Session struct {
	ChatUserID     string
	ExternalUserID string
}

// Stats is the response of the internal stats endpoint.
type Stats struct {
	Users           int `json:"users"`
	Verified        int `json:"verified"`
	PendingSessions int `json:"pending_sessions"`
}

// VerifyCommandArgs is the validated argument set of the /verify command.
type VerifyCommandArgs struct {
	UserID string `validate:"required,printascii,max=64"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// ErrInvalidDocument is returned when a persisted document lacks one of its maps.
var ErrInvalidDocument = errors.New("invalid verification document")
