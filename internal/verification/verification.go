// Package verification owns the verification state of the bot: the pending
// sessions created for emailed links and the chat users already verified.
//
// Service is the only reader and writer of that state. Every operation runs
// under one mutex, so the chat front-end and the link endpoint observe the
// operations in a single total order.
package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/patric-chuzhbe/verifybot/internal/models"
)

// MaxToken bounds the random integer a session token is rendered from.
const MaxToken = 9999999999

type usersFinder interface {
	FindEmailByUserID(ctx context.Context, userID string) (string, bool, error)
}

type chatUsersLinker interface {
	FindUserIDByChatUserID(ctx context.Context, chatUserID string) (string, bool, error)
	LinkChatUser(ctx context.Context, chatUserID, userID string) error
}

type counter interface {
	Counts(ctx context.Context) (users int, verified int, err error)
}

type storage interface {
	usersFinder
	chatUsersLinker
	counter
}

// Service serializes every access to the verification state.
type Service struct {
	mu       sync.Mutex
	db       storage
	sessions map[string]models.Session
	newToken func() (string, error)
}

type InitOption func(*Service)

// WithTokenGenerator replaces the random token source.
func WithTokenGenerator(generator func() (string, error)) InitOption {
	return func(s *Service) {
		s.newToken = generator
	}
}

func New(db storage, optionsProto ...InitOption) *Service {
	s := &Service{
		db:       db,
		sessions: map[string]models.Session{},
		newToken: GenerateToken,
	}
	for _, protoOption := range optionsProto {
		protoOption(s)
	}

	return s
}

// GenerateToken returns a uniformly random integer in [0, MaxToken) as
// decimal text. Tokens are not checked for collisions.
func GenerateToken() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(MaxToken))
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	return n.String(), nil
}

// GetEmail looks up the email of an external user.
func (s *Service) GetEmail(ctx context.Context, externalUserID string) (email string, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.FindEmailByUserID(ctx, externalUserID)
}

// IsVerified reports whether the chat user has consumed a session.
func (s *Service) IsVerified(ctx context.Context, chatUserID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found, err := s.db.FindUserIDByChatUserID(ctx, chatUserID)
	if err != nil {
		return false, err
	}

	return found, nil
}

// CreateSession registers a pending session and returns its token. A chat
// user may hold several sessions at once, and so may an external user.
func (s *Service) CreateSession(ctx context.Context, chatUserID, externalUserID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.newToken()
	if err != nil {
		return "", err
	}
	s.sessions[token] = models.Session{
		ChatUserID:     chatUserID,
		ExternalUserID: externalUserID,
	}

	return token, nil
}

// ConsumeSession removes the session and links its chat user to its external
// user. It returns false, with no side effect, for an unknown token. When the
// link cannot be persisted the session is put back and the error returned.
func (s *Service) ConsumeSession(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, found := s.sessions[token]
	if !found {
		return false, nil
	}
	delete(s.sessions, token)

	if err := s.db.LinkChatUser(ctx, session.ChatUserID, session.ExternalUserID); err != nil {
		s.sessions[token] = session
		return false, fmt.Errorf("link chat user %s: %w", session.ChatUserID, err)
	}

	return true, nil
}

// Stats counts users, verified chat users and pending sessions.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, verified, err := s.db.Counts(ctx)
	if err != nil {
		return models.Stats{}, err
	}

	return models.Stats{
		Users:           users,
		Verified:        verified,
		PendingSessions: len(s.sessions),
	}, nil
}
