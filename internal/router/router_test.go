package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/patric-chuzhbe/verifybot/internal/db/memorystorage"
	"github.com/patric-chuzhbe/verifybot/internal/ipchecker"
	"github.com/patric-chuzhbe/verifybot/internal/mockstorage"
	"github.com/patric-chuzhbe/verifybot/internal/models"
	"github.com/patric-chuzhbe/verifybot/internal/verification"
)

type testStorage interface {
	pinger
	FindEmailByUserID(ctx context.Context, userID string) (string, bool, error)
	FindUserIDByChatUserID(ctx context.Context, chatUserID string) (string, bool, error)
	LinkChatUser(ctx context.Context, chatUserID, userID string) error
	Counts(ctx context.Context) (int, int, error)
}

type initOption func(*initOptions)

type initOptions struct {
	storage       testStorage
	trustedSubnet string
	limiter       limiter
}

func withStorage(db testStorage) initOption {
	return func(options *initOptions) {
		options.storage = db
	}
}

func withTrustedSubnet(subnet string) initOption {
	return func(options *initOptions) {
		options.trustedSubnet = subnet
	}
}

func withLimiter(l limiter) initOption {
	return func(options *initOptions) {
		options.limiter = l
	}
}

func setupTestRouter(t *testing.T, optionsProto ...initOption) (*httptest.Server, *verification.Service) {
	options := &initOptions{
		trustedSubnet: "127.0.0.0/8",
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if options.storage == nil {
		db, err := memorystorage.New(memorystorage.WithUser("u1", "a@example.com"))
		if err != nil {
			panic(err)
		}
		options.storage = db
	}

	checker, err := ipchecker.New(options.trustedSubnet)
	if err != nil {
		panic(err)
	}

	service := verification.New(options.storage)
	server := httptest.NewServer(New(service, options.storage, checker, options.limiter).Handler())
	if t != nil {
		t.Cleanup(server.Close)
	}

	return server, service
}

func TestGetVerify(t *testing.T) {
	server, service := setupTestRouter(t)
	client := resty.New().SetBaseURL(server.URL)

	token, err := service.CreateSession(context.Background(), "c1", "u1")
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid session",
			token:      token,
			wantStatus: http.StatusOK,
			wantBody:   VerifiedText,
		},
		{
			name:       "already consumed session",
			token:      token,
			wantStatus: http.StatusNotFound,
			wantBody:   InvalidSessionText,
		},
		{
			name:       "unknown session",
			token:      "123",
			wantStatus: http.StatusNotFound,
			wantBody:   InvalidSessionText,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.R().Get("/verify/" + tt.token)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode())
			assert.Equal(t, tt.wantBody, resp.String())
			assert.Contains(t, resp.Header().Get("Content-Type"), "text/plain")
		})
	}

	verified, err := service.IsVerified(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestGetVerifyStorageFailure(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("LinkChatUser", mock.Anything, "c1", "u1").Return(errors.New("disk full"))
	db.On("Counts", mock.Anything).Return(0, 0, nil)
	server, service := setupTestRouter(t, withStorage(db))

	token, err := service.CreateSession(context.Background(), "c1", "u1")
	require.NoError(t, err)

	resp, err := resty.New().R().Get(server.URL + "/verify/" + token)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	assert.Equal(t, InternalErrorText, resp.String())

	stats, err := service.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingSessions, "a failed link keeps the session")
}

func TestGetHome(t *testing.T) {
	server, _ := setupTestRouter(t)

	resp, err := resty.New().R().Get(server.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, HomeText, resp.String())
}

func TestGetPing(t *testing.T) {
	failing := &mockstorage.StorageMock{}
	failing.On("Ping", mock.Anything).Return(errors.New("connection refused"))

	tests := []struct {
		name       string
		options    []initOption
		wantStatus int
	}{
		{name: "storage available", wantStatus: http.StatusOK},
		{name: "storage down", options: []initOption{withStorage(failing)}, wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := setupTestRouter(t, tt.options...)

			resp, err := resty.New().R().Get(server.URL + "/ping")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode())
		})
	}
}

func TestGetInternalStats(t *testing.T) {
	t.Run("trusted client", func(t *testing.T) {
		server, service := setupTestRouter(t)
		_, err := service.CreateSession(context.Background(), "c1", "u1")
		require.NoError(t, err)

		resp, err := resty.New().R().Get(server.URL + "/internal/stats")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())

		var stats models.Stats
		require.NoError(t, json.Unmarshal(resp.Body(), &stats))
		assert.Equal(t, models.Stats{Users: 1, Verified: 0, PendingSessions: 1}, stats)
	})

	t.Run("untrusted client", func(t *testing.T) {
		server, _ := setupTestRouter(t, withTrustedSubnet("10.0.0.0/8"))

		resp, err := resty.New().R().Get(server.URL + "/internal/stats")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode())
	})

	t.Run("no trusted subnet configured", func(t *testing.T) {
		server, _ := setupTestRouter(t, withTrustedSubnet(""))

		resp, err := resty.New().R().Get(server.URL + "/internal/stats")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode())
	})
}

func TestVerifyRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server, _ := setupTestRouter(t, withLimiter(NewRateLimiter(ctx, rate.Limit(0), 1)))
	client := resty.New().SetBaseURL(server.URL)

	resp, err := client.R().Get("/verify/1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())

	resp, err = client.R().Get("/verify/2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode())

	resp, err = client.R().Get("/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode(), "only /verify is limited")
}

func TestResponsesAreCompressed(t *testing.T) {
	server, _ := setupTestRouter(t)

	request, err := http.NewRequest(http.MethodGet, server.URL+"/", nil)
	require.NoError(t, err)
	request.Header.Set("Accept-Encoding", "gzip")

	resp, err := http.DefaultTransport.RoundTrip(request)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
}
