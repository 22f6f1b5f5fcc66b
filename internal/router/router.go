// Package router serves the link endpoint of the verification bot: the page
// an emailed link opens, plus health and stats routes for operators.
package router

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/patric-chuzhbe/verifybot/internal/logger"
	"github.com/patric-chuzhbe/verifybot/internal/models"
)

const (
	HomeText           = "Verification link server. Use the /verify command of the bot to get a link."
	VerifiedText       = "Your discord account has been linked. You may now speak in the server."
	InvalidSessionText = "Invalid Session. Please request a new link from the bot."
	InternalErrorText  = "Something went wrong. Please try the link again later."
)

type sessionConsumer interface {
	ConsumeSession(ctx context.Context, token string) (bool, error)
}

type statsProvider interface {
	Stats(ctx context.Context) (models.Stats, error)
}

type verifier interface {
	sessionConsumer
	statsProvider
}

type pinger interface {
	Ping(ctx context.Context) error
}

type middlewareProvider interface {
	Middleware(h http.Handler) http.Handler
}

type limiter interface {
	Limit(next http.Handler) http.Handler
}

type Router struct {
	verifier     verifier
	db           pinger
	trustedOnly  middlewareProvider
	verifyLimits limiter
}

// New builds the router. verifyLimits may be nil to disable rate limiting.
func New(
	verifier verifier,
	db pinger,
	trustedOnly middlewareProvider,
	verifyLimits limiter,
) *Router {
	return &Router{
		verifier:     verifier,
		db:           db,
		trustedOnly:  trustedOnly,
		verifyLimits: verifyLimits,
	}
}

// Handler returns the chi mux with every route and middleware mounted.
func (router *Router) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(logger.WithLoggingHTTPMiddleware)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Compress(5, "text/plain", "application/json"))

	mux.Get(`/`, router.GetHome)
	mux.Get(`/ping`, router.GetPing)
	mux.Group(func(r chi.Router) {
		if router.verifyLimits != nil {
			r.Use(router.verifyLimits.Limit)
		}
		r.Get(`/verify/{token}`, router.GetVerify)
	})
	mux.Group(func(r chi.Router) {
		r.Use(router.trustedOnly.Middleware)
		r.Get(`/internal/stats`, router.GetInternalStats)
	})

	return mux
}

func writeText(response http.ResponseWriter, status int, text string) {
	response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	response.WriteHeader(status)
	if _, err := response.Write([]byte(text)); err != nil {
		logger.Log.Debugw("error writing response", "error", err)
	}
}

func (router *Router) GetHome(response http.ResponseWriter, request *http.Request) {
	writeText(response, http.StatusOK, HomeText)
}

// GetVerify consumes the session token taken from the path.
func (router *Router) GetVerify(response http.ResponseWriter, request *http.Request) {
	token := chi.URLParam(request, "token")

	consumed, err := router.verifier.ConsumeSession(request.Context(), token)
	if err != nil {
		logger.Log.Errorw("error calling the `router.verifier.ConsumeSession()`", "error", err)
		writeText(response, http.StatusInternalServerError, InternalErrorText)
		return
	}
	if !consumed {
		writeText(response, http.StatusNotFound, InvalidSessionText)
		return
	}

	logger.Log.Infow("session consumed", "token", token)
	writeText(response, http.StatusOK, VerifiedText)
}

func (router *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := router.db.Ping(request.Context()); err != nil {
		logger.Log.Errorw("error calling the `router.db.Ping()`", "error", err)
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	response.WriteHeader(http.StatusOK)
}

func (router *Router) GetInternalStats(response http.ResponseWriter, request *http.Request) {
	stats, err := router.verifier.Stats(request.Context())
	if err != nil {
		logger.Log.Errorw("error calling the `router.verifier.Stats()`", "error", err)
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(response).Encode(stats); err != nil {
		logger.Log.Debugw("error encoding stats", "error", err)
	}
}
