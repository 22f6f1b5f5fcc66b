// Package app wires the verification bot: configuration, logging, storage,
// the verification service, the link endpoint, the optional gRPC health
// server and the Discord front-end. Run blocks until a shutdown signal.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/patric-chuzhbe/verifybot/internal/chatbot"
	"github.com/patric-chuzhbe/verifybot/internal/config"
	"github.com/patric-chuzhbe/verifybot/internal/db/jsondb"
	"github.com/patric-chuzhbe/verifybot/internal/db/memorystorage"
	"github.com/patric-chuzhbe/verifybot/internal/db/postgresdb"
	"github.com/patric-chuzhbe/verifybot/internal/grpcserver"
	"github.com/patric-chuzhbe/verifybot/internal/ipchecker"
	"github.com/patric-chuzhbe/verifybot/internal/logger"
	"github.com/patric-chuzhbe/verifybot/internal/mailer"
	"github.com/patric-chuzhbe/verifybot/internal/models"
	"github.com/patric-chuzhbe/verifybot/internal/router"
	"github.com/patric-chuzhbe/verifybot/internal/verification"
)

type storage interface {
	FindEmailByUserID(ctx context.Context, userID string) (string, bool, error)
	FindUserIDByChatUserID(ctx context.Context, chatUserID string) (string, bool, error)
	LinkChatUser(ctx context.Context, chatUserID, userID string) error
	Counts(ctx context.Context) (users int, verified int, err error)
	Ping(ctx context.Context) error
	Close() error
}

type limiter interface {
	Limit(next http.Handler) http.Handler
}

// App owns every long-lived component of the verification bot.
type App struct {
	cfg         *config.Config
	db          storage
	service     *verification.Service
	httpHandler http.Handler
	grpcServer  *grpcserver.Server
	bot         *chatbot.Bot
	stopLimiter context.CancelFunc
}

// New loads the configuration and builds every component. Nothing is
// started until Run.
func New(optionsProto ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(optionsProto...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	app.service = verification.New(app.db)

	trustedOnly, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	var verifyLimits limiter
	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	app.stopLimiter = stopLimiter
	if app.cfg.VerifyRateLimit > 0 {
		verifyLimits = router.NewRateLimiter(limiterCtx, rate.Limit(app.cfg.VerifyRateLimit), app.cfg.VerifyRateBurst)
	}

	app.httpHandler = router.New(app.service, app.db, trustedOnly, verifyLimits).Handler()

	if app.cfg.GRPCAddr != "" {
		app.grpcServer, err = grpcserver.New(app.cfg.GRPCAddr, app.db)
		if err != nil {
			return nil, fmt.Errorf("in app.New(): error while `grpcserver.New()` calling: %w", err)
		}
	}

	app.bot, err = chatbot.New(
		app.cfg.BotToken,
		app.cfg.GuildID,
		chatbot.NewVerifyModule(
			app.service,
			mailer.New(
				app.cfg.SMTPHost,
				app.cfg.SMTPPort,
				app.cfg.SMTPFrom,
				app.cfg.SMTPUsername,
				app.cfg.SMTPPassword,
			),
			app.cfg.LinkBaseURL,
		),
	)
	if err != nil {
		app.stopLimiter()
		return nil, errors.Join(err, app.db.Close())
	}

	return app, nil
}

// Run starts the link server, the gRPC server and the bot, then waits for a
// shutdown signal or a server failure.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infow("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 2)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	if a.grpcServer != nil {
		logger.Log.Infow("gRPC server running", "GRPCAddr", a.grpcServer.Addr().String())
		go a.grpcServer.WatchStorage(ctx)
		go func() {
			serverErrCh <- a.grpcServer.Serve()
		}()
	}

	if err := a.bot.Open(); err != nil {
		return errors.Join(err, a.shutdown(server))
	}

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")
		return a.shutdown(server)

	case err := <-serverErrCh:
		return errors.Join(fmt.Errorf("server error: %w", err), a.shutdown(server))
	}
}

func (a *App) shutdown(server *http.Server) error {
	var errs []error

	if err := a.bot.Close(); err != nil {
		errs = append(errs, fmt.Errorf("bot close error: %w", err))
	}

	a.stopLimiter()
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close error: %w", err))
	}

	return errors.Join(errs...)
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return newPostgresStorage(cfg)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}

// newPostgresStorage connects to postgres and imports the JSON document at
// the configured file path when one exists.
func newPostgresStorage(cfg *config.Config) (*postgresdb.PostgresDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBConnectionTimeout)
	defer cancel()

	db, err := postgresdb.New(ctx, cfg.DatabaseDSN, cfg.DBConnectionTimeout)
	if err != nil {
		return nil, err
	}

	if cfg.DBFileName == "" {
		return db, nil
	}
	if _, err := os.Stat(cfg.DBFileName); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return db, nil
		}
		return nil, errors.Join(err, db.Close())
	}

	document, err := jsondb.New(cfg.DBFileName)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	if err := db.ImportDocument(ctx, document.Cache); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	logger.Log.Infow("document imported",
		"file", cfg.DBFileName,
		"users", len(document.Cache.Users),
		"links", len(document.Cache.Discord),
	)

	return db, nil
}
