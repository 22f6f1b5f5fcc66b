// Package postgresdb provides a PostgreSQL-based implementation of the
// verification storage: external users with their emails and the chat users
// linked to them. The schema is migrated with goose on start.
package postgresdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/verifybot/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresDB is a PostgreSQL-backed verification storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
}

// New opens databaseDSN with the pgx driver and migrates the verification
// schema up to date.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil, fmt.Errorf("in postgresdb.New(): error while `result.resetDB()` calling: %w", err)
		}
	}

	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("in postgresdb.New(): error while `goose.SetDialect()` calling: %w", err)
	}

	if err := goose.UpContext(ctx, result.database, "migrations"); err != nil {
		return nil, fmt.Errorf("in postgresdb.New(): error while `goose.UpContext()` calling: %w", err)
	}

	return result, nil
}

// FindEmailByUserID returns the email of the external user.
func (db *PostgresDB) FindEmailByUserID(ctx context.Context, userID string) (string, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT email FROM users WHERE user_id = $1`,
		userID,
	)
	var email string
	err := row.Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	return email, true, nil
}

// FindUserIDByChatUserID returns the external user id the chat user was linked with.
func (db *PostgresDB) FindUserIDByChatUserID(ctx context.Context, chatUserID string) (string, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT user_id FROM discord_links WHERE chat_user_id = $1`,
		chatUserID,
	)
	var userID string
	err := row.Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	return userID, true, nil
}

// LinkChatUser upserts the link between a chat user and an external user.
func (db *PostgresDB) LinkChatUser(ctx context.Context, chatUserID, userID string) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO discord_links (chat_user_id, user_id)
				VALUES ($1, $2)
				ON CONFLICT (chat_user_id) DO UPDATE
				SET
					user_id = EXCLUDED.user_id,
					linked_at = now();
		`,
		chatUserID,
		userID,
	)

	return err
}

// InsertUser upserts an external user record.
func (db *PostgresDB) InsertUser(ctx context.Context, userID, email string) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO users (user_id, email)
				VALUES ($1, $2)
				ON CONFLICT (user_id) DO UPDATE
				SET email = EXCLUDED.email;
		`,
		userID,
		email,
	)

	return err
}

// ImportDocument upserts every user and link of document in one transaction.
func (db *PostgresDB) ImportDocument(ctx context.Context, document models.Document) (err error) {
	transaction, err := db.database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("in postgresdb.ImportDocument(): error while `db.database.BeginTx()` calling: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := transaction.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				err = errors.Join(err, rollbackErr)
			}
		}
	}()

	for userID, record := range document.Users {
		_, err = transaction.ExecContext(
			ctx,
			`
				INSERT INTO users (user_id, email)
					VALUES ($1, $2)
					ON CONFLICT (user_id) DO UPDATE
					SET email = EXCLUDED.email;
			`,
			userID,
			record.Email,
		)
		if err != nil {
			return fmt.Errorf("in postgresdb.ImportDocument(): cannot import user %s: %w", userID, err)
		}
	}

	for chatUserID, userID := range document.Discord {
		_, err = transaction.ExecContext(
			ctx,
			`
				INSERT INTO discord_links (chat_user_id, user_id)
					VALUES ($1, $2)
					ON CONFLICT (chat_user_id) DO NOTHING;
			`,
			chatUserID,
			userID,
		)
		if err != nil {
			return fmt.Errorf("in postgresdb.ImportDocument(): cannot import link of %s: %w", chatUserID, err)
		}
	}

	return transaction.Commit()
}

// Counts returns the number of known external users and verified chat users.
func (db *PostgresDB) Counts(ctx context.Context) (users int, verified int, err error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM discord_links)`,
	)
	err = row.Scan(&users, &verified)
	if err != nil {
		return 0, 0, err
	}

	return users, verified, nil
}

type InitOption func(*initOptions)

// WithDBPreReset drops every table of the public schema before migrating.
// Tests use it to start from an empty database.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// Ping is bounded by the connection timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf("in postgresdb.resetDB(): error while `db.database.ExecContext()` calling: %w", err)
	}
	return nil
}
