package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iamwavecut/tool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"

	"github.com/modhound/modhound/internal/db"
	"github.com/modhound/modhound/resources"
)

type pgClient struct {
	db *sqlx.DB
}

var _ db.Client = (*pgClient)(nil)

func NewClient(ctx context.Context, databaseURL string) (*pgClient, error) {
	dbx, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}
	dbx.SetMaxOpenConns(42)
	if err := dbx.PingContext(ctx); err != nil {
		return nil, err
	}

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.Exec(dbx.DB, "postgres", migrationsSource, migrate.Up)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		log.Infof("applied %d migrations!", n)
	}

	return &pgClient{db: dbx}, nil
}

func (c *pgClient) Close() error {
	return c.db.Close()
}

// GetSettings never reports a missing row: absence means all-defaults.
func (c *pgClient) GetSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	res := &db.Settings{}
	err := c.db.GetContext(ctx, res, `
		SELECT id, antibot_enabled, antilink_enabled, antiword_enabled,
			antilink_warn_limit, antiword_warn_limit, welcome_enabled, welcome_message
		FROM chats WHERE id = $1
	`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.DefaultSettings(chatID), nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *pgClient) SetSettings(ctx context.Context, settings *db.Settings) error {
	query := `
		INSERT INTO chats (id, antibot_enabled, antilink_enabled, antiword_enabled,
			antilink_warn_limit, antiword_warn_limit, welcome_enabled, welcome_message)
		VALUES (:id, :antibot_enabled, :antilink_enabled, :antiword_enabled,
			:antilink_warn_limit, :antiword_warn_limit, :welcome_enabled, :welcome_message)
		ON CONFLICT (id) DO UPDATE SET
		antibot_enabled = excluded.antibot_enabled,
		antilink_enabled = excluded.antilink_enabled,
		antiword_enabled = excluded.antiword_enabled,
		antilink_warn_limit = excluded.antilink_warn_limit,
		antiword_warn_limit = excluded.antiword_warn_limit,
		welcome_enabled = excluded.welcome_enabled,
		welcome_message = excluded.welcome_message;
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, settings))
}
