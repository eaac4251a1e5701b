package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/modhound/modhound/internal/db"
)

func (c *pgClient) GetWarnings(ctx context.Context, chatID, userID int64, warnType db.WarnType) (int, error) {
	var count int
	err := c.db.GetContext(ctx, &count, `
		SELECT warn_count FROM user_warnings
		WHERE chat_id = $1 AND user_id = $2 AND warn_type = $3
	`, chatID, userID, warnType)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

// IncrementWarnings is the single atomic upsert-or-increment the escalation
// automaton depends on. Concurrent calls for the same key serialize on the
// row; the returned count is never stale.
func (c *pgClient) IncrementWarnings(ctx context.Context, chatID, userID int64, warnType db.WarnType) (int, error) {
	var count int
	err := c.db.GetContext(ctx, &count, `
		INSERT INTO user_warnings (chat_id, user_id, warn_type, warn_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (chat_id, user_id, warn_type)
		DO UPDATE SET warn_count = user_warnings.warn_count + 1
		RETURNING warn_count
	`, chatID, userID, warnType)
	return count, err
}

func (c *pgClient) ResetWarnings(ctx context.Context, chatID, userID int64, warnType db.WarnType) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM user_warnings
		WHERE chat_id = $1 AND user_id = $2 AND warn_type = $3
	`, chatID, userID, warnType)
	return err
}
