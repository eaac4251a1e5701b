package postgres

import (
	"context"
	"strings"
)

// List writes normalize their key at the store boundary: terms and words are
// lower-cased, domains additionally lose a leading "www.". Reads return the
// stored (normalized) form.

func (c *pgClient) AddBlacklistTerm(ctx context.Context, chatID int64, term string) (bool, error) {
	return c.insertListRow(ctx,
		`INSERT INTO blacklist (chat_id, term) VALUES ($1, $2) ON CONFLICT (chat_id, term) DO NOTHING`,
		chatID, normalizeTerm(term))
}

func (c *pgClient) RemoveBlacklistTerm(ctx context.Context, chatID int64, term string) (bool, error) {
	return c.deleteListRow(ctx,
		`DELETE FROM blacklist WHERE chat_id = $1 AND term = $2`,
		chatID, normalizeTerm(term))
}

func (c *pgClient) GetBlacklist(ctx context.Context, chatID int64) ([]string, error) {
	var terms []string
	err := c.db.SelectContext(ctx, &terms, `SELECT term FROM blacklist WHERE chat_id = $1 ORDER BY term`, chatID)
	return terms, err
}

func (c *pgClient) AddAntiwordTerm(ctx context.Context, chatID int64, word string) (bool, error) {
	return c.insertListRow(ctx,
		`INSERT INTO antiword_blacklist (chat_id, word) VALUES ($1, $2) ON CONFLICT (chat_id, word) DO NOTHING`,
		chatID, normalizeTerm(word))
}

func (c *pgClient) RemoveAntiwordTerm(ctx context.Context, chatID int64, word string) (bool, error) {
	return c.deleteListRow(ctx,
		`DELETE FROM antiword_blacklist WHERE chat_id = $1 AND word = $2`,
		chatID, normalizeTerm(word))
}

func (c *pgClient) GetAntiwordTerms(ctx context.Context, chatID int64) ([]string, error) {
	var words []string
	err := c.db.SelectContext(ctx, &words, `SELECT word FROM antiword_blacklist WHERE chat_id = $1 ORDER BY word`, chatID)
	return words, err
}

func (c *pgClient) AddWhitelistDomain(ctx context.Context, chatID int64, domain string) (bool, error) {
	return c.insertListRow(ctx,
		`INSERT INTO antilink_whitelist (chat_id, domain) VALUES ($1, $2) ON CONFLICT (chat_id, domain) DO NOTHING`,
		chatID, NormalizeDomain(domain))
}

func (c *pgClient) RemoveWhitelistDomain(ctx context.Context, chatID int64, domain string) (bool, error) {
	return c.deleteListRow(ctx,
		`DELETE FROM antilink_whitelist WHERE chat_id = $1 AND domain = $2`,
		chatID, NormalizeDomain(domain))
}

func (c *pgClient) GetWhitelistDomains(ctx context.Context, chatID int64) ([]string, error) {
	var domains []string
	err := c.db.SelectContext(ctx, &domains, `SELECT domain FROM antilink_whitelist WHERE chat_id = $1 ORDER BY domain`, chatID)
	return domains, err
}

func (c *pgClient) insertListRow(ctx context.Context, query string, chatID int64, value string) (bool, error) {
	res, err := c.db.ExecContext(ctx, query, chatID, value)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (c *pgClient) deleteListRow(ctx context.Context, query string, chatID int64, value string) (bool, error) {
	res, err := c.db.ExecContext(ctx, query, chatID, value)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func NormalizeDomain(domain string) string {
	return strings.TrimPrefix(normalizeTerm(domain), "www.")
}
