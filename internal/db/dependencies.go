package db

import (
	"context"
	"time"
)

// Client is the persistent store consumed by the handlers and the scheduler.
// Implementations own all durable state; callers keep no copies across calls,
// so settings and list changes take effect on the next event.
type Client interface {
	Close() error

	// GetSettings returns the chat settings, or all-defaults when no row
	// exists yet. SetSettings upserts the whole row.
	GetSettings(ctx context.Context, chatID int64) (*Settings, error)
	SetSettings(ctx context.Context, settings *Settings) error

	// Identity blacklist, checked fuzzily against joiners. Terms are
	// lower-cased at write time. Add reports whether a row was inserted,
	// Remove whether one existed.
	AddBlacklistTerm(ctx context.Context, chatID int64, term string) (bool, error)
	RemoveBlacklistTerm(ctx context.Context, chatID int64, term string) (bool, error)
	GetBlacklist(ctx context.Context, chatID int64) ([]string, error)

	// Antiword list, plain substring filter over message text.
	AddAntiwordTerm(ctx context.Context, chatID int64, word string) (bool, error)
	RemoveAntiwordTerm(ctx context.Context, chatID int64, word string) (bool, error)
	GetAntiwordTerms(ctx context.Context, chatID int64) ([]string, error)

	// Antilink domain allow-list. Domains are lower-cased and www.-stripped
	// at write time.
	AddWhitelistDomain(ctx context.Context, chatID int64, domain string) (bool, error)
	RemoveWhitelistDomain(ctx context.Context, chatID int64, domain string) (bool, error)
	GetWhitelistDomains(ctx context.Context, chatID int64) ([]string, error)

	// Warning ledger. IncrementWarnings is atomic at the store level and
	// returns the post-increment count; concurrent increments never lose
	// updates. A missing row counts as zero.
	GetWarnings(ctx context.Context, chatID, userID int64, warnType WarnType) (int, error)
	IncrementWarnings(ctx context.Context, chatID, userID int64, warnType WarnType) (int, error)
	ResetWarnings(ctx context.Context, chatID, userID int64, warnType WarnType) error

	// Deferred-action queue. ClaimDueJobs selects rows with run_at <= now
	// under a lock-and-skip discipline, so concurrent scheduler instances
	// never claim the same row in overlapping polls. Claims are released at
	// transaction commit; completion is the DeleteJob call.
	CreateJob(ctx context.Context, job *ScheduledJob) (*ScheduledJob, error)
	ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]*ScheduledJob, error)
	DeleteJob(ctx context.Context, id int64) error
}
