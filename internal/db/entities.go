package db

import (
	"database/sql"
	"time"
)

type (
	// WarnType is a content-filter violation category. Warning counters and
	// warn limits are tracked per type.
	WarnType string

	// JobType tags a deferred platform action in the scheduled_jobs queue.
	JobType string

	// Settings is the per-chat moderation configuration. A missing row means
	// all-defaults; rows are created lazily on first write.
	Settings struct {
		ID                int64          `db:"id"`
		AntibotEnabled    bool           `db:"antibot_enabled"`
		AntilinkEnabled   bool           `db:"antilink_enabled"`
		AntiwordEnabled   bool           `db:"antiword_enabled"`
		AntilinkWarnLimit int            `db:"antilink_warn_limit"`
		AntiwordWarnLimit int            `db:"antiword_warn_limit"`
		WelcomeEnabled    bool           `db:"welcome_enabled"`
		WelcomeMessage    sql.NullString `db:"welcome_message"`
	}

	// ScheduledJob is a write-once row describing a platform action to run at
	// RunAt. The scheduler deletes it on completion or permanent failure.
	ScheduledJob struct {
		ID       int64     `db:"id"`
		JobType  JobType   `db:"job_type"`
		ChatID   int64     `db:"chat_id"`
		TargetID int64     `db:"target_id"`
		RunAt    time.Time `db:"run_at"`
	}
)

const (
	WarnTypeAntilink WarnType = "antilink"
	WarnTypeAntiword WarnType = "antiword"

	JobTypeUnpin         JobType = "unpin"
	JobTypeUnmute        JobType = "unmute"
	JobTypeDeleteMessage JobType = "delete_message"

	defaultWarnLimit = 3
)

func DefaultSettings(chatID int64) *Settings {
	return &Settings{
		ID:                chatID,
		AntilinkWarnLimit: defaultWarnLimit,
		AntiwordWarnLimit: defaultWarnLimit,
	}
}

// WarnLimit returns the escalation threshold for a violation type,
// normalizing non-positive stored values back to the default.
func (s *Settings) WarnLimit(warnType WarnType) int {
	if s == nil {
		return defaultWarnLimit
	}
	limit := defaultWarnLimit
	switch warnType {
	case WarnTypeAntilink:
		limit = s.AntilinkWarnLimit
	case WarnTypeAntiword:
		limit = s.AntiwordWarnLimit
	}
	if limit <= 0 {
		limit = defaultWarnLimit
	}
	return limit
}

func (s *Settings) WelcomeTemplate() string {
	if s == nil || !s.WelcomeMessage.Valid {
		return ""
	}
	return s.WelcomeMessage.String
}
