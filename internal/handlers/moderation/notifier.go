package handlers

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/modhound/modhound/internal/db"
)

const (
	// Bot-authored notices self-clean to avoid cluttering the chat; only
	// permission-failure notices stand until an operator sees them.
	NoticeTTLShort = 5 * time.Second
	NoticeTTLMute  = 10 * time.Second
	NoticeStanding = 0
)

type noticeSender interface {
	Send(c api.Chattable) (api.Message, error)
}

type noticeJobStore interface {
	CreateJob(ctx context.Context, job *db.ScheduledJob) (*db.ScheduledJob, error)
}

// Notifier sends group notices and, for ttl > 0, schedules their deletion
// through the durable job queue so the cleanup survives restarts. The
// platform offers no auto-delete of its own; the caller schedules it.
type Notifier struct {
	bot   noticeSender
	store noticeJobStore
	clock func() time.Time
}

func NewNotifier(bot noticeSender, store noticeJobStore) *Notifier {
	return &Notifier{
		bot:   bot,
		store: store,
		clock: time.Now,
	}
}

// Notify is best-effort: send and scheduling failures are logged, never
// propagated, since a lost notice must not abort a moderation action.
func (n *Notifier) Notify(ctx context.Context, chatID int64, text string, ttl time.Duration) {
	entry := log.WithFields(log.Fields{
		"context": "notifier",
		"chat_id": chatID,
	})

	msg := api.NewMessage(chatID, text)
	msg.DisableNotification = true
	sent, err := n.bot.Send(msg)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to send notice")
		return
	}
	if ttl <= 0 {
		return
	}

	if _, err := n.store.CreateJob(ctx, &db.ScheduledJob{
		JobType:  db.JobTypeDeleteMessage,
		ChatID:   chatID,
		TargetID: int64(sent.MessageID),
		RunAt:    n.clock().Add(ttl).UTC(),
	}); err != nil {
		entry.WithField("error", err.Error()).Error("failed to schedule notice cleanup")
	}
}
