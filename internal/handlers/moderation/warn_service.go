package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/modhound/modhound/internal/db"
	"github.com/modhound/modhound/internal/i18n"
	"github.com/modhound/modhound/internal/observability"
)

const (
	MsgNoPrivileges = "not enough rights to restrict/unrestrict chat member"

	muteDuration = time.Hour
)

var ErrNoPrivileges = fmt.Errorf("no privileges")

type warnBot interface {
	Send(c api.Chattable) (api.Message, error)
	Request(c api.Chattable) (*api.APIResponse, error)
}

type warnStore interface {
	IncrementWarnings(ctx context.Context, chatID, userID int64, warnType db.WarnType) (int, error)
	ResetWarnings(ctx context.Context, chatID, userID int64, warnType db.WarnType) error
	CreateJob(ctx context.Context, job *db.ScheduledJob) (*db.ScheduledJob, error)
}

type notifier interface {
	Notify(ctx context.Context, chatID int64, text string, ttl time.Duration)
}

// Violation carries everything the escalation automaton needs about one
// offending message.
type Violation struct {
	WarnType  db.WarnType
	ChatID    int64
	UserID    int64
	UserName  string
	MessageID int
	WarnLimit int
}

// WarnService is the shared violation handler behind both content-filter
// categories: delete the message, bump the per-(chat,user,type) counter, and
// mute for an hour once the counter crosses the limit, resetting it after.
type WarnService struct {
	bot      warnBot
	store    warnStore
	notifier notifier
	lang     string
	clock    func() time.Time
}

func NewWarnService(bot warnBot, store warnStore, notifier notifier, lang string) *WarnService {
	return &WarnService{
		bot:      bot,
		store:    store,
		notifier: notifier,
		lang:     lang,
		clock:    time.Now,
	}
}

func (s *WarnService) ProcessViolation(ctx context.Context, v Violation) error {
	entry := log.WithFields(log.Fields{
		"context":   "warn_service",
		"chat_id":   v.ChatID,
		"user_id":   v.UserID,
		"warn_type": v.WarnType,
	})

	// Deletion is best-effort: the rest of the moderation action must not
	// abort because the message was already gone or rights were missing.
	if _, err := s.bot.Request(api.NewDeleteMessage(v.ChatID, v.MessageID)); err != nil {
		entry.WithField("error", err.Error()).Warn("failed to delete offending message")
	}
	observability.RecordViolation(string(v.WarnType))

	// The counter is the enforcement ledger; if we cannot read the new count
	// we take no punitive action beyond the deletion above (fail closed).
	count, err := s.store.IncrementWarnings(ctx, v.ChatID, v.UserID, v.WarnType)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to increment warnings")
		return err
	}

	if count < v.WarnLimit {
		s.notifier.Notify(ctx, v.ChatID,
			fmt.Sprintf("%s: %s %d/%d", v.UserName, i18n.Get(s.violationNotice(v.WarnType), s.lang), count, v.WarnLimit),
			NoticeTTLShort)
		return nil
	}

	if err := s.muteUser(ctx, v, entry); err != nil {
		return err
	}

	if err := s.store.ResetWarnings(ctx, v.ChatID, v.UserID, v.WarnType); err != nil {
		entry.WithField("error", err.Error()).Error("failed to reset warnings after mute")
	}

	s.notifier.Notify(ctx, v.ChatID,
		fmt.Sprintf("%s: %s", v.UserName, i18n.Get("You have been muted for repeated violations.", s.lang)),
		NoticeTTLMute)
	return nil
}

func (s *WarnService) muteUser(ctx context.Context, v Violation, entry *log.Entry) error {
	expiresAt := s.clock().Add(muteDuration)
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: v.ChatID},
			UserID:     v.UserID,
		},
		Permissions: &api.ChatPermissions{},
		UntilDate:   expiresAt.Unix(),

		UseIndependentChatPermissions: true,
	}
	if _, err := s.bot.Request(config); err != nil {
		err = withPrivilegeError(err, "restrict")
		entry.WithField("error", err.Error()).Error("failed to mute user")
		s.notifier.Notify(ctx, v.ChatID,
			fmt.Sprintf("%s %s", i18n.Get("Action failed! I could not mute", s.lang), v.UserName),
			NoticeStanding)
		return err
	}
	observability.RecordMute(string(v.WarnType))

	// The platform lifts the restriction at UntilDate on its own, but the
	// unmute job restores the full default permission set explicitly, which
	// also covers chats where the bot muted without an expiry earlier.
	if _, err := s.store.CreateJob(ctx, &db.ScheduledJob{
		JobType:  db.JobTypeUnmute,
		ChatID:   v.ChatID,
		TargetID: v.UserID,
		RunAt:    expiresAt.UTC(),
	}); err != nil {
		entry.WithField("error", err.Error()).Error("failed to schedule unmute")
	}
	return nil
}

func (s *WarnService) violationNotice(warnType db.WarnType) string {
	switch warnType {
	case db.WarnTypeAntilink:
		return "Please do not post links here."
	case db.WarnTypeAntiword:
		return "Please watch your language."
	}
	return "Please follow the group rules."
}

func withPrivilegeError(err error, operation string) error {
	if strings.Contains(err.Error(), MsgNoPrivileges) {
		return ErrNoPrivileges
	}
	return fmt.Errorf("failed to %s user: %w", operation, err)
}
