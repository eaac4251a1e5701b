package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/modhound/modhound/internal/bot"
	"github.com/modhound/modhound/internal/db"
	moderation "github.com/modhound/modhound/internal/handlers/moderation"
	"github.com/modhound/modhound/internal/i18n"
	"github.com/modhound/modhound/internal/observability"
	"github.com/modhound/modhound/internal/utils/text"
)

const (
	welcomePlaceholderUser = "{user_name}"
	welcomePlaceholderChat = "{chat_name}"

	welcomeCleanupDelay = time.Minute
)

type gateBot interface {
	Send(c api.Chattable) (api.Message, error)
	Request(c api.Chattable) (*api.APIResponse, error)
}

type gateStore interface {
	GetSettings(ctx context.Context, chatID int64) (*db.Settings, error)
	GetBlacklist(ctx context.Context, chatID int64) ([]string, error)
	CreateJob(ctx context.Context, job *db.ScheduledJob) (*db.ScheduledJob, error)
}

type gateNotifier interface {
	Notify(ctx context.Context, chatID int64, text string, ttl time.Duration)
}

// Gatekeeper screens joiners: bot-admission policy first, then the identity
// blacklist with fuzzy matching. Every decision re-reads the store, so list
// and settings changes apply to the very next join. Store errors fail open --
// admission is never blocked by a degraded store.
type Gatekeeper struct {
	bot        gateBot
	store      gateStore
	notifier   gateNotifier
	similarity func(term, probe string) int
	threshold  int
	lang       string
	clock      func() time.Time
}

func NewGatekeeper(s bot.Service, notifier *moderation.Notifier, lang string) *Gatekeeper {
	return &Gatekeeper{
		bot:        s.GetBot(),
		store:      s.GetDB(),
		notifier:   notifier,
		similarity: text.Similarity,
		threshold:  text.MatchThreshold,
		lang:       lang,
		clock:      time.Now,
	}
}

func (g *Gatekeeper) Handle(ctx context.Context, u *api.Update, chat *api.Chat, _ *api.User) (bool, error) {
	if u == nil || u.ChatMember == nil || chat == nil {
		return true, nil
	}
	joiner := joinedUser(u.ChatMember)
	if joiner == nil {
		return true, nil
	}

	entry := g.getLogEntry().WithFields(log.Fields{
		"chat_id": chat.ID,
		"user_id": joiner.ID,
	})
	entry.Info("checking new member")

	settings, err := g.store.GetSettings(ctx, chat.ID)
	if err != nil {
		// Fail open: a degraded store must not block admission.
		entry.WithField("error", err.Error()).Error("failed to get settings, admitting")
		return true, nil
	}

	if joiner.IsBot && settings.AntibotEnabled {
		g.removeJoiner(ctx, chat.ID, joiner,
			i18n.Get("Automated accounts are not allowed in this group.", g.lang), "antibot", entry)
		return false, nil
	}

	if !joiner.IsBot {
		probe := text.BuildProbe(joiner.UserName, joiner.FirstName, joiner.LastName)
		if probe != "" {
			if removed := g.checkBlacklist(ctx, chat.ID, joiner, probe, entry); removed {
				return false, nil
			}
		}
	}

	// Every joiner who was not removed gets the greeting, bots included.
	g.welcome(ctx, chat, joiner, settings, entry)
	return true, nil
}

// joinedUser returns the joining user for a genuine outside->member
// transition, nil for promotions and other membership churn.
func joinedUser(cm *api.ChatMemberUpdated) *api.User {
	if cm.NewChatMember.Status != "member" {
		return nil
	}
	switch cm.OldChatMember.Status {
	case "creator", "administrator", "member":
		return nil
	}
	return cm.NewChatMember.User
}

func (g *Gatekeeper) checkBlacklist(ctx context.Context, chatID int64, joiner *api.User, probe string, entry *log.Entry) bool {
	terms, err := g.store.GetBlacklist(ctx, chatID)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to get blacklist, admitting")
		return false
	}
	for _, term := range terms {
		score := g.similarity(term, probe)
		if score < g.threshold {
			continue
		}
		entry.WithFields(log.Fields{
			"term":  term,
			"score": score,
		}).Info("joiner matches blacklisted term")
		g.removeJoiner(ctx, chatID, joiner,
			fmt.Sprintf(i18n.Get("Removed user %s for matching a blacklisted term.", g.lang), bot.GetFullName(joiner)),
			"blacklist", entry)
		return true
	}
	return false
}

func (g *Gatekeeper) removeJoiner(ctx context.Context, chatID int64, joiner *api.User, notice, reason string, entry *log.Entry) {
	ban := api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     joiner.ID,
		},
	}
	if _, err := g.bot.Request(ban); err != nil {
		entry.WithField("error", err.Error()).Error("failed to remove joiner")
		// A standing notice: the operator has to see the bot lacks rights.
		g.notifier.Notify(ctx, chatID, fmt.Sprintf(
			i18n.Get("Action failed! User %s matches the blacklist, but I could not remove them. Please make sure I am an admin with ban permission.", g.lang),
			bot.GetFullName(joiner)), moderation.NoticeStanding)
		return
	}
	observability.RecordRemoval(reason)
	g.notifier.Notify(ctx, chatID, notice, moderation.NoticeTTLShort)
}

func (g *Gatekeeper) welcome(ctx context.Context, chat *api.Chat, joiner *api.User, settings *db.Settings, entry *log.Entry) {
	if !settings.WelcomeEnabled {
		return
	}
	template := strings.TrimSpace(settings.WelcomeTemplate())
	if template == "" {
		return
	}

	greeting := strings.ReplaceAll(template, welcomePlaceholderUser, bot.GetFullName(joiner))
	greeting = strings.ReplaceAll(greeting, welcomePlaceholderChat, chat.Title)

	sent, err := g.bot.Send(api.NewMessage(chat.ID, greeting))
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to send welcome message")
		return
	}
	if _, err := g.store.CreateJob(ctx, &db.ScheduledJob{
		JobType:  db.JobTypeDeleteMessage,
		ChatID:   chat.ID,
		TargetID: int64(sent.MessageID),
		RunAt:    g.clock().Add(welcomeCleanupDelay).UTC(),
	}); err != nil {
		entry.WithField("error", err.Error()).Error("failed to schedule welcome cleanup")
	}
}

func (g *Gatekeeper) getLogEntry() *log.Entry {
	return log.WithField("context", "gatekeeper")
}
