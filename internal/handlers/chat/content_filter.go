package handlers

import (
	"context"
	"regexp"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/modhound/modhound/internal/bot"
	"github.com/modhound/modhound/internal/config"
	"github.com/modhound/modhound/internal/db"
	moderation "github.com/modhound/modhound/internal/handlers/moderation"
)

// Matches the three link shapes the filter cares about: t.me deep links,
// scheme-prefixed URLs, and bare word.word tokens.
var linkPattern = regexp.MustCompile(`(?:t\.me/|[a-z][a-z0-9+.-]*://|\b[a-z0-9][a-z0-9-]*\.[a-z]{2,}\b)`)

type filterBot interface {
	GetChatMember(config api.GetChatMemberConfig) (api.ChatMember, error)
}

type filterStore interface {
	GetSettings(ctx context.Context, chatID int64) (*db.Settings, error)
	GetAntiwordTerms(ctx context.Context, chatID int64) ([]string, error)
	GetWhitelistDomains(ctx context.Context, chatID int64) ([]string, error)
}

type violationProcessor interface {
	ProcessViolation(ctx context.Context, v moderation.Violation) error
}

// ContentFilter evaluates group messages against the word blacklist and the
// link policy, delegating enforcement to the warn service. Filter lists and
// settings are re-read per message; store errors fail open (the check is
// skipped for that message, never queued).
type ContentFilter struct {
	bot          filterBot
	store        filterStore
	warnService  violationProcessor
	selfID       int64
	isSuperAdmin func(userID int64) bool
}

func NewContentFilter(s bot.Service, warnService *moderation.WarnService) *ContentFilter {
	return &ContentFilter{
		bot:          s.GetBot(),
		store:        s.GetDB(),
		warnService:  warnService,
		selfID:       s.GetBot().Self.ID,
		isSuperAdmin: config.Get().IsSuperAdmin,
	}
}

func (f *ContentFilter) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u == nil || u.Message == nil || chat == nil || user == nil {
		return true, nil
	}
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return true, nil
	}
	if user.ID == f.selfID {
		return true, nil
	}
	msg := u.Message
	msgText := msg.Text
	if msgText == "" {
		msgText = msg.Caption
	}
	if msgText == "" {
		return true, nil
	}

	entry := f.getLogEntry().WithFields(log.Fields{
		"chat_id": chat.ID,
		"user_id": user.ID,
	})

	settings, err := f.store.GetSettings(ctx, chat.ID)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to get settings, skipping filters")
		return true, nil
	}
	if !settings.AntilinkEnabled && !settings.AntiwordEnabled {
		return true, nil
	}

	if f.isAdmin(chat.ID, user) {
		return true, nil
	}

	checkText := buildCheckText(msgText, msg.Entities)

	if settings.AntiwordEnabled {
		if word, hit := f.matchAntiword(ctx, chat.ID, checkText, entry); hit {
			entry.WithField("word", word).Info("antiword violation")
			return false, f.warnService.ProcessViolation(ctx, moderation.Violation{
				WarnType:  db.WarnTypeAntiword,
				ChatID:    chat.ID,
				UserID:    user.ID,
				UserName:  bot.GetUN(user),
				MessageID: msg.MessageID,
				WarnLimit: settings.WarnLimit(db.WarnTypeAntiword),
			})
		}
	}

	if settings.AntilinkEnabled && hasLink(checkText, msg.Entities) {
		if f.isWhitelisted(ctx, chat.ID, checkText, entry) {
			return true, nil
		}
		entry.Info("antilink violation")
		return false, f.warnService.ProcessViolation(ctx, moderation.Violation{
			WarnType:  db.WarnTypeAntilink,
			ChatID:    chat.ID,
			UserID:    user.ID,
			UserName:  bot.GetUN(user),
			MessageID: msg.MessageID,
			WarnLimit: settings.WarnLimit(db.WarnTypeAntilink),
		})
	}

	return true, nil
}

// buildCheckText folds hidden link targets into the visible text, so a
// text_link entity whose label differs from its URL is still checked against
// the allow-list.
func buildCheckText(msgText string, entities []api.MessageEntity) string {
	parts := []string{strings.ToLower(msgText)}
	for _, entity := range entities {
		if entity.Type == "text_link" && entity.URL != "" {
			parts = append(parts, strings.ToLower(entity.URL))
		}
	}
	return strings.Join(parts, " ")
}

func hasLink(checkText string, entities []api.MessageEntity) bool {
	if linkPattern.MatchString(checkText) {
		return true
	}
	for _, entity := range entities {
		if entity.Type == "url" || entity.Type == "text_link" {
			return true
		}
	}
	return false
}

func (f *ContentFilter) matchAntiword(ctx context.Context, chatID int64, checkText string, entry *log.Entry) (string, bool) {
	words, err := f.store.GetAntiwordTerms(ctx, chatID)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to get antiword terms, skipping check")
		return "", false
	}
	for _, word := range words {
		if strings.Contains(checkText, word) {
			return word, true
		}
	}
	return "", false
}

func (f *ContentFilter) isWhitelisted(ctx context.Context, chatID int64, checkText string, entry *log.Entry) bool {
	domains, err := f.store.GetWhitelistDomains(ctx, chatID)
	if err != nil {
		// Fail open: without the allow-list the link cannot be judged.
		entry.WithField("error", err.Error()).Error("failed to get whitelist domains, permitting")
		return true
	}
	for _, domain := range domains {
		if strings.Contains(checkText, domain) {
			return true
		}
	}
	return false
}

func (f *ContentFilter) isAdmin(chatID int64, user *api.User) bool {
	if f.isSuperAdmin(user.ID) {
		return true
	}
	member, err := f.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     user.ID,
		},
	})
	if err != nil {
		f.getLogEntry().WithFields(log.Fields{
			"chat_id": chatID,
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("failed to check admin status")
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

func (f *ContentFilter) getLogEntry() *log.Entry {
	return log.WithField("context", "content_filter")
}
