package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/modhound/modhound/internal/bot"
	"github.com/modhound/modhound/internal/config"
	"github.com/modhound/modhound/internal/db"
	"github.com/modhound/modhound/internal/i18n"
)

const defaultPinDuration = 24 * time.Hour

const startMessage = `👋 Hi! I am a moderation bot.
Add me to your group and make me an admin with ban and restrict permissions.

Commands:
🔹 /addblacklist <term> — ban joiners whose name matches
🔹 /removeblacklist <term>
🔹 /listblacklist
🔹 /addword <word> — delete messages containing the word
🔹 /delword <word>, /listwords
🔹 /allowdomain <domain> — allow links to the domain
🔹 /deldomain <domain>, /listdomains
🔹 /antibot on|off, /antilink on|off, /antiword on|off
🔹 /warnlimit antilink|antiword <n>
🔹 /welcome on|off, /setwelcome <template with {user_name} and {chat_name}>
🔹 /pin <duration> — reply to a message to pin it temporarily

Group admins can use these commands in the group. Super-admins (from config) can also use them anywhere.`

// Admin owns the command surface over the moderation store: list management,
// feature toggles, and the temporary pin. Authorization is the configured
// super-admin set, else the platform's group-admin status fetched per call.
type Admin struct {
	s    bot.Service
	cfg  config.Config
	lang string
}

func NewAdmin(s bot.Service) *Admin {
	cfg := config.Get()
	return &Admin{
		s:    s,
		cfg:  cfg,
		lang: cfg.DefaultLanguage,
	}
}

func (a *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error) {
	if chat == nil || user == nil {
		return true, nil
	}
	switch {
	case
		u.Message == nil,
		user.IsBot,
		!u.Message.IsCommand():
		return true, nil
	}
	m := u.Message
	entry := a.getLogEntry().WithFields(log.Fields{
		"chat_id": chat.ID,
		"command": m.Command(),
	})

	if m.Command() == "start" {
		a.reply(chat.ID, startMessage)
		return false, nil
	}

	if !a.isAuthorized(chat, user) {
		entry.Trace("not authorized")
		a.reply(chat.ID, i18n.Get("Sorry, this command is for admins only.", a.lang))
		return false, nil
	}

	argument := strings.TrimSpace(m.CommandArguments())
	store := a.s.GetDB()

	switch m.Command() {
	case "addblacklist":
		a.addListTerm(ctx, chat.ID, argument, "Usage: /addblacklist <term_to_block>", store.AddBlacklistTerm)
	case "removeblacklist":
		a.removeListTerm(ctx, chat.ID, argument, "Usage: /removeblacklist <term_to_remove>", store.RemoveBlacklistTerm)
	case "listblacklist":
		a.listTerms(ctx, chat.ID, "The blacklist is currently empty.", store.GetBlacklist)
	case "addword":
		a.addListTerm(ctx, chat.ID, argument, "Usage: /addword <word_to_filter>", store.AddAntiwordTerm)
	case "delword":
		a.removeListTerm(ctx, chat.ID, argument, "Usage: /delword <word>", store.RemoveAntiwordTerm)
	case "listwords":
		a.listTerms(ctx, chat.ID, "The word filter is currently empty.", store.GetAntiwordTerms)
	case "allowdomain":
		a.addListTerm(ctx, chat.ID, argument, "Usage: /allowdomain <domain>", store.AddWhitelistDomain)
	case "deldomain":
		a.removeListTerm(ctx, chat.ID, argument, "Usage: /deldomain <domain>", store.RemoveWhitelistDomain)
	case "listdomains":
		a.listTerms(ctx, chat.ID, "The domain allow-list is currently empty.", store.GetWhitelistDomains)
	case "antibot":
		a.toggleSetting(ctx, chat.ID, argument, "antibot", func(s *db.Settings, on bool) { s.AntibotEnabled = on })
	case "antilink":
		a.toggleSetting(ctx, chat.ID, argument, "antilink", func(s *db.Settings, on bool) { s.AntilinkEnabled = on })
	case "antiword":
		a.toggleSetting(ctx, chat.ID, argument, "antiword", func(s *db.Settings, on bool) { s.AntiwordEnabled = on })
	case "welcome":
		a.toggleSetting(ctx, chat.ID, argument, "welcome", func(s *db.Settings, on bool) { s.WelcomeEnabled = on })
	case "warnlimit":
		a.setWarnLimit(ctx, chat.ID, argument)
	case "setwelcome":
		a.setWelcome(ctx, chat.ID, argument)
	case "pin":
		a.pin(ctx, chat.ID, m, argument, entry)
	default:
		entry.Trace("unknown command")
		return true, nil
	}
	return false, nil
}

func (a *Admin) isAuthorized(chat *api.Chat, user *api.User) bool {
	if a.cfg.IsSuperAdmin(user.ID) {
		return true
	}
	if chat.IsPrivate() {
		return false
	}
	member, err := a.s.GetBot().GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{ChatID: chat.ID},
			UserID:     user.ID,
		},
	})
	if err != nil {
		a.getLogEntry().WithFields(log.Fields{
			"chat_id": chat.ID,
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("could not check admin status")
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

func (a *Admin) addListTerm(
	ctx context.Context, chatID int64, argument, usage string,
	add func(ctx context.Context, chatID int64, value string) (bool, error),
) {
	if argument == "" {
		a.reply(chatID, usage)
		return
	}
	inserted, err := add(ctx, chatID, argument)
	if err != nil {
		a.getLogEntry().WithField("error", err.Error()).Error("failed to add term")
		a.reply(chatID, fmt.Sprintf("⚠️ Could not add '%s', please try again.", argument))
		return
	}
	if !inserted {
		a.reply(chatID, fmt.Sprintf("⚠️ '%s' is already on the list.", strings.ToLower(argument)))
		return
	}
	a.reply(chatID, fmt.Sprintf("✅ Added '%s'.", strings.ToLower(argument)))
}

func (a *Admin) removeListTerm(
	ctx context.Context, chatID int64, argument, usage string,
	remove func(ctx context.Context, chatID int64, value string) (bool, error),
) {
	if argument == "" {
		a.reply(chatID, usage)
		return
	}
	removed, err := remove(ctx, chatID, argument)
	if err != nil {
		a.getLogEntry().WithField("error", err.Error()).Error("failed to remove term")
		a.reply(chatID, fmt.Sprintf("⚠️ Could not remove '%s', please try again.", argument))
		return
	}
	if !removed {
		a.reply(chatID, fmt.Sprintf("⚠️ '%s' was not found on the list.", strings.ToLower(argument)))
		return
	}
	a.reply(chatID, fmt.Sprintf("🗑️ Removed '%s'.", strings.ToLower(argument)))
}

func (a *Admin) listTerms(
	ctx context.Context, chatID int64, emptyMessage string,
	list func(ctx context.Context, chatID int64) ([]string, error),
) {
	terms, err := list(ctx, chatID)
	if err != nil {
		a.getLogEntry().WithField("error", err.Error()).Error("failed to list terms")
		a.reply(chatID, "⚠️ Could not read the list, please try again.")
		return
	}
	if len(terms) == 0 {
		a.reply(chatID, "📋 "+i18n.Get(emptyMessage, a.lang))
		return
	}
	var sb strings.Builder
	sb.WriteString("Current list:\n")
	for _, term := range terms {
		sb.WriteString("- `" + api.EscapeText(api.ModeMarkdown, term) + "`\n")
	}
	msg := api.NewMessage(chatID, sb.String())
	msg.ParseMode = api.ModeMarkdown
	msg.DisableNotification = true
	if _, err := a.s.GetBot().Send(msg); err != nil {
		a.getLogEntry().WithField("error", err.Error()).Error("failed to send list")
	}
}

func (a *Admin) toggleSetting(ctx context.Context, chatID int64, argument, name string, apply func(*db.Settings, bool)) {
	var on bool
	switch strings.ToLower(argument) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		a.reply(chatID, fmt.Sprintf("Usage: /%s on|off", name))
		return
	}
	if err := a.updateSettings(ctx, chatID, func(s *db.Settings) { apply(s, on) }); err != nil {
		a.reply(chatID, "⚠️ Could not update settings, please try again.")
		return
	}
	state := "disabled"
	if on {
		state = "enabled"
	}
	a.reply(chatID, fmt.Sprintf("✅ %s is now %s.", name, state))
}

func (a *Admin) setWarnLimit(ctx context.Context, chatID int64, argument string) {
	fields := strings.Fields(argument)
	usage := "Usage: /warnlimit antilink|antiword <n>"
	if len(fields) != 2 {
		a.reply(chatID, usage)
		return
	}
	limit, err := strconv.Atoi(fields[1])
	if err != nil || limit < 1 {
		a.reply(chatID, usage)
		return
	}
	warnType := db.WarnType(strings.ToLower(fields[0]))
	if warnType != db.WarnTypeAntilink && warnType != db.WarnTypeAntiword {
		a.reply(chatID, usage)
		return
	}
	err = a.updateSettings(ctx, chatID, func(s *db.Settings) {
		switch warnType {
		case db.WarnTypeAntilink:
			s.AntilinkWarnLimit = limit
		case db.WarnTypeAntiword:
			s.AntiwordWarnLimit = limit
		}
	})
	if err != nil {
		a.reply(chatID, "⚠️ Could not update settings, please try again.")
		return
	}
	a.reply(chatID, fmt.Sprintf("✅ %s warn limit set to %d.", warnType, limit))
}

func (a *Admin) setWelcome(ctx context.Context, chatID int64, argument string) {
	if argument == "" {
		a.reply(chatID, "Usage: /setwelcome <template>, placeholders {user_name} and {chat_name}")
		return
	}
	err := a.updateSettings(ctx, chatID, func(s *db.Settings) {
		s.WelcomeEnabled = true
		s.WelcomeMessage = sql.NullString{String: argument, Valid: true}
	})
	if err != nil {
		a.reply(chatID, "⚠️ Could not update settings, please try again.")
		return
	}
	a.reply(chatID, "✅ Welcome message set and enabled.")
}

// pin pins the replied-to message and queues the unpin, so the pin reverses
// itself without operator attention.
func (a *Admin) pin(ctx context.Context, chatID int64, m *api.Message, argument string, entry *log.Entry) {
	if m.ReplyToMessage == nil {
		a.reply(chatID, "Reply to the message you want to pin: /pin <duration>")
		return
	}
	duration := defaultPinDuration
	if argument != "" {
		parsed, err := time.ParseDuration(argument)
		if err != nil || parsed <= 0 {
			a.reply(chatID, "Usage: /pin <duration>, e.g. /pin 2h")
			return
		}
		duration = parsed
	}

	b := a.s.GetBot()
	if _, err := b.Request(api.PinChatMessageConfig{
		BaseChatMessage: api.BaseChatMessage{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			MessageID:  m.ReplyToMessage.MessageID,
		},
		DisableNotification: true,
	}); err != nil {
		entry.WithField("error", err.Error()).Error("failed to pin message")
		a.reply(chatID, "⚠️ Could not pin the message. Am I an admin with pin permission?")
		return
	}

	if _, err := a.s.GetDB().CreateJob(ctx, &db.ScheduledJob{
		JobType:  db.JobTypeUnpin,
		ChatID:   chatID,
		TargetID: int64(m.ReplyToMessage.MessageID),
		RunAt:    time.Now().Add(duration).UTC(),
	}); err != nil {
		entry.WithField("error", errors.WithMessage(err, "cant schedule unpin").Error()).Error("failed to schedule unpin")
		a.reply(chatID, "⚠️ Pinned, but could not schedule the unpin.")
		return
	}
	a.reply(chatID, fmt.Sprintf("📌 Pinned for %s.", duration))
}

func (a *Admin) updateSettings(ctx context.Context, chatID int64, apply func(*db.Settings)) error {
	store := a.s.GetDB()
	settings, err := store.GetSettings(ctx, chatID)
	if err != nil {
		a.getLogEntry().WithField("error", err.Error()).Error("failed to get settings")
		return err
	}
	apply(settings)
	if err := store.SetSettings(ctx, settings); err != nil {
		a.getLogEntry().WithField("error", err.Error()).Error("failed to set settings")
		return err
	}
	return nil
}

func (a *Admin) reply(chatID int64, text string) {
	msg := api.NewMessage(chatID, text)
	msg.DisableNotification = true
	if _, err := a.s.GetBot().Send(msg); err != nil {
		a.getLogEntry().WithField("error", err.Error()).Error("failed to send reply")
	}
}

func (a *Admin) getLogEntry() *log.Entry {
	return log.WithField("handler", "admin")
}
