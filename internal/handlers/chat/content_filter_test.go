package handlers

import (
	"context"
	"errors"
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/modhound/modhound/internal/db"
	moderation "github.com/modhound/modhound/internal/handlers/moderation"
)

type fakeFilterBot struct {
	member    api.ChatMember
	memberErr error
}

func (b *fakeFilterBot) GetChatMember(_ api.GetChatMemberConfig) (api.ChatMember, error) {
	if b.memberErr != nil {
		return api.ChatMember{}, b.memberErr
	}
	return b.member, nil
}

type fakeFilterStore struct {
	settings    *db.Settings
	settingsErr error
	words       []string
	wordsErr    error
	domains     []string
	domainsErr  error
	listReads   int
}

func (s *fakeFilterStore) GetSettings(_ context.Context, chatID int64) (*db.Settings, error) {
	if s.settingsErr != nil {
		return nil, s.settingsErr
	}
	if s.settings != nil {
		return s.settings, nil
	}
	return db.DefaultSettings(chatID), nil
}

func (s *fakeFilterStore) GetAntiwordTerms(_ context.Context, _ int64) ([]string, error) {
	s.listReads++
	return s.words, s.wordsErr
}

func (s *fakeFilterStore) GetWhitelistDomains(_ context.Context, _ int64) ([]string, error) {
	s.listReads++
	return s.domains, s.domainsErr
}

type fakeViolationProcessor struct {
	violations []moderation.Violation
	err        error
}

func (p *fakeViolationProcessor) ProcessViolation(_ context.Context, v moderation.Violation) error {
	p.violations = append(p.violations, v)
	return p.err
}

func filterSettings(antilink, antiword bool) *db.Settings {
	settings := db.DefaultSettings(100)
	settings.AntilinkEnabled = antilink
	settings.AntiwordEnabled = antiword
	return settings
}

func newTestContentFilter(bot *fakeFilterBot, store *fakeFilterStore, proc *fakeViolationProcessor) *ContentFilter {
	return &ContentFilter{
		bot:          bot,
		store:        store,
		warnService:  proc,
		selfID:       999,
		isSuperAdmin: func(int64) bool { return false },
	}
}

func messageUpdate(text string, entities ...api.MessageEntity) (*api.Update, *api.Chat, *api.User) {
	chat := &api.Chat{ID: 100, Type: "supergroup"}
	user := &api.User{ID: 200, UserName: "poster"}
	u := &api.Update{
		Message: &api.Message{
			MessageID: 55,
			Chat:      *chat,
			From:      user,
			Text:      text,
			Entities:  entities,
		},
	}
	return u, chat, user
}

func TestContentFilterPermitsWhitelistedDomain(t *testing.T) {
	t.Parallel()

	store := &fakeFilterStore{
		settings: filterSettings(true, false),
		domains:  []string{"example.com"},
	}
	proc := &fakeViolationProcessor{}
	f := newTestContentFilter(&fakeFilterBot{}, store, proc)

	u, chat, user := messageUpdate("docs are at https://example.com/help")
	proceed, err := f.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !proceed {
		t.Fatalf("expected whitelisted link permitted")
	}
	if len(proc.violations) != 0 {
		t.Fatalf("expected no violations, got %+v", proc.violations)
	}
}

func TestContentFilterFlagsUnlistedDomain(t *testing.T) {
	t.Parallel()

	settings := filterSettings(true, false)
	settings.AntilinkWarnLimit = 5
	store := &fakeFilterStore{
		settings: settings,
		domains:  []string{"example.com"},
	}
	proc := &fakeViolationProcessor{}
	f := newTestContentFilter(&fakeFilterBot{}, store, proc)

	u, chat, user := messageUpdate("join https://evil.com/spam now")
	proceed, err := f.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proceed {
		t.Fatalf("expected chain stopped on violation")
	}
	if len(proc.violations) != 1 {
		t.Fatalf("expected one violation, got %+v", proc.violations)
	}
	v := proc.violations[0]
	if v.WarnType != db.WarnTypeAntilink || v.MessageID != 55 || v.WarnLimit != 5 {
		t.Fatalf("unexpected violation: %+v", v)
	}
}

func TestContentFilterFlagsBlacklistedWord(t *testing.T) {
	t.Parallel()

	store := &fakeFilterStore{
		settings: filterSettings(false, true),
		words:    []string{"casino"},
	}
	proc := &fakeViolationProcessor{}
	f := newTestContentFilter(&fakeFilterBot{}, store, proc)

	u, chat, user := messageUpdate("best CASINO bonuses today")
	proceed, err := f.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proceed {
		t.Fatalf("expected chain stopped on violation")
	}
	if len(proc.violations) != 1 || proc.violations[0].WarnType != db.WarnTypeAntiword {
		t.Fatalf("expected antiword violation, got %+v", proc.violations)
	}
}

func TestContentFilterChecksHiddenLinkTargets(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name    string
		url     string
		domains []string
		want    int
	}{
		{"hidden evil link", "https://evil.com/x", []string{"example.com"}, 1},
		{"hidden whitelisted link", "https://example.com/x", []string{"example.com"}, 0},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &fakeFilterStore{
				settings: filterSettings(true, false),
				domains:  tt.domains,
			}
			proc := &fakeViolationProcessor{}
			f := newTestContentFilter(&fakeFilterBot{}, store, proc)

			u, chat, user := messageUpdate("click here", api.MessageEntity{Type: "text_link", URL: tt.url})
			if _, err := f.Handle(context.Background(), u, chat, user); err != nil {
				t.Fatalf("handle: %v", err)
			}
			if len(proc.violations) != tt.want {
				t.Fatalf("violations = %d, want %d", len(proc.violations), tt.want)
			}
		})
	}
}

func TestContentFilterExemptsAdmins(t *testing.T) {
	t.Parallel()

	store := &fakeFilterStore{
		settings: filterSettings(true, true),
		words:    []string{"casino"},
	}
	proc := &fakeViolationProcessor{}
	bot := &fakeFilterBot{member: api.ChatMember{Status: "administrator"}}
	f := newTestContentFilter(bot, store, proc)

	u, chat, user := messageUpdate("casino and https://evil.com")
	proceed, err := f.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !proceed || len(proc.violations) != 0 {
		t.Fatalf("expected admin exempt, proceed=%v violations=%+v", proceed, proc.violations)
	}
}

func TestContentFilterSkipsWhenDisabled(t *testing.T) {
	t.Parallel()

	store := &fakeFilterStore{settings: filterSettings(false, false)}
	proc := &fakeViolationProcessor{}
	f := newTestContentFilter(&fakeFilterBot{}, store, proc)

	u, chat, user := messageUpdate("casino and https://evil.com")
	proceed, err := f.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !proceed {
		t.Fatalf("expected message permitted with both filters off")
	}
	if store.listReads != 0 {
		t.Fatalf("expected no list reads with both filters off, got %d", store.listReads)
	}
}

func TestContentFilterFailsOpenOnSettingsError(t *testing.T) {
	t.Parallel()

	store := &fakeFilterStore{settingsErr: errors.New("store down")}
	proc := &fakeViolationProcessor{}
	f := newTestContentFilter(&fakeFilterBot{}, store, proc)

	u, chat, user := messageUpdate("casino and https://evil.com")
	proceed, err := f.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !proceed || len(proc.violations) != 0 {
		t.Fatalf("expected fail-open pass, proceed=%v violations=%+v", proceed, proc.violations)
	}
}

func TestContentFilterFailsOpenOnWhitelistError(t *testing.T) {
	t.Parallel()

	store := &fakeFilterStore{
		settings:   filterSettings(true, false),
		domainsErr: errors.New("store down"),
	}
	proc := &fakeViolationProcessor{}
	bot := &fakeFilterBot{memberErr: errors.New("not a member")}
	f := newTestContentFilter(bot, store, proc)

	u, chat, user := messageUpdate("join https://evil.com now")
	proceed, err := f.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !proceed || len(proc.violations) != 0 {
		t.Fatalf("expected permit when allow-list unreadable, proceed=%v violations=%+v", proceed, proc.violations)
	}
}

func TestContentFilterIgnoresPrivateChats(t *testing.T) {
	t.Parallel()

	store := &fakeFilterStore{settings: filterSettings(true, true), words: []string{"casino"}}
	proc := &fakeViolationProcessor{}
	f := newTestContentFilter(&fakeFilterBot{}, store, proc)

	chat := &api.Chat{ID: 100, Type: "private"}
	user := &api.User{ID: 200}
	u := &api.Update{Message: &api.Message{MessageID: 55, Chat: *chat, From: user, Text: "casino"}}

	proceed, err := f.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !proceed || len(proc.violations) != 0 {
		t.Fatalf("expected private chat ignored, proceed=%v violations=%+v", proceed, proc.violations)
	}
}

func TestHasLink(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		text string
		want bool
	}{
		{"visit https://spam.club/offer", true},
		{"t.me/spam_channel", true},
		{"bare domain spam.club in text", true},
		{"ftp://files.internal", true},
		{"no links in this sentence", false},
		{"version 2.5 released", false},
		{"", false},
	} {
		tt := tt
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			if got := hasLink(tt.text, nil); got != tt.want {
				t.Fatalf("hasLink(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestHasLinkTrustsEntities(t *testing.T) {
	t.Parallel()

	if !hasLink("click here", []api.MessageEntity{{Type: "url"}}) {
		t.Fatalf("expected url entity to count as a link")
	}
	if !hasLink("click here", []api.MessageEntity{{Type: "text_link", URL: "https://evil.com"}}) {
		t.Fatalf("expected text_link entity to count as a link")
	}
}

func TestBuildCheckText(t *testing.T) {
	t.Parallel()

	got := buildCheckText("Click HERE", []api.MessageEntity{
		{Type: "text_link", URL: "https://Evil.com/X"},
		{Type: "bold"},
	})
	want := "click here https://evil.com/x"
	if got != want {
		t.Fatalf("buildCheckText = %q, want %q", got, want)
	}
}
