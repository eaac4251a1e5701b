package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/modhound/modhound/internal/db"
)

type fakeWarnBot struct {
	deletes     []api.DeleteMessageConfig
	restricts   []api.RestrictChatMemberConfig
	deleteErr   error
	restrictErr error
}

func (b *fakeWarnBot) Send(_ api.Chattable) (api.Message, error) {
	return api.Message{}, nil
}

func (b *fakeWarnBot) Request(c api.Chattable) (*api.APIResponse, error) {
	switch config := c.(type) {
	case api.DeleteMessageConfig:
		b.deletes = append(b.deletes, config)
		return nil, b.deleteErr
	case api.RestrictChatMemberConfig:
		b.restricts = append(b.restricts, config)
		return nil, b.restrictErr
	}
	return nil, nil
}

type fakeWarnStore struct {
	count        int
	incrementErr error
	resets       int
	jobs         []*db.ScheduledJob
	createErr    error
}

func (s *fakeWarnStore) IncrementWarnings(_ context.Context, _, _ int64, _ db.WarnType) (int, error) {
	if s.incrementErr != nil {
		return 0, s.incrementErr
	}
	s.count++
	return s.count, nil
}

func (s *fakeWarnStore) ResetWarnings(_ context.Context, _, _ int64, _ db.WarnType) error {
	s.resets++
	s.count = 0
	return nil
}

func (s *fakeWarnStore) CreateJob(_ context.Context, job *db.ScheduledJob) (*db.ScheduledJob, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.jobs = append(s.jobs, job)
	return job, nil
}

type notice struct {
	chatID int64
	text   string
	ttl    time.Duration
}

type fakeNotifier struct {
	notices []notice
}

func (n *fakeNotifier) Notify(_ context.Context, chatID int64, text string, ttl time.Duration) {
	n.notices = append(n.notices, notice{chatID: chatID, text: text, ttl: ttl})
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestWarnService(bot *fakeWarnBot, store *fakeWarnStore, n *fakeNotifier) *WarnService {
	return &WarnService{
		bot:      bot,
		store:    store,
		notifier: n,
		lang:     "en",
		clock:    func() time.Time { return testNow },
	}
}

func testViolation() Violation {
	return Violation{
		WarnType:  db.WarnTypeAntilink,
		ChatID:    100,
		UserID:    200,
		UserName:  "@offender",
		MessageID: 33,
		WarnLimit: 3,
	}
}

func TestProcessViolationWarnsBelowLimit(t *testing.T) {
	t.Parallel()

	bot := &fakeWarnBot{}
	store := &fakeWarnStore{}
	n := &fakeNotifier{}
	s := newTestWarnService(bot, store, n)

	if err := s.ProcessViolation(context.Background(), testViolation()); err != nil {
		t.Fatalf("process violation: %v", err)
	}

	if len(bot.deletes) != 1 || bot.deletes[0].MessageID != 33 {
		t.Fatalf("expected offending message 33 deleted, got %+v", bot.deletes)
	}
	if len(bot.restricts) != 0 {
		t.Fatalf("expected no mute below limit, got %+v", bot.restricts)
	}
	if store.resets != 0 {
		t.Fatalf("expected no reset below limit, got %d", store.resets)
	}
	if len(n.notices) != 1 {
		t.Fatalf("expected one notice, got %+v", n.notices)
	}
	if !strings.Contains(n.notices[0].text, "1/3") {
		t.Fatalf("expected count in notice, got %q", n.notices[0].text)
	}
	if n.notices[0].ttl != NoticeTTLShort {
		t.Fatalf("expected short-lived notice, got ttl %v", n.notices[0].ttl)
	}
}

func TestProcessViolationMutesAtLimit(t *testing.T) {
	t.Parallel()

	bot := &fakeWarnBot{}
	store := &fakeWarnStore{count: 2}
	n := &fakeNotifier{}
	s := newTestWarnService(bot, store, n)

	if err := s.ProcessViolation(context.Background(), testViolation()); err != nil {
		t.Fatalf("process violation: %v", err)
	}

	if len(bot.restricts) != 1 {
		t.Fatalf("expected one mute, got %+v", bot.restricts)
	}
	restrict := bot.restricts[0]
	wantUntil := testNow.Add(muteDuration).Unix()
	if restrict.UntilDate != wantUntil {
		t.Fatalf("expected mute until %d, got %d", wantUntil, restrict.UntilDate)
	}
	if restrict.Permissions == nil || restrict.Permissions.CanSendMessages {
		t.Fatalf("expected all-denied permissions, got %+v", restrict.Permissions)
	}

	if len(store.jobs) != 1 {
		t.Fatalf("expected one unmute job, got %+v", store.jobs)
	}
	job := store.jobs[0]
	if job.JobType != db.JobTypeUnmute || job.TargetID != 200 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if !job.RunAt.Equal(testNow.Add(muteDuration)) {
		t.Fatalf("expected unmute at %v, got %v", testNow.Add(muteDuration), job.RunAt)
	}

	if store.resets != 1 {
		t.Fatalf("expected counter reset after mute, got %d", store.resets)
	}
	if len(n.notices) != 1 || n.notices[0].ttl != NoticeTTLMute {
		t.Fatalf("expected mute notice, got %+v", n.notices)
	}
}

func TestProcessViolationFailsClosedOnIncrementError(t *testing.T) {
	t.Parallel()

	bot := &fakeWarnBot{}
	store := &fakeWarnStore{incrementErr: errors.New("store down")}
	n := &fakeNotifier{}
	s := newTestWarnService(bot, store, n)

	err := s.ProcessViolation(context.Background(), testViolation())
	if err == nil {
		t.Fatalf("expected error when the ledger is unavailable")
	}
	if len(bot.restricts) != 0 {
		t.Fatalf("expected no mute without a ledger read, got %+v", bot.restricts)
	}
	if len(n.notices) != 0 {
		t.Fatalf("expected no notices, got %+v", n.notices)
	}
}

func TestProcessViolationContinuesWhenDeleteFails(t *testing.T) {
	t.Parallel()

	bot := &fakeWarnBot{deleteErr: &api.Error{Code: 400, Message: "message to delete not found"}}
	store := &fakeWarnStore{}
	n := &fakeNotifier{}
	s := newTestWarnService(bot, store, n)

	if err := s.ProcessViolation(context.Background(), testViolation()); err != nil {
		t.Fatalf("process violation: %v", err)
	}
	if store.count != 1 {
		t.Fatalf("expected warning recorded despite failed delete, got %d", store.count)
	}
	if len(n.notices) != 1 {
		t.Fatalf("expected warning notice, got %+v", n.notices)
	}
}

func TestProcessViolationMuteFailureLeavesStandingNotice(t *testing.T) {
	t.Parallel()

	bot := &fakeWarnBot{restrictErr: errors.New("Bad Request: " + MsgNoPrivileges)}
	store := &fakeWarnStore{count: 2}
	n := &fakeNotifier{}
	s := newTestWarnService(bot, store, n)

	err := s.ProcessViolation(context.Background(), testViolation())
	if !errors.Is(err, ErrNoPrivileges) {
		t.Fatalf("expected ErrNoPrivileges, got %v", err)
	}
	if store.resets != 0 {
		t.Fatalf("expected counter kept after failed mute, got %d resets", store.resets)
	}
	if len(store.jobs) != 0 {
		t.Fatalf("expected no unmute job after failed mute, got %+v", store.jobs)
	}
	if len(n.notices) != 1 || n.notices[0].ttl != NoticeStanding {
		t.Fatalf("expected a standing failure notice, got %+v", n.notices)
	}
}
