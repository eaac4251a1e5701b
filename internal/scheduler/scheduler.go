package scheduler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/modhound/modhound/internal/db"
	"github.com/modhound/modhound/internal/observability"
)

type jobStore interface {
	ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]*db.ScheduledJob, error)
	DeleteJob(ctx context.Context, id int64) error
}

type outcome string

const (
	outcomeCompleted outcome = "completed"
	outcomePermanent outcome = "permanent_failure"
	outcomeRetry     outcome = "retry"
	outcomeUnknown   outcome = "unknown_type"
)

// Scheduler polls the job table and executes due deferred actions. The store
// is the only coordination medium: multiple instances may run, and the
// claim's lock-and-skip discipline keeps them from double-delivering within
// a poll round. A job row disappears only on completion or permanent
// failure; everything else is retried next cycle (at-least-once).
type Scheduler struct {
	store    jobStore
	actions  map[db.JobType]Action
	interval time.Duration
	limit    int
	clock    func() time.Time

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	workersWg sync.WaitGroup
}

func New(bot actionBot, store jobStore, interval time.Duration, limit int) *Scheduler {
	return &Scheduler{
		store:    store,
		actions:  defaultActions(bot),
		interval: interval,
		limit:    limit,
		clock:    time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel

	s.workersWg.Add(1)
	go func() {
		defer s.workersWg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.ProcessDueJobs(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.ProcessDueJobs(runCtx)
			}
		}
	}()

	s.started = true
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.runMutex.Lock()
	if !s.started {
		s.runMutex.Unlock()
		return nil
	}
	s.started = false
	cancel := s.runCancel
	s.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// ProcessDueJobs runs one poll cycle: claim, execute, classify.
func (s *Scheduler) ProcessDueJobs(ctx context.Context) {
	entry := s.getLogEntry()

	jobs, err := s.store.ClaimDueJobs(ctx, s.clock().UTC(), s.limit)
	if err != nil {
		// Transient by definition; the next cycle retries the claim.
		entry.WithField("error", err.Error()).Error("failed to claim due jobs")
		return
	}
	if len(jobs) == 0 {
		entry.Debug("no due jobs")
		return
	}
	entry.Infof("processing %d due jobs", len(jobs))

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.processJob(ctx, job)
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *db.ScheduledJob) {
	entry := s.getLogEntry().WithFields(log.Fields{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"chat_id":  job.ChatID,
	})

	result := s.executeJob(ctx, job, entry)
	observability.RecordJobOutcome(string(job.JobType), string(result))

	switch result {
	case outcomeRetry:
		// Leave the row; the next cycle reclaims it.
		return
	default:
		if err := s.store.DeleteJob(ctx, job.ID); err != nil {
			// The action already ran and is idempotent, so a rerun after
			// this failed delete is harmless.
			entry.WithField("error", err.Error()).Error("failed to delete job")
		}
	}
}

func (s *Scheduler) executeJob(ctx context.Context, job *db.ScheduledJob, entry *log.Entry) outcome {
	action, ok := s.actions[job.JobType]
	if !ok {
		entry.Warn("unknown job type, discarding")
		return outcomeUnknown
	}

	err := action.Execute(ctx, job)
	if err == nil {
		entry.Debug("job completed")
		return outcomeCompleted
	}
	if isPermanent(err) {
		// The target is gone or the bot lost rights; retrying cannot succeed.
		entry.WithField("error", err.Error()).Warn("job failed permanently, discarding")
		return outcomePermanent
	}
	entry.WithField("error", err.Error()).Error("job failed, will retry")
	return outcomeRetry
}

// isPermanent classifies platform refusals (bad request: target no longer
// exists; forbidden: bot lost rights) as unretryable.
func isPermanent(err error) bool {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusForbidden
	}
	return false
}

func (s *Scheduler) getLogEntry() *log.Entry {
	return log.WithField("context", "scheduler")
}
