package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// Runner is the surface the scheduler drives. Satisfied by *engine.Orchestrator.
type Runner interface {
	Run(ctx context.Context) (*schema.RunState, error)
	Status(ctx context.Context) (*schema.RunState, error)
}

// Config holds scheduler settings. Zero values get defaults in New.
type Config struct {
	// Cron is a standard five-field cron expression, minute granularity.
	Cron string
	// TickInterval is how often the loop checks whether a run is due.
	TickInterval time.Duration
	Logger       *slog.Logger
}

const defaultTickInterval = time.Second

// cronParser accepts five-field expressions only, no seconds field.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler triggers repeated runs of a single workflow on a cron
// schedule. Execution is strictly serial: slots that elapse while a run
// is still executing are skipped, and a run parked at an approval gate
// is neither restarted nor resumed by the schedule.
type Scheduler struct {
	runner   Runner
	expr     string
	schedule cron.Schedule
	interval time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	inflightMu sync.Mutex
	inflight   bool

	stateMu     sync.Mutex
	nextRun     time.Time
	lastRunAt   time.Time
	lastOutcome string
	runs        int
}

// New parses the cron expression and builds a stopped scheduler.
func New(runner Runner, cfg Config) (*Scheduler, error) {
	if runner == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "scheduler requires a runner")
	}
	schedule, err := cronParser.Parse(cfg.Cron)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse cron expression %q: %v", cfg.Cron, err).WithCause(err)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		expr:     cfg.Cron,
		schedule: schedule,
		interval: cfg.TickInterval,
		log:      cfg.Logger,
	}, nil
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.stateMu.Lock()
	s.nextRun = s.schedule.Next(time.Now().UTC())
	s.stateMu.Unlock()

	go s.loop(loopCtx)
	s.log.Info("scheduler started",
		slog.String("cron", s.expr),
		slog.Time("next_run", s.NextRunAt()),
	)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs the workflow once the schedule has come due. A zero nextRun
// counts as overdue.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()

	s.stateMu.Lock()
	due := !s.nextRun.After(now)
	s.stateMu.Unlock()
	if !due {
		return
	}

	if !s.tryAcquire() {
		// The previous run is still executing; the schedule advances
		// when that run finishes.
		return
	}
	defer s.release()

	s.runOnce(ctx, now)
}

// runOnce consults run status, then starts a fresh run unless the
// workflow is parked at an approval gate. Approval is resolved out of
// band, so a paused run is left exactly as it is.
func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	defer s.advance()

	st, err := s.runner.Status(ctx)
	if err != nil {
		s.record(now, "error")
		s.log.Error("scheduled run skipped, run status unavailable",
			slog.String("error", err.Error()),
		)
		return
	}

	if st.Status == schema.RunStatusAwaitingApproval {
		s.record(now, "skipped")
		s.log.Info("scheduled run skipped, workflow awaiting approval",
			slog.String("workflow_id", st.WorkflowID),
			slog.String("run_id", st.RunID),
		)
		return
	}

	s.log.Info("starting scheduled run",
		slog.String("workflow_id", st.WorkflowID),
		slog.String("cron", s.expr),
	)

	final, err := s.runner.Run(ctx)
	switch {
	case err != nil:
		s.record(now, "error")
		s.log.Error("scheduled run failed", slog.String("error", err.Error()))
	case final.Status == schema.RunStatusAwaitingApproval:
		s.record(now, "paused")
		s.log.Info("scheduled run paused at approval gate",
			slog.String("workflow_id", final.WorkflowID),
			slog.String("run_id", final.RunID),
		)
	default:
		s.record(now, "success")
	}
}

// advance moves the schedule past any slots that elapsed while the
// current run was executing.
func (s *Scheduler) advance() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.nextRun = s.schedule.Next(time.Now().UTC())
}

func (s *Scheduler) record(at time.Time, outcome string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.lastRunAt = at
	s.lastOutcome = outcome
	s.runs++
}

// tryAcquire returns true and marks a run as in-flight if none is.
func (s *Scheduler) tryAcquire() bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if s.inflight {
		return false
	}
	s.inflight = true
	return true
}

func (s *Scheduler) release() {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	s.inflight = false
}

// NextRunAt reports when the next scheduled run is due. Zero until Start.
func (s *Scheduler) NextRunAt() time.Time {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.nextRun
}

// LastOutcome reports the result of the most recent due slot: "success",
// "paused", "skipped" or "error". Empty until the first one fires.
func (s *Scheduler) LastOutcome() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastOutcome
}

// Stop shuts down the loop and waits for an in-progress tick to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.log.Info("scheduler stopped")
	return nil
}
