// Package scheduler runs stored scenarios on cron schedules. Jobs live in
// the document store, so their run history survives restarts.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/robfig/cron/v3"

	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/pkg/schema"
)

const (
	// DefaultCollection holds scheduled job documents.
	DefaultCollection = "schedules"
	defaultInterval   = 60 * time.Second

	StatusSuccess = "success"
	StatusError   = "error"
)

// Runner executes one scenario run. The interpreter satisfies it through
// RunnerFunc.
type Runner interface {
	RunScenario(ctx context.Context, name string, input map[string]any) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, name string, input map[string]any) error

func (f RunnerFunc) RunScenario(ctx context.Context, name string, input map[string]any) error {
	return f(ctx, name, input)
}

// Job is a scenario run on a cron schedule. Timestamps are RFC3339 UTC.
type Job struct {
	ID            string         `json:"id" mapstructure:"-"`
	Cron          string         `json:"cron" mapstructure:"cron"`
	Scenario      string         `json:"scenario" mapstructure:"scenario"`
	Input         map[string]any `json:"input,omitempty" mapstructure:"input"`
	Enabled       bool           `json:"enabled" mapstructure:"enabled"`
	NextRunAt     string         `json:"next_run_at,omitempty" mapstructure:"next_run_at"`
	LastRunAt     string         `json:"last_run_at,omitempty" mapstructure:"last_run_at"`
	LastRunStatus string         `json:"last_run_status,omitempty" mapstructure:"last_run_status"`
	LastError     string         `json:"last_error,omitempty" mapstructure:"last_error"`
}

func (j Job) contents() map[string]any {
	m := map[string]any{
		"cron":     j.Cron,
		"scenario": j.Scenario,
		"enabled":  j.Enabled,
	}
	if j.Input != nil {
		m["input"] = j.Input
	}
	for k, v := range map[string]string{
		"next_run_at":     j.NextRunAt,
		"last_run_at":     j.LastRunAt,
		"last_run_status": j.LastRunStatus,
		"last_error":      j.LastError,
	} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

func decodeJob(doc schema.Document) (*Job, error) {
	var job Job
	if err := mapstructure.Decode(doc.Contents, &job); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "scheduled job %q: %v", doc.Tag, err).WithCause(err)
	}
	job.ID = doc.Tag
	return &job, nil
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets how often due jobs are polled.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithCollection stores jobs in a collection other than DefaultCollection.
func WithCollection(name string) Option {
	return func(s *Scheduler) { s.collection = name }
}

// Scheduler polls the store for due jobs and runs them.
type Scheduler struct {
	store      store.DocumentStore
	runner     Runner
	parser     cron.Parser
	collection string
	interval   time.Duration
	now        func() time.Time
	logger     *slog.Logger
	cancel     context.CancelFunc
	done       chan struct{}
	mu         sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job IDs currently executing (dedup)
}

// NewScheduler creates a new Scheduler.
func NewScheduler(s store.DocumentStore, runner Runner, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	sch := &Scheduler{
		store:      s,
		runner:     runner,
		parser:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		collection: DefaultCollection,
		interval:   defaultInterval,
		now:        time.Now,
		logger:     logger,
		inflight:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(sch)
	}
	return sch
}

// Add stores a new enabled job and computes its first run time.
func (s *Scheduler) Add(ctx context.Context, job Job) (*Job, error) {
	if job.ID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "scheduled job needs an id")
	}
	if job.Scenario == "" {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "scheduled job %q names no scenario", job.ID)
	}
	next, err := s.CalculateNextRun(job.Cron, s.now().UTC())
	if err != nil {
		return nil, err
	}
	job.Enabled = true
	job.NextRunAt = next.Format(time.RFC3339)

	if err := s.store.WriteBatch(ctx, s.collection, []schema.Document{{Tag: job.ID, Contents: job.contents()}}); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "scheduled job added",
		slog.String("job_id", job.ID),
		slog.String("scenario", job.Scenario),
		slog.String("cron", job.Cron),
		slog.String("next_run_at", job.NextRunAt),
	)
	return &job, nil
}

// SetEnabled pauses or resumes a job.
func (s *Scheduler) SetEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := s.store.Update(ctx, s.collection, id, map[string]any{"enabled": enabled})
	return err
}

// Remove deletes a job.
func (s *Scheduler) Remove(ctx context.Context, id string) error {
	return s.store.DeleteDocument(ctx, s.collection, id)
}

// List returns every stored job ordered by id.
func (s *Scheduler) List(ctx context.Context) ([]*Job, error) {
	docs, err := s.store.Query(ctx, s.collection, nil, 0)
	if err != nil {
		return nil, err
	}
	jobs := make([]*Job, 0, len(docs))
	for _, d := range docs {
		job, err := decodeJob(d)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every enabled job whose next run time has passed and returns
// how many ran.
func (s *Scheduler) Tick(ctx context.Context) int {
	jobs, err := s.List(ctx)
	if err != nil {
		s.logger.Error("failed to list scheduled jobs", slog.String("error", err.Error()))
		return 0
	}

	now := s.now().UTC()
	ran := 0
	for _, job := range jobs {
		if !job.Enabled || !due(job, now) {
			continue
		}
		if !s.tryAcquire(job.ID) {
			continue // already running (dedup)
		}
		if err := s.runJob(ctx, job, now); err != nil {
			s.logger.Error("failed to run scheduled job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		s.releaseJob(job.ID)
		ran++
	}
	return ran
}

func due(job *Job, now time.Time) bool {
	if job.NextRunAt == "" {
		return true
	}
	next, err := time.Parse(time.RFC3339, job.NextRunAt)
	return err != nil || !next.After(now)
}

// runJob executes a scheduled job and updates its timestamps.
func (s *Scheduler) runJob(ctx context.Context, job *Job, now time.Time) error {
	s.logger.Info("running scheduled job",
		slog.String("job_id", job.ID),
		slog.String("scenario", job.Scenario),
	)

	status, msg := StatusSuccess, ""
	if err := s.runner.RunScenario(ctx, job.Scenario, job.Input); err != nil {
		status, msg = StatusError, err.Error()
		s.logger.Error("scheduled job execution failed",
			slog.String("job_id", job.ID),
			slog.String("error", msg),
		)
	}
	return s.updateJobStatus(ctx, job, now, status, msg)
}

func (s *Scheduler) updateJobStatus(ctx context.Context, job *Job, now time.Time, status, msg string) error {
	nextRun, err := s.CalculateNextRun(job.Cron, now)
	if err != nil {
		return fmt.Errorf("calculate next run for job %q: %w", job.ID, err)
	}

	_, err = s.store.Update(ctx, s.collection, job.ID, map[string]any{
		"last_run_at":     now.Format(time.RFC3339),
		"next_run_at":     nextRun.Format(time.RFC3339),
		"last_run_status": status,
		"last_error":      msg,
	})
	return err
}

// tryAcquire returns true and marks the job as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(jobID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[jobID]; ok {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

// releaseJob removes the job from the in-flight set.
func (s *Scheduler) releaseJob(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, schema.NewErrorf(schema.ErrCodeValidation, "parse cron expression %q: %v", cronExpr, err).
			WithCause(err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
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

	s.logger.Info("scheduler stopped")
	return nil
}
