package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/errorreporting"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/logger"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
)

// Job is a named recurring task.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// JobStatus reports the last and next run of a job.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run,omitzero"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int       `json:"runs"`
}

type entry struct {
	job      Job
	schedule Schedule
	status   JobStatus
}

// Option customises a Service.
type Option func(*Service)

// WithTick sets how often due jobs are checked. Defaults to one second.
func WithTick(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.tick = d
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// Service runs jobs when their schedule comes due. Jobs run one at a time
// on the scheduler goroutine.
type Service struct {
	mu      sync.Mutex
	entries []*entry
	tick    time.Duration
	now     func() time.Time
	log     *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewService validates every schedule and plans each job's first run one
// period after now.
func NewService(jobs []Job, opts ...Option) (*Service, error) {
	s := &Service{
		tick: time.Second,
		now:  time.Now,
		log:  logger.WithComponent("scheduler"),
		stop: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	var errs []error
	now := s.now()
	for _, j := range jobs {
		sched, err := Parse(j.Schedule)
		if err != nil {
			errs = append(errs, fmt.Errorf("job %q: %w", j.Name, err))
			continue
		}
		s.entries = append(s.entries, &entry{
			job:      j,
			schedule: sched,
			status:   JobStatus{Name: j.Name, Schedule: j.Schedule, NextRun: sched.Next(now)},
		})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

// Start checks for due jobs every tick until ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) {
	if len(s.entries) == 0 {
		return
	}
	s.log.Info("scheduler started", "jobs", len(s.entries), "tick", s.tick)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped by context")
			return
		case <-s.stop:
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunDue(ctx)
		}
	}
}

// Stop ends Start. It is safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// RunDue runs every job whose next run is not after now and returns how
// many ran. A failed run is logged and reported; the job is planned again
// from its schedule either way.
func (s *Service) RunDue(ctx context.Context) int {
	s.mu.Lock()
	now := s.now()
	var due []*entry
	for _, e := range s.entries {
		if !now.Before(e.status.NextRun) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		err := e.job.Run(ctx)
		metrics.ScheduledRunDuration.WithLabelValues(e.job.Name).Observe(time.Since(start).Seconds())

		s.mu.Lock()
		finished := s.now()
		e.status.LastRun = finished
		e.status.Runs++
		e.status.NextRun = e.schedule.Next(finished)
		e.status.LastError = ""
		if err != nil {
			e.status.LastError = err.Error()
		}
		next := e.status.NextRun
		s.mu.Unlock()

		if err != nil {
			metrics.ScheduledRuns.WithLabelValues(e.job.Name, "failed").Inc()
			s.log.ErrorContext(ctx, "scheduled job failed", "job", e.job.Name, "error", err)
			if !errors.Is(err, context.Canceled) {
				errorreporting.CaptureErrorWithContext(err, map[string]string{"job": e.job.Name}, nil)
			}
			continue
		}
		metrics.ScheduledRuns.WithLabelValues(e.job.Name, "success").Inc()
		s.log.DebugContext(ctx, "scheduled job done", "job", e.job.Name, "next_run", next.Format(time.RFC3339))
	}
	return len(due)
}

// Status lists every job in registration order.
func (s *Service) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.status
	}
	return out
}
