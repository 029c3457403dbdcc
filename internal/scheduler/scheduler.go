package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Joello61/candi-tracker-api/internal/logger"
	"github.com/Joello61/candi-tracker-api/internal/metrics"
)

type JobFunc func(ctx context.Context) error

// Scheduler owns the cron runner and the named jobs registered on it.
// Create it once at startup, Start it after wiring and Stop it on shutdown.
type Scheduler struct {
	cron *cron.Cron
	log  logger.Logger

	mu   sync.Mutex
	jobs map[string]JobFunc

	ctx    context.Context
	cancel context.CancelFunc
}

func New(log logger.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:    log,
		jobs:   map[string]JobFunc{},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds fn under name on the standard five-field cron spec (descriptors like @daily work too).
func (s *Scheduler) Register(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.run(s.ctx, name, fn) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.jobs[name] = fn
	s.log.Info("job scheduled", map[string]interface{}{"job": name, "spec": spec})
	return nil
}

// RunNow executes a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.run(ctx, name, fn)
}

func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	return out
}

func (s *Scheduler) run(ctx context.Context, name string, fn JobFunc) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	metrics.SchedulerJobDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	metrics.SchedulerJobRuns.WithLabelValues(name, metrics.Result(err)).Inc()

	fields := map[string]interface{}{"job": name, "took_ms": elapsed.Milliseconds()}
	if err != nil {
		s.log.WithError(err).Error("job failed", fields)
		return err
	}
	s.log.Debug("job done", fields)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", map[string]interface{}{"jobs": len(s.Jobs())})
}

// Stop cancels running jobs' context and waits for them, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.log.Info("scheduler stopped", nil)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).Error("cron: "+msg, kvFields(keysAndValues))
}

func kvFields(kv []interface{}) map[string]interface{} {
	if len(kv) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
