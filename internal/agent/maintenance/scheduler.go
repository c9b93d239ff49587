// internal/agent/maintenance/scheduler.go
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"finance-agent/internal/agent/batch"
	"finance-agent/internal/agent/cache"
	"finance-agent/internal/agent/ratelimit"
	"finance-agent/internal/common/config"
	"finance-agent/internal/common/logger"
)

const taskTimeout = 30 * time.Second

// TaskFunc performs one housekeeping pass and reports how many items it removed.
type TaskFunc func(ctx context.Context) (int, error)

// Scheduler runs housekeeping tasks on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger logger.Logger
	tasks  map[string]TaskFunc
}

func New(log logger.Logger) *Scheduler {
	adapter := cronLogger{log}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(adapter),
			cron.SkipIfStillRunning(adapter),
		)),
		logger: log,
		tasks:  make(map[string]TaskFunc),
	}
}

// Add registers run under name. An empty schedule disables the task.
func (s *Scheduler) Add(name, schedule string, run TaskFunc) error {
	if schedule == "" {
		s.logger.Info("Maintenance task disabled", map[string]interface{}{"task": name})
		return nil
	}
	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("maintenance task %s registered twice", name)
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.execute(name, run) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, schedule, err)
	}
	s.tasks[name] = run
	return nil
}

// Targets are the stores swept by the default tasks; nil targets are skipped.
type Targets struct {
	Batches *batch.Tracker
	Cache   *cache.Cache
	Limiter *ratelimit.Limiter
}

func (s *Scheduler) RegisterDefaults(cfg config.MaintenanceConfig, t Targets) error {
	if t.Batches != nil {
		if err := s.Add("batch-sweep", cfg.BatchSweepSchedule, func(ctx context.Context) (int, error) {
			return t.Batches.Sweep(time.Now()), nil
		}); err != nil {
			return err
		}
	}
	if t.Cache != nil {
		if err := s.Add("cache-purge", cfg.CachePurgeSchedule, t.Cache.PurgeExpired); err != nil {
			return err
		}
	}
	if t.Limiter != nil {
		if err := s.Add("rate-limit-sweep", cfg.RateLimitSweepSchedule, t.Limiter.Sweep); err != nil {
			return err
		}
	}
	return nil
}

// RunNow executes a registered task synchronously.
func (s *Scheduler) RunNow(name string) error {
	run, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("unknown maintenance task %s", name)
	}
	return s.execute(name, run)
}

func (s *Scheduler) Tasks() []string {
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) execute(name string, run TaskFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	start := time.Now()
	removed, err := run(ctx)
	if err != nil {
		s.logger.Error("Maintenance task failed", map[string]interface{}{
			"task":  name,
			"error": err.Error(),
		})
		return err
	}
	s.logger.Debug("Maintenance task finished", map[string]interface{}{
		"task":     name,
		"removed":  removed,
		"duration": time.Since(start).String(),
	})
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running tasks or ctx, whichever is first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger routes cron's own messages through the structured logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug("cron: "+msg, pairs(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := pairs(keysAndValues)
	fields["error"] = err.Error()
	c.log.Error("cron: "+msg, fields)
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
