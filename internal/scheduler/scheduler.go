package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type JobFunc func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	fn       JobFunc
}

// Scheduler runs registered jobs on fixed intervals. Every job has its own
// goroutine, so a slow run delays only the next run of the same job.
// Each job runs once right after Start, then on every tick.
type Scheduler struct {
	jobs   []job
	wg     sync.WaitGroup
	logger *zap.Logger
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger.With(zap.String("component", "scheduler"))}
}

// Every registers fn to run each interval. Must be called before Start.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) {
	s.jobs = append(s.jobs, job{name: name, interval: interval, fn: fn})
}

// Start launches all jobs. They stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		if j.interval <= 0 {
			s.logger.Warn("Job has no interval, skipping", zap.String("job", j.name))
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
}

// Wait blocks until every job loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	defer s.wg.Done()

	s.logger.Info("Job scheduled", zap.String("job", j.name), zap.Duration("interval", j.interval))
	if ctx.Err() == nil {
		s.run(ctx, j)
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Job stopped", zap.String("job", j.name))
			return
		case <-ticker.C:
			s.run(ctx, j)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := j.fn(ctx); err != nil {
		s.logger.Error("Job failed", zap.String("job", j.name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Debug("Job finished", zap.String("job", j.name), zap.Duration("took", time.Since(start)))
}
