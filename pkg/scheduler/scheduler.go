// Package scheduler owns the periodic background tasks. Each registered task
// runs on its own goroutine with a timer that only rearms after the callback
// returns, so a slow run can never overlap the next one.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robinjoseph08/golib/logger"
)

// gracePeriod bounds how long Stop waits for in-flight callbacks.
const gracePeriod = 30 * time.Second

// Task is a periodic job. InitialDelay controls the first fire; when it is
// zero or negative, the task first fires after a full Interval.
type Task struct {
	ID           string
	InitialDelay time.Duration
	Interval     time.Duration
	Run          func(ctx context.Context) error
}

// Scheduler runs registered tasks until Stop. Register everything before
// Start; tasks added afterward are ignored.
type Scheduler struct {
	log   logger.Logger
	grace time.Duration

	mu      sync.Mutex
	tasks   []Task
	started bool
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

func New() *Scheduler {
	return &Scheduler{
		log:   logger.New(),
		grace: gracePeriod,
	}
}

// Register adds a task to the registry.
func (s *Scheduler) Register(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

// Start launches one goroutine per registered task. Calling Start on a
// running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runTask(ctx, task)
	}
	s.log.Info("scheduler started", logger.Data{"tasks": len(s.tasks)})
}

// Stop cancels the shared context and waits for in-flight callbacks, up to
// the grace period.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-time.After(s.grace):
		s.log.Warn("scheduler stopped with tasks still in flight")
	}
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	defer s.wg.Done()

	delay := task.InitialDelay
	if delay <= 0 {
		delay = task.Interval
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.invoke(ctx, task)
			timer.Reset(task.Interval)
		}
	}
}

func (s *Scheduler) invoke(ctx context.Context, task Task) {
	id, err := uuid.NewRandom()
	if err != nil {
		s.log.Err(err).Error("new uuid error")
		return
	}
	log := s.log.ID(id.String()).Root(logger.Data{"task_id": task.ID})

	start := time.Now()
	log.Info("task started")

	if err := task.Run(log.WithContext(ctx)); err != nil {
		// Shutdown mid-run is not a task failure.
		if ctx.Err() != nil {
			return
		}
		log.Err(err).Error("task error")
		return
	}
	log.Info("task finished", logger.Data{"duration": time.Since(start).String()})
}
