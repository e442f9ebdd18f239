package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"messenger/contract"
	"messenger/errors"
)

// A crash streak doubles the restart delay up to this factor, so a
// crash-looping worker cannot saturate the log or the CPU.
const maxBackoffFactor = 16

// Supervisor runs each worker in its own goroutine, recovers panics,
// restarts crashed workers with a per-worker backoff, and shuts everything
// down when the parent context is canceled.
type Supervisor struct {
	Cancel      context.CancelFunc // To stop the context
	wg          *sync.WaitGroup    // Wait for the end of goroutines
	log         *slog.Logger
	restartWait time.Duration
	workers     []contract.Worker
}

func NewSupervisor(log *slog.Logger, restartWait time.Duration) *Supervisor {
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, restartWait: restartWait}
}

// Run blocks until every worker has finished. The supervisor owns a child
// context: when the parent cancels, the workers stop; when Stop is called,
// only the workers stop.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs one worker under supervision in a dedicated goroutine. A
// failure in one worker never stops the supervisor itself.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.supervise(ctx, worker)
	}()
}

func (s *Supervisor) supervise(ctx context.Context, worker contract.Worker) {
	name := contract.GetWorkerName(worker)
	streak := 0

	for {
		if ctx.Err() != nil {
			s.log.Info(fmt.Sprintf("Stopping : %s", name))
			return
		}

		started := time.Now()
		err := runShielded(ctx, worker)
		if err == nil {
			// Terminated properly, never restart !
			s.log.Info(fmt.Sprintf("Worker finished : %s", name))
			return
		}
		if ctx.Err() != nil {
			s.log.Info("Worker stopped (context canceled)", "name", name)
			return
		}

		// A worker that held on for a while earned a clean slate; only
		// back-to-back crashes grow the delay.
		if time.Since(started) > 10*s.restartWait {
			streak = 0
		}
		streak++
		wait := s.backoff(streak)
		s.log.Warn("Worker crashed, restarting",
			"name", name, "error", err, "streak", streak, "wait", wait)

		select {
		case <-ctx.Done():
			// Context canceled: priority stop.
			return
		case <-time.After(wait):
			// Delay elapsed and context is still active.
		}
	}
}

// runShielded turns a worker panic into ErrWorkerPanic instead of taking
// the process down.
func runShielded(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return worker.Run(ctx)
}

// backoff doubles the restart delay per consecutive crash, capped.
func (s *Supervisor) backoff(streak int) time.Duration {
	wait := s.restartWait
	for i := 1; i < streak && wait < s.restartWait*maxBackoffFactor; i++ {
		wait *= 2
	}
	if wait > s.restartWait*maxBackoffFactor {
		wait = s.restartWait * maxBackoffFactor
	}
	return wait
}

// Stop cancels the supervised context; Run then waits for every worker to
// come home before returning.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
