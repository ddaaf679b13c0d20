package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/budget-gate/internal/application/dispatcher"
	"go.uber.org/zap"
)

// FailureWorker drains async side-effect failures reported by the dispatcher
type FailureWorker struct {
	failures <-chan dispatcher.Failure
	logger   *zap.Logger

	mu        sync.RWMutex
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	isRunning bool
	count     int
	last      error
}

// NewFailureWorker creates a worker reading from failures
func NewFailureWorker(failures <-chan dispatcher.Failure, logger *zap.Logger) *FailureWorker {
	return &FailureWorker{failures: failures, logger: logger}
}

// Start begins draining the failure channel
func (w *FailureWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("failure worker already running")
	}

	var loopCtx context.Context
	loopCtx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true

	w.wg.Add(1)
	go w.drain(loopCtx)
	return nil
}

// Stop terminates the worker
func (w *FailureWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	return nil
}

// Name returns the worker name for identification
func (w *FailureWorker) Name() string {
	return "FailureWorker"
}

// Status reports how many failures were observed
func (w *FailureWorker) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := Status{Name: w.Name(), Running: w.isRunning, Processed: w.count}
	if w.last != nil {
		s.LastError = w.last.Error()
	}
	return s
}

// drain logs failures until stopped, then flushes whatever is already buffered
func (w *FailureWorker) drain(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case f, ok := <-w.failures:
					if !ok {
						return
					}
					w.record(f)
				default:
					return
				}
			}
		case f, ok := <-w.failures:
			if !ok {
				return
			}
			w.record(f)
		}
	}
}

func (w *FailureWorker) record(f dispatcher.Failure) {
	w.mu.Lock()
	w.count++
	w.last = f.Err
	w.mu.Unlock()

	w.logger.Error("Side effect failed",
		zap.String("event_type", string(f.EventType)),
		zap.String("event_id", f.EventID),
		zap.String("entity_type", f.EntityType),
		zap.Int64("entity_id", f.EntityID),
		zap.String("handler", f.Handler),
		zap.Time("at", f.At),
		zap.Error(f.Err))
}
