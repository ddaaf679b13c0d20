package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NotificationWorkerConfig holds configuration for the notification worker
type NotificationWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultNotificationWorkerConfig returns default configuration
func DefaultNotificationWorkerConfig() NotificationWorkerConfig {
	return NotificationWorkerConfig{
		PollInterval: 15 * time.Second,
		BatchSize:    20,
	}
}

// Deliverer drains the pending notification outbox
type Deliverer interface {
	DeliverPending(ctx context.Context, limit int) (int, error)
}

// NotificationWorker periodically pushes pending notifications to the message channel
type NotificationWorker struct {
	config    NotificationWorkerConfig
	deliverer Deliverer
	logger    *zap.Logger

	mu        sync.RWMutex
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	isRunning bool
	sent      int
	failed    int
	lastError error
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(config NotificationWorkerConfig, deliverer Deliverer, logger *zap.Logger) *NotificationWorker {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultNotificationWorkerConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultNotificationWorkerConfig().BatchSize
	}
	return &NotificationWorker{
		config:    config,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Start begins the worker polling loop
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("notification worker already running")
	}

	var loopCtx context.Context
	loopCtx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true

	w.logger.Info("NotificationWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	w.wg.Add(1)
	go w.pollLoop(loopCtx)
	return nil
}

// Stop terminates the worker and waits for an in-flight batch
func (w *NotificationWorker) Stop() error {
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

	status := w.Status()
	w.logger.Info("NotificationWorker stopped",
		zap.Int("sent", status.Processed),
		zap.Int("failed_batches", status.Failed))
	return nil
}

// Name returns the worker name for identification
func (w *NotificationWorker) Name() string {
	return "NotificationWorker"
}

// Status reports delivery counters
func (w *NotificationWorker) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := Status{Name: w.Name(), Running: w.isRunning, Processed: w.sent, Failed: w.failed}
	if w.lastError != nil {
		s.LastError = w.lastError.Error()
	}
	return s
}

func (w *NotificationWorker) pollLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.deliver(ctx)
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context) {
	n, err := w.deliverer.DeliverPending(ctx, w.config.BatchSize)

	w.mu.Lock()
	w.sent += n
	if err != nil && ctx.Err() == nil {
		w.failed++
		w.lastError = err
	}
	w.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		w.logger.Error("Failed to deliver pending notifications", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("Delivered notifications", zap.Int("count", n))
	}
}
