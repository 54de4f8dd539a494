// Package scheduler runs background jobs: the periodic partner health check.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/uniorder/backend/internal/domain/integration"
)

// ConnectionTester tests every active partner integration
type ConnectionTester interface {
	TestAll(ctx context.Context) []integration.ConnectionResult
}

// HealthReporter receives per-partner health after each run
type HealthReporter interface {
	IntegrationHealth(partner string, up bool)
}

// HealthCheckerConfig holds configuration for the health checker
type HealthCheckerConfig struct {
	// Interval between runs
	Interval time.Duration
	// Timeout bounds a single run across all partners
	Timeout time.Duration
	// RunOnStart triggers a check immediately on Start
	RunOnStart bool
}

// DefaultHealthCheckerConfig returns default configuration
func DefaultHealthCheckerConfig() HealthCheckerConfig {
	return HealthCheckerConfig{
		Interval:   5 * time.Minute,
		Timeout:    time.Minute,
		RunOnStart: true,
	}
}

// Validate validates the configuration
func (c *HealthCheckerConfig) Validate() error {
	if c.Interval <= 0 || c.Timeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// HealthChecker periodically tests partner connections so that sync status
// on integration records stays current between outbound calls.
type HealthChecker struct {
	config   HealthCheckerConfig
	tester   ConnectionTester
	reporter HealthReporter
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  atomic.Bool

	resultsMu   sync.RWMutex
	lastResults []integration.ConnectionResult
	lastRunAt   time.Time
}

// NewHealthChecker creates a new health checker. reporter may be nil.
func NewHealthChecker(config HealthCheckerConfig, tester ConnectionTester, reporter HealthReporter, logger *zap.Logger) (*HealthChecker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthChecker{
		config:   config,
		tester:   tester,
		reporter: reporter,
		logger:   logger,
	}, nil
}

// Start starts the background loop
func (h *HealthChecker) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		return nil
	}
	h.isRunning = true
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	h.wg.Add(1)
	go h.runLoop(ctx)

	h.logger.Info("Integration health checker started",
		zap.Duration("interval", h.config.Interval),
		zap.Duration("timeout", h.config.Timeout),
	)
	return nil
}

// Stop stops the loop and waits for an in-flight run to finish
func (h *HealthChecker) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.isRunning {
		h.mu.Unlock()
		return nil
	}
	h.isRunning = false
	h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Integration health checker stopped")
		return nil
	case <-ctx.Done():
		h.logger.Warn("Integration health checker stop timed out")
		return ctx.Err()
	}
}

func (h *HealthChecker) runLoop(ctx context.Context) {
	defer h.wg.Done()

	if h.config.RunOnStart {
		_, _ = h.RunOnce(ctx)
	}

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = h.RunOnce(ctx)
		}
	}
}

// RunOnce tests all partners now. Concurrent calls return ErrAlreadyRunning.
func (h *HealthChecker) RunOnce(ctx context.Context) ([]integration.ConnectionResult, error) {
	if !h.inFlight.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer h.inFlight.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	results := h.tester.TestAll(runCtx)

	var failed int
	for _, r := range results {
		if h.reporter != nil {
			h.reporter.IntegrationHealth(r.Partner.String(), r.Connected)
		}
		if !r.Connected {
			failed++
			h.logger.Warn("Partner connection check failed",
				zap.String("partner", r.Partner.String()),
				zap.String("error", r.Error),
			)
		}
	}

	h.resultsMu.Lock()
	h.lastResults = results
	h.lastRunAt = start
	h.resultsMu.Unlock()

	h.logger.Info("Integration health check completed",
		zap.Int("partners", len(results)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

// LastResults returns the results of the most recent run and when it started
func (h *HealthChecker) LastResults() ([]integration.ConnectionResult, time.Time) {
	h.resultsMu.RLock()
	defer h.resultsMu.RUnlock()

	out := make([]integration.ConnectionResult, len(h.lastResults))
	copy(out, h.lastResults)
	return out, h.lastRunAt
}
