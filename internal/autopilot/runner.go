package autopilot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned by Start on a running runner
var ErrAlreadyRunning = errors.New("runner already running")

// RunnerConfig sets the loop intervals
type RunnerConfig struct {
	ScanInterval    time.Duration
	MonitorInterval time.Duration
}

// DefaultRunnerConfig returns the runner defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		ScanInterval:    5 * time.Minute,
		MonitorInterval: time.Minute,
	}
}

// Runner drives the workflow on tickers and resets the circuit breaker when
// the trading date rolls over
type Runner struct {
	workflow *Workflow
	config   RunnerConfig
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	lastDate string
}

// NewRunner creates a runner for workflow
func NewRunner(workflow *Workflow, config RunnerConfig, logger zerolog.Logger) *Runner {
	defaults := DefaultRunnerConfig()
	if config.ScanInterval <= 0 {
		config.ScanInterval = defaults.ScanInterval
	}
	if config.MonitorInterval <= 0 {
		config.MonitorInterval = defaults.MonitorInterval
	}
	return &Runner{
		workflow: workflow,
		config:   config,
		logger:   logger.With().Str("component", "runner").Logger(),
		now:      time.Now,
	}
}

// Start launches the scan and monitor loops
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.running = true
	r.stopChan = make(chan struct{})
	r.lastDate = r.workflow.gate.TradingDate(r.now())
	stop := r.stopChan
	r.mu.Unlock()

	r.logger.Info().Dur("scan_interval", r.config.ScanInterval).
		Dur("monitor_interval", r.config.MonitorInterval).Msg("Runner started")

	r.wg.Add(2)
	go r.loop(ctx, stop, r.config.ScanInterval, func(ctx context.Context) { r.ScanTick(ctx) })
	go r.loop(ctx, stop, r.config.MonitorInterval, func(ctx context.Context) { r.MonitorTick(ctx) })
	return nil
}

// Stop halts both loops and waits for in-flight ticks
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info().Msg("Runner stopped")
}

// IsRunning reports whether the loops are active
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) loop(ctx context.Context, stop <-chan struct{}, interval time.Duration, tick func(context.Context)) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tick(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ScanTick runs one scan-and-trade cycle
func (r *Runner) ScanTick(ctx context.Context) *Result {
	r.Rollover(ctx)
	return r.workflow.ScanAndTrade(ctx)
}

// MonitorTick runs one monitor-and-exit cycle
func (r *Runner) MonitorTick(ctx context.Context) *Result {
	r.Rollover(ctx)
	return r.workflow.MonitorAndExit(ctx)
}

// Rollover resets the circuit breaker and the alert dedup cache on a new
// trading date. It reports whether a rollover happened.
func (r *Runner) Rollover(ctx context.Context) bool {
	date := r.workflow.gate.TradingDate(r.now())

	r.mu.Lock()
	prev := r.lastDate
	r.lastDate = date
	r.mu.Unlock()

	if prev == "" || prev == date {
		return false
	}
	r.logger.Info().Str("from", prev).Str("to", date).Msg("Trading date rolled over")
	if err := r.workflow.ResetCircuitBreaker(ctx); err != nil {
		r.logger.Error().Err(err).Msg("Failed to reset circuit breaker on new day")
	}
	r.workflow.dedup.Reset()
	return true
}
