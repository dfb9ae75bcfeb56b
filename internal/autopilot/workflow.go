// Package autopilot drives the trading workflow: scan, signal, validate,
// execute, and monitor open positions for exits.
package autopilot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/database"
	"equities-trading-bot/internal/events"
	"equities-trading-bot/internal/logging"
	"equities-trading-bot/internal/monitor"
	"equities-trading-bot/internal/order"
	"equities-trading-bot/internal/risk"
	"equities-trading-bot/internal/scanner"
	"equities-trading-bot/internal/signal"
	"equities-trading-bot/internal/state"
	"equities-trading-bot/internal/strategy"
)

// Scanner finds opportunities
type Scanner interface {
	Scan(ctx context.Context, symbols []string) *scanner.ScanResult
	ScanSymbol(ctx context.Context, symbol string) (scanner.Opportunity, error)
}

// Analyzer turns opportunities into signals and judges exits
type Analyzer interface {
	Analyze(ctx context.Context, opp scanner.Opportunity) signal.Signal
	ExitOpinion(pos strategy.Position, price float64, bars []broker.Bar) strategy.ExitDecision
}

// Executor places and closes orders
type Executor interface {
	ExecuteStock(ctx context.Context, o order.StockOrder) (*order.Execution, error)
	ExecuteOption(ctx context.Context, o order.OptionOrder) (*order.Execution, error)
	ClosePosition(ctx context.Context, symbol string, reason string) (*order.Execution, error)
	CloseAll(ctx context.Context, reason string) (*order.CloseAllResult, error)
}

// Monitor reports alerts on open positions
type Monitor interface {
	CheckPositions(ctx context.Context) ([]monitor.Alert, error)
}

// Notifier is the outbound notification sink
type Notifier interface {
	Send(ctx context.Context, message string, data map[string]interface{}, threadKey string) error
}

// Recorder persists analyses
type Recorder interface {
	RecordAnalysis(ctx context.Context, a database.Analysis) error
}

// Metrics receives workflow counters
type Metrics interface {
	RecordScan(opportunities int)
	RecordSignal(source, recommendation string)
	RecordTrade(instrument, side string)
	RecordRejection(reason string)
	RecordAlert(alertType string)
	RecordWorkflow(workflow, status string, d time.Duration)
	RecordCircuitBreaker(triggered bool, dailyLoss float64)
	RecordOpenPositions(n int)
}

type nopMetrics struct{}

func (nopMetrics) RecordScan(int) {}
func (nopMetrics) RecordSignal(string, string) {}
func (nopMetrics) RecordTrade(string, string) {}
func (nopMetrics) RecordRejection(string) {}
func (nopMetrics) RecordAlert(string) {}
func (nopMetrics) RecordWorkflow(string, string, time.Duration) {}
func (nopMetrics) RecordCircuitBreaker(bool, float64) {}
func (nopMetrics) RecordOpenPositions(int) {}

// Config holds workflow settings
type Config struct {
	AutoTradingEnabled bool
	Watchlist          []string
	MinConfidence      float64
	Instruments        signal.InstrumentConfig
	Contracts          signal.ContractConfig
	Timeframe          string
	BarLimit           int
	DedupWindow        time.Duration
	BatchConcurrency   int
}

// DefaultConfig returns the workflow defaults
func DefaultConfig() Config {
	return Config{
		MinConfidence: 70,
		Instruments: signal.InstrumentConfig{
			MinConfidence:       70,
			StockTradingEnabled: true,
		},
		Contracts: signal.ContractConfig{
			MinDTE:           7,
			MaxDTE:           45,
			StrikePreference: signal.StrikeATM,
			OTMStrikeOffset:  1,
		},
		Timeframe:        "1Day",
		BarLimit:         100,
		DedupWindow:      DefaultDedupWindow,
		BatchConcurrency: 3,
	}
}

// Workflow is the trading orchestrator. Trading entry points are serialized;
// EmergencyStop and Resume bypass that lock and only flip the paused flag.
type Workflow struct {
	config   Config
	gateway  broker.Gateway
	scanner  Scanner
	analyzer Analyzer
	gate     *risk.Gate
	executor Executor
	monitor  Monitor
	store    state.Store
	logger   zerolog.Logger

	notifier Notifier
	recorder Recorder
	metrics  Metrics
	bus      *events.EventBus

	dedup *DedupCache
	now   func() time.Time

	runMu   sync.Mutex
	stateMu sync.RWMutex
	state   State
	paused  bool
	last    map[string]*Result
}

// NewWorkflow creates a workflow. Notifier, recorder, metrics and event bus
// are optional and attached with setters.
func NewWorkflow(
	config Config,
	gateway broker.Gateway,
	scan Scanner,
	analyzer Analyzer,
	gate *risk.Gate,
	executor Executor,
	mon Monitor,
	store state.Store,
	logger zerolog.Logger,
) *Workflow {
	defaults := DefaultConfig()
	if config.MinConfidence <= 0 {
		config.MinConfidence = defaults.MinConfidence
	}
	if config.BatchConcurrency <= 0 {
		config.BatchConcurrency = defaults.BatchConcurrency
	}
	if config.Timeframe == "" {
		config.Timeframe = defaults.Timeframe
	}
	if config.BarLimit <= 0 {
		config.BarLimit = defaults.BarLimit
	}
	if store == nil {
		store = state.NewMemoryStore()
	}
	return &Workflow{
		config:   config,
		gateway:  gateway,
		scanner:  scan,
		analyzer: analyzer,
		gate:     gate,
		executor: executor,
		monitor:  mon,
		store:    store,
		logger:   logger.With().Str("component", "autopilot").Logger(),
		metrics:  nopMetrics{},
		dedup:    NewDedupCache(config.DedupWindow),
		now:      time.Now,
		state:    StateIdle,
		last:     make(map[string]*Result),
	}
}

// SetNotifier attaches the notification sink
func (w *Workflow) SetNotifier(n Notifier) {
	w.notifier = n
}

// SetRecorder attaches the analysis recorder
func (w *Workflow) SetRecorder(r Recorder) {
	w.recorder = r
}

// SetMetrics attaches a metrics recorder
func (w *Workflow) SetMetrics(m Metrics) {
	if m == nil {
		m = nopMetrics{}
	}
	w.metrics = m
}

// SetEventBus attaches the event bus
func (w *Workflow) SetEventBus(bus *events.EventBus) {
	w.bus = bus
}

// Config returns the workflow configuration
func (w *Workflow) Config() Config {
	return w.config
}

// Restore loads the persisted paused flag
func (w *Workflow) Restore(ctx context.Context) error {
	paused, err := state.GetBool(ctx, w.store, state.KeyTradingPaused)
	if err != nil {
		return fmt.Errorf("restore paused flag: %w", err)
	}
	w.stateMu.Lock()
	w.paused = paused
	if paused {
		w.state = StatePaused
	}
	w.stateMu.Unlock()
	return nil
}

// IsPaused reads the persisted paused flag, falling back to the in-memory copy
func (w *Workflow) IsPaused(ctx context.Context) bool {
	paused, err := state.GetBool(ctx, w.store, state.KeyTradingPaused)
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if err != nil {
		w.logger.Warn().Err(err).Msg("Paused flag unavailable, using last known value")
		return w.paused
	}
	w.paused = paused
	return paused
}

func (w *Workflow) setPaused(ctx context.Context, paused bool) error {
	w.stateMu.Lock()
	w.paused = paused
	w.stateMu.Unlock()
	return state.SetBool(ctx, w.store, state.KeyTradingPaused, paused)
}

// State returns the current state
func (w *Workflow) State() State {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.state
}

func (w *Workflow) transition(res *Result, to State) {
	res.State = to
	w.setState(res.RunID, to)
}

func (w *Workflow) setState(runID string, to State) {
	w.stateMu.Lock()
	from := w.state
	w.state = to
	w.stateMu.Unlock()
	if from != to && w.bus != nil {
		w.bus.PublishStateChange(runID, string(from), string(to))
	}
}

// settle moves the machine back to its resting state after a run
func (w *Workflow) settle(res *Result) {
	w.stateMu.RLock()
	paused := w.paused
	w.stateMu.RUnlock()

	rest := StateIdle
	if paused {
		rest = StatePaused
	}
	w.setState(res.RunID, rest)
	if res.State == "" {
		res.State = rest
	}
}

// run wraps one entry point: run id, logging, panic recovery, metrics and
// last-result tracking
func (w *Workflow) run(ctx context.Context, name string, serialize bool, fn func(ctx context.Context, res *Result)) (res *Result) {
	ctx, logger := logging.WithTraceContext(ctx, w.logger.With().Str("workflow", name).Logger())
	res = &Result{
		RunID:     logging.TraceID(ctx),
		Workflow:  name,
		Status:    StatusSuccess,
		StartedAt: w.now(),
	}
	ctx = logging.NewContext(ctx, logger.With().Str("run_id", res.RunID).Logger())

	if serialize {
		w.runMu.Lock()
		defer w.runMu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Workflow panicked")
			res.Status = StatusError
			res.Error = fmt.Sprintf("panic: %v", r)
			if w.bus != nil {
				w.bus.PublishError(res.RunID, name, fmt.Errorf("panic: %v", r))
			}
		}
		res.Duration = w.now().Sub(res.StartedAt)
		w.settle(res)
		w.metrics.RecordWorkflow(name, string(res.Status), res.Duration)
		w.remember(res)
		logger.Info().Str("status", string(res.Status)).Str("state", string(res.State)).
			Dur("duration", res.Duration).Int("trades", res.Executed()).Msg("Workflow finished")
	}()

	fn(ctx, res)
	return res
}

func (w *Workflow) fail(ctx context.Context, res *Result, source string, err error) {
	logging.FromContext(ctx).Error().Err(err).Str("source", source).Msg("Workflow step failed")
	res.Status = StatusError
	res.Error = fmt.Sprintf("%s: %v", source, err)
	if w.bus != nil {
		w.bus.PublishError(res.RunID, source, err)
	}
}

func (w *Workflow) remember(res *Result) {
	w.stateMu.Lock()
	w.last[res.Workflow] = res
	w.stateMu.Unlock()
}

// LastResult returns the most recent result of a workflow, if any
func (w *Workflow) LastResult(workflow string) (*Result, bool) {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	r, ok := w.last[workflow]
	return r, ok
}

// Status returns a snapshot for the control surface
func (w *Workflow) Status(ctx context.Context) StatusSnapshot {
	paused := w.IsPaused(ctx)
	snap := StatusSnapshot{
		State:       w.State(),
		Paused:      paused,
		AutoTrading: w.config.AutoTradingEnabled,
		DedupSize:   w.dedup.Len(),
		LastResults: make(map[string]*Result),
	}
	if w.gate != nil {
		snap.CircuitBreaker = w.gate.CircuitStatus()
	}
	if positions, err := w.gateway.GetPositions(ctx); err == nil {
		snap.OpenPositions = len(positions)
	} else {
		w.logger.Debug().Err(err).Msg("Positions unavailable for status")
	}

	w.stateMu.RLock()
	for k, v := range w.last {
		snap.LastResults[k] = v
	}
	w.stateMu.RUnlock()
	return snap
}

// notify sends through the sink. A non-empty dedupKey suppresses repeats
// inside the dedup window.
func (w *Workflow) notify(ctx context.Context, res *Result, dedupKey, message string, data map[string]interface{}, threadKey string) {
	if w.notifier == nil {
		return
	}
	if dedupKey != "" && !w.dedup.ShouldNotify(dedupKey) {
		logging.FromContext(ctx).Debug().Str("key", dedupKey).Msg("Notification suppressed")
		return
	}
	if err := w.notifier.Send(ctx, message, data, threadKey); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("thread", threadKey).Msg("Notification failed")
		return
	}
	res.NotificationsSent++
}

func (w *Workflow) record(ctx context.Context, typ database.AnalysisType, sig signal.Signal, opp scanner.Opportunity) {
	if w.recorder == nil {
		return
	}
	err := w.recorder.RecordAnalysis(ctx, database.Analysis{
		Symbol:         sig.Symbol,
		Type:           typ,
		Recommendation: string(sig.Recommendation),
		Confidence:     sig.Confidence,
		Reasoning:      sig.Reasoning,
		Snapshot: map[string]interface{}{
			"source":        string(sig.Source),
			"strategy":      sig.StrategyName,
			"trade_type":    string(sig.TradeType),
			"risk_level":    string(sig.RiskLevel),
			"entry_price":   sig.EntryPrice,
			"stop_price":    sig.StopPrice,
			"target_price":  sig.TargetPrice,
			"sentiment":     sig.SentimentScore,
			"current_price": opp.CurrentPrice,
			"score":         opp.Score,
			"volume_ratio":  opp.VolumeRatio,
			"momentum":      opp.Momentum,
			"volatility":    opp.Volatility,
		},
		CreatedAt: w.now(),
	})
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("symbol", sig.Symbol).Msg("Failed to record analysis")
	}
}

// snapshot reads the account view validation runs against
func (w *Workflow) snapshot(ctx context.Context) (risk.AccountSnapshot, error) {
	account, err := w.gateway.GetAccount(ctx)
	if err != nil {
		return risk.AccountSnapshot{}, fmt.Errorf("account: %w", err)
	}
	positions, err := w.gateway.GetPositions(ctx)
	if err != nil {
		return risk.AccountSnapshot{}, fmt.Errorf("positions: %w", err)
	}
	return risk.AccountSnapshot{
		Account:   *account,
		Positions: positions,
		Paused:    w.IsPaused(ctx),
	}, nil
}
