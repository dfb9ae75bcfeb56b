package autopilot

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/database"
	"equities-trading-bot/internal/events"
	"equities-trading-bot/internal/logging"
	"equities-trading-bot/internal/options"
	"equities-trading-bot/internal/order"
	"equities-trading-bot/internal/risk"
	"equities-trading-bot/internal/scanner"
	"equities-trading-bot/internal/signal"
	"equities-trading-bot/internal/strategy"
)

// tradingDaysPerYear annualises per-bar volatility for the Greeks estimate
const tradingDaysPerYear = 252

// fallbackVolatility is used when an opportunity carries no volatility
const fallbackVolatility = 0.30

// rejection stages, used as metric labels
const (
	stageInstrument = "instrument"
	stageData       = "data"
	stageSizing     = "sizing"
	stageRisk       = "risk"
	stageExecution  = "execution"
	stagePanic      = "panic"
)

// ScanAndTrade runs one scan cycle and, when auto trading is on, executes the
// best candidates while slots remain
func (w *Workflow) ScanAndTrade(ctx context.Context) *Result {
	return w.run(ctx, WorkflowScanAndTrade, true, w.scanAndTrade)
}

func (w *Workflow) scanAndTrade(ctx context.Context, res *Result) {
	logger := logging.FromContext(ctx)

	if w.IsPaused(ctx) {
		res.Status = StatusPaused
		res.State = StatePaused
		res.Message = "trading paused"
		return
	}

	w.transition(res, StateScanning)
	if w.checkBreaker(ctx, res) {
		return
	}

	positions, err := w.gateway.GetPositions(ctx)
	if err != nil {
		w.fail(ctx, res, "positions", err)
		return
	}
	w.metrics.RecordOpenPositions(len(positions))
	limit := w.gate.CheckPositionLimits(positions)
	if !limit.Allowed {
		w.transition(res, StateNoSlots)
		res.Status = StatusNoSlots
		res.Message = limit.Reason
		return
	}

	scan := w.scanner.Scan(ctx, w.config.Watchlist)
	if scan != nil {
		res.SymbolsScanned = scan.SymbolsScanned
		res.Opportunities = len(scan.Opportunities)
	}
	w.metrics.RecordScan(res.Opportunities)
	if res.Opportunities == 0 {
		w.transition(res, StateNoOpportunities)
		res.Status = StatusNoOpportunities
		res.Message = "scan found no opportunities"
		return
	}

	w.transition(res, StateSignaling)
	bySymbol := make(map[string]scanner.Opportunity, len(scan.Opportunities))
	for _, opp := range scan.Opportunities {
		bySymbol[opp.Symbol] = opp
	}
	batch := w.BatchAnalyze(ctx, scan.Opportunities)
	res.AnalysisErrors = batch.Failures

	var candidates []signal.Signal
	for _, sig := range batch.Signals {
		w.record(ctx, database.AnalysisScan, sig, bySymbol[sig.Symbol])
		if sig.Action == strategy.ActionBuy && sig.Confidence >= w.config.MinConfidence {
			candidates = append(candidates, sig)
		}
	}
	res.Signals = candidates
	if len(candidates) == 0 {
		w.transition(res, StateNoOpportunities)
		res.Status = StatusNoOpportunities
		res.Message = fmt.Sprintf("no buy signals at or above %.0f%% confidence", w.config.MinConfidence)
		return
	}

	for _, sig := range candidates {
		w.publishSignal(res.RunID, sig)
		w.notify(ctx, res, "signal:"+sig.Symbol, signalMessage(sig), signalData(sig), sig.Symbol)
	}

	if !w.config.AutoTradingEnabled {
		res.Message = fmt.Sprintf("%d signals, auto trading disabled", len(candidates))
		return
	}

	slots := limit.PositionsAvailable
	for _, sig := range candidates {
		if slots <= 0 {
			logger.Info().Int("remaining", len(candidates)-len(res.Trades)).Msg("No slots left for remaining signals")
			break
		}
		if w.IsPaused(ctx) {
			logger.Warn().Msg("Trading paused mid-cycle, stopping execution")
			res.Message = "paused during execution"
			break
		}
		outcome := w.trade(ctx, res, sig, bySymbol[sig.Symbol], order.ModeFromString(string(sig.TradeType)))
		res.Trades = append(res.Trades, outcome)
		if outcome.Executed {
			slots--
		}
	}

	if len(res.Trades) > 0 && res.Executed() == 0 {
		res.Status = StatusRejected
	}
}

// checkBreaker evaluates the circuit breaker and reports whether the run must stop
func (w *Workflow) checkBreaker(ctx context.Context, res *Result) bool {
	st, err := w.gate.CheckCircuitBreaker(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Circuit breaker check failed, using latched state")
		st = w.gate.CircuitStatus()
	}
	res.CircuitBreaker = &st
	w.metrics.RecordCircuitBreaker(st.Triggered, st.DailyLoss)
	if !st.Triggered {
		return false
	}

	w.transition(res, StateCircuitBroken)
	res.Status = StatusCircuitBroken
	res.Message = st.Reason
	w.notify(ctx, res, "circuit_breaker",
		fmt.Sprintf("Circuit breaker triggered: daily loss $%.2f of $%.2f limit", st.DailyLoss, st.DailyLossLimit),
		map[string]interface{}{
			"type":       "circuit_breaker",
			"title":      "Circuit breaker",
			"daily_loss": st.DailyLoss,
			"limit":      st.DailyLossLimit,
		}, "circuit_breaker")
	return true
}

// BatchAnalyze runs the analyzer over opportunities with bounded parallelism.
// Failures are counted; signals come back sorted by confidence, highest first.
func (w *Workflow) BatchAnalyze(ctx context.Context, opps []scanner.Opportunity) BatchResult {
	limit := w.config.BatchConcurrency
	if limit <= 0 {
		limit = DefaultConfig().BatchConcurrency
	}
	sem := semaphore.NewWeighted(int64(limit))

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result BatchResult
	)
	for i, opp := range opps {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Failures += len(opps) - i
			result.Errors = append(result.Errors, fmt.Sprintf("batch aborted: %v", err))
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(opp scanner.Opportunity) {
			defer wg.Done()
			defer sem.Release(1)

			sig, err := w.analyze(ctx, opp)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", opp.Symbol, err))
				return
			}
			result.Signals = append(result.Signals, sig)
		}(opp)
	}
	wg.Wait()

	sort.SliceStable(result.Signals, func(i, j int) bool {
		if result.Signals[i].Confidence != result.Signals[j].Confidence {
			return result.Signals[i].Confidence > result.Signals[j].Confidence
		}
		return result.Signals[i].Symbol < result.Signals[j].Symbol
	})
	return result
}

// analyze isolates one analysis; a panic becomes an error
func (w *Workflow) analyze(ctx context.Context, opp scanner.Opportunity) (sig signal.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error().Interface("panic", r).Str("symbol", opp.Symbol).Msg("Analysis panicked")
			err = fmt.Errorf("analysis panicked: %v", r)
		}
	}()
	sig = w.analyzer.Analyze(ctx, opp)
	w.metrics.RecordSignal(string(sig.Source), string(sig.Recommendation))
	return sig, nil
}

// trade runs one candidate through instrument choice, sizing, validation and
// execution. It never panics and never returns an error: every failure ends up
// in the outcome reason.
func (w *Workflow) trade(ctx context.Context, res *Result, sig signal.Signal, opp scanner.Opportunity, mode order.Mode) (out TradeOutcome) {
	out = TradeOutcome{
		Symbol:         sig.Symbol,
		Recommendation: sig.Recommendation,
		Confidence:     sig.Confidence,
	}
	logger := logging.SignalContext(*logging.FromContext(ctx), sig.Symbol, string(sig.Recommendation), sig.Confidence)
	stage := ""

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Trade panicked")
			out.Approved = false
			out.Executed = false
			out.Reason = fmt.Sprintf("panic: %v", r)
			stage = stagePanic
		}
		if out.Executed {
			return
		}
		logger.Info().Str("stage", stage).Str("reason", out.Reason).Msg("Trade not executed")
		w.metrics.RecordRejection(stage)
		if w.bus != nil {
			w.bus.PublishRejection(res.RunID, sig.Symbol, out.Reason)
		}
	}()

	w.transition(res, StateValidating)
	decision := signal.DecideInstrument(w.config.Instruments, sig)
	out.Instrument = decision.Instrument
	switch decision.Instrument {
	case signal.InstrumentStock:
		stage = w.tradeStock(ctx, res, sig, mode, &out)
	case signal.InstrumentOption:
		stage = w.tradeOption(ctx, res, sig, opp, decision.OptionType, mode, &out)
	default:
		out.Reason = decision.Reasoning
		stage = stageInstrument
	}
	return out
}

func (w *Workflow) tradeStock(ctx context.Context, res *Result, sig signal.Signal, mode order.Mode, out *TradeOutcome) string {
	price := sig.EntryPrice
	if q, err := w.gateway.GetQuote(ctx, sig.Symbol); err == nil && q.Price() > 0 {
		price = q.Price()
	}
	if price <= 0 {
		out.Reason = "no price available"
		return stageData
	}

	size := w.gate.SizeStock(sig.Confidence, price, sig.RiskLevel)
	if size.Quantity <= 0 {
		out.Reason = size.Reason
		return stageSizing
	}

	snap, err := w.snapshot(ctx)
	if err != nil {
		out.Reason = err.Error()
		return stageData
	}
	v := w.gate.ValidateStockTrade(risk.StockTrade{
		Symbol:   sig.Symbol,
		Side:     broker.SideBuy,
		Quantity: size.Quantity,
		Price:    price,
	}, snap)
	out.Quantity = size.Quantity
	out.Price = price
	out.Cost = v.TotalCost
	if !v.Approved {
		out.Reason = v.Reason
		return stageRisk
	}
	out.Approved = true

	w.transition(res, StateExecuting)
	exec, err := w.executor.ExecuteStock(ctx, order.StockOrder{
		Symbol:         sig.Symbol,
		Side:           broker.SideBuy,
		Quantity:       size.Quantity,
		ReferencePrice: price,
		Mode:           mode,
		Strategy:       sig.StrategyName,
	})
	if err != nil {
		out.Reason = err.Error()
		return stageExecution
	}
	w.filled(ctx, res, sig, exec, out)
	return ""
}

func (w *Workflow) tradeOption(ctx context.Context, res *Result, sig signal.Signal, opp scanner.Opportunity, typ options.Type, mode order.Mode, out *TradeOutcome) string {
	spot := opp.CurrentPrice
	if q, err := w.gateway.GetQuote(ctx, sig.Symbol); err == nil && q.Price() > 0 {
		spot = q.Price()
	}
	if spot <= 0 {
		spot = sig.EntryPrice
	}
	if spot <= 0 {
		out.Reason = "no underlying price available"
		return stageData
	}

	chain, err := w.gateway.GetOptionsChain(ctx, sig.Symbol)
	if err != nil {
		out.Reason = fmt.Sprintf("options chain: %v", err)
		return stageData
	}
	contract, dte, err := signal.SelectContract(chain, spot, typ, w.config.Contracts, w.now())
	if err != nil {
		out.Reason = err.Error()
		return stageData
	}
	symbol := contract.Symbol()
	out.ContractSymbol = symbol

	greeks := options.Estimate(options.Inputs{
		Spot:       spot,
		Strike:     contract.Strike,
		DTE:        dte,
		Volatility: annualizedVolatility(opp.Volatility),
		Rate:       options.DefaultRiskFreeRate,
		Type:       typ,
	})
	out.Delta = greeks.Delta

	premium := 0.0
	if q, err := w.gateway.GetOptionQuote(ctx, symbol); err == nil {
		premium = q.Mid()
	}
	if premium <= 0 {
		out.Reason = "no option quote for " + symbol
		return stageData
	}

	size := w.gate.SizeOptions(sig.Confidence, premium)
	out.Price = premium
	if size.Contracts <= 0 {
		out.Reason = size.Reason
		return stageSizing
	}

	snap, err := w.snapshot(ctx)
	if err != nil {
		out.Reason = err.Error()
		return stageData
	}
	v := w.gate.ValidateOptionsTrade(risk.OptionsTrade{
		ContractSymbol: symbol,
		Contracts:      size.Contracts,
		Premium:        premium,
		DTE:            dte,
	}, snap)
	out.Contracts = size.Contracts
	out.Cost = size.TotalCost
	if !v.Approved {
		out.Reason = v.Reason
		return stageRisk
	}
	out.Approved = true

	w.transition(res, StateExecuting)
	exec, err := w.executor.ExecuteOption(ctx, order.OptionOrder{
		ContractSymbol: symbol,
		Side:           broker.SideBuy,
		Contracts:      size.Contracts,
		LimitPrice:     premium,
		Mode:           mode,
		Strategy:       sig.StrategyName,
	})
	if err != nil {
		out.Reason = err.Error()
		return stageExecution
	}
	w.filled(ctx, res, sig, exec, out)
	return ""
}

func (w *Workflow) filled(ctx context.Context, res *Result, sig signal.Signal, exec *order.Execution, out *TradeOutcome) {
	out.Executed = true
	out.Reason = "executed"
	out.OrderID = exec.OrderID
	out.ClientOrderID = exec.ClientOrderID
	if exec.Price > 0 {
		out.Price = exec.Price
	}
	if exec.Value > 0 {
		out.Cost = exec.Value
	}

	instrument := string(out.Instrument)
	w.metrics.RecordTrade(instrument, string(exec.Side))
	if w.bus != nil {
		w.bus.PublishTrade(res.RunID, exec.Symbol, instrument, string(exec.Side), exec.Quantity, exec.Price)
	}
	w.notify(ctx, res, "", fmt.Sprintf("Opened %s: %s %.0f @ $%.2f (%.0f%% confidence)",
		instrument, exec.Symbol, exec.Quantity, exec.Price, sig.Confidence),
		map[string]interface{}{
			"type":       "trade_open",
			"title":      "Trade opened",
			"symbol":     exec.Symbol,
			"instrument": instrument,
			"quantity":   exec.Quantity,
			"price":      exec.Price,
			"order_id":   exec.OrderID,
			"strategy":   sig.StrategyName,
		}, sig.Symbol)
}

func (w *Workflow) publishSignal(runID string, sig signal.Signal) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(events.Event{
		Type:  events.EventSignalGenerated,
		RunID: runID,
		Data: map[string]interface{}{
			"symbol":         sig.Symbol,
			"recommendation": string(sig.Recommendation),
			"confidence":     sig.Confidence,
			"source":         string(sig.Source),
		},
	})
}

// annualizedVolatility converts per-bar percent volatility to an annual decimal
func annualizedVolatility(perBarPercent float64) float64 {
	if perBarPercent <= 0 {
		return fallbackVolatility
	}
	return perBarPercent / 100 * math.Sqrt(tradingDaysPerYear)
}

func signalMessage(sig signal.Signal) string {
	return fmt.Sprintf("%s %s at %.0f%% confidence (%s, %s): %s",
		sig.Recommendation, sig.Symbol, sig.Confidence, sig.StrategyName, sig.TradeType, sig.Reasoning)
}

func signalData(sig signal.Signal) map[string]interface{} {
	return map[string]interface{}{
		"type":           "signal",
		"title":          "Signal " + sig.Symbol,
		"symbol":         sig.Symbol,
		"recommendation": string(sig.Recommendation),
		"confidence":     sig.Confidence,
		"entry_price":    sig.EntryPrice,
		"stop_price":     sig.StopPrice,
		"target_price":   sig.TargetPrice,
		"source":         string(sig.Source),
	}
}
