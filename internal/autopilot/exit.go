package autopilot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/database"
	"equities-trading-bot/internal/events"
	"equities-trading-bot/internal/logging"
	"equities-trading-bot/internal/monitor"
	"equities-trading-bot/internal/options"
	"equities-trading-bot/internal/order"
	"equities-trading-bot/internal/scanner"
	"equities-trading-bot/internal/signal"
	"equities-trading-bot/internal/strategy"
)

// ErrEmptySymbol is returned for manual trades without a symbol
var ErrEmptySymbol = errors.New("symbol is required")

// MonitorAndExit checks open positions and closes those whose alerts call for
// it. It runs whether or not trading is paused or auto trading is enabled.
func (w *Workflow) MonitorAndExit(ctx context.Context) *Result {
	return w.run(ctx, WorkflowMonitorAndExit, true, w.monitorAndExit)
}

func (w *Workflow) monitorAndExit(ctx context.Context, res *Result) {
	w.transition(res, StateMonitoring)

	alerts, err := w.monitor.CheckPositions(ctx)
	if err != nil {
		w.fail(ctx, res, "monitor", err)
		return
	}
	res.Alerts = alerts

	failed := 0
	for _, a := range alerts {
		w.metrics.RecordAlert(string(a.Type))
		w.publishAlert(res.RunID, a)
		if !a.IsExit() {
			w.notify(ctx, res, fmt.Sprintf("alert:%s:%s", a.Symbol, a.Type), a.Message,
				map[string]interface{}{"type": "alert", "title": string(a.Type), "symbol": a.Symbol}, a.Symbol)
			continue
		}
		out := w.exit(ctx, res, a)
		res.Exits = append(res.Exits, out)
		if out.Error != "" {
			failed++
		}
	}

	// closes realize P&L, so the breaker may have moved
	if st, err := w.gate.CheckCircuitBreaker(ctx); err == nil {
		res.CircuitBreaker = &st
		w.metrics.RecordCircuitBreaker(st.Triggered, st.DailyLoss)
	} else {
		logging.FromContext(ctx).Warn().Err(err).Msg("Circuit breaker recheck failed")
	}

	if failed > 0 {
		res.Status = StatusPartial
		res.Error = fmt.Sprintf("%d exits failed", failed)
	}
}

// exit handles one exit alert. Expiring options are closed unconditionally;
// everything else gets an exit opinion on a fresh price, and stop losses
// close regardless of it.
func (w *Workflow) exit(ctx context.Context, res *Result, a monitor.Alert) (out ExitOutcome) {
	out = ExitOutcome{Symbol: a.Symbol, AlertType: a.Type}
	logger := logging.FromContext(ctx).With().Str("symbol", a.Symbol).Str("alert", string(a.Type)).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Exit panicked")
			out.Exited = false
			out.Error = fmt.Sprintf("panic: %v", r)
			out.Reason = "exit failed"
		}
	}()

	if a.Type == monitor.AlertOptionsExpiration {
		w.close(ctx, res, a, "options expiration", &out)
		return out
	}

	price := w.freshPrice(ctx, a.Position)
	var bars []broker.Bar
	if !a.Position.IsOption() {
		b, err := w.gateway.GetBars(ctx, a.Symbol, w.config.Timeframe, w.config.BarLimit)
		if err != nil {
			logger.Debug().Err(err).Msg("Bars unavailable for exit opinion")
		}
		bars = b
	}

	opinion := w.analyzer.ExitOpinion(strategy.Position{
		Symbol:        a.Symbol,
		EntryPrice:    a.Position.AvgEntryPrice,
		Quantity:      a.Position.Quantity,
		HighWaterMark: a.HighWaterMark,
		StopPrice:     a.StopPrice,
	}, price, bars)
	w.record(ctx, database.AnalysisExit, signal.Signal{
		Symbol:         a.Symbol,
		Recommendation: exitRecommendation(opinion),
		Reasoning:      fmt.Sprintf("%s: %s", a.Type, opinion.Reason),
		EntryPrice:     price,
	}, scanner.Opportunity{CurrentPrice: price})

	if !opinion.Exit && a.Type != monitor.AlertStopLoss {
		out.Reason = "exit opinion holds: " + opinion.Reason
		out.Price = price
		logger.Info().Str("opinion", opinion.Reason).Msg("Exit alert held")
		return out
	}

	reason := string(a.Type)
	if opinion.Exit && opinion.Reason != "" {
		reason = fmt.Sprintf("%s: %s", a.Type, opinion.Reason)
	}
	w.close(ctx, res, a, reason, &out)
	return out
}

func exitRecommendation(d strategy.ExitDecision) signal.Recommendation {
	if d.Exit {
		return signal.RecSell
	}
	return signal.RecHold
}

// freshPrice quotes the position, falling back to the monitor's price
func (w *Workflow) freshPrice(ctx context.Context, pos broker.Position) float64 {
	if pos.IsOption() {
		if q, err := w.gateway.GetOptionQuote(ctx, pos.Symbol); err == nil && q.Mid() > 0 {
			return q.Mid()
		}
		return pos.CurrentPrice
	}
	if q, err := w.gateway.GetQuote(ctx, pos.Symbol); err == nil && q.Price() > 0 {
		return q.Price()
	}
	return pos.CurrentPrice
}

func (w *Workflow) close(ctx context.Context, res *Result, a monitor.Alert, reason string, out *ExitOutcome) {
	w.transition(res, StateExecuting)
	exec, err := w.executor.ClosePosition(ctx, a.Symbol, reason)
	if err != nil {
		out.Reason = "close failed"
		out.Error = err.Error()
		logging.FromContext(ctx).Error().Err(err).Str("symbol", a.Symbol).Msg("Exit close failed")
		if w.bus != nil {
			w.bus.PublishError(res.RunID, "exit", err)
		}
		return
	}
	out.Exited = true
	out.Reason = reason
	out.Price = exec.Price
	out.OrderID = exec.OrderID

	instrument := string(signal.InstrumentStock)
	if a.Position.IsOption() {
		instrument = string(signal.InstrumentOption)
	}
	w.metrics.RecordTrade(instrument, string(broker.SideSell))
	if w.bus != nil {
		w.bus.Publish(events.Event{
			Type:  events.EventPositionClosed,
			RunID: res.RunID,
			Data: map[string]interface{}{
				"symbol": a.Symbol,
				"reason": reason,
				"price":  exec.Price,
				"pl":     a.Position.UnrealizedPL,
			},
		})
	}
	w.notify(ctx, res, "", fmt.Sprintf("Closed %s @ $%.2f (%s, P&L %.2f%%)",
		a.Symbol, exec.Price, reason, a.Position.UnrealizedPLPercent),
		map[string]interface{}{
			"type":   "trade_close",
			"title":  "Position closed",
			"symbol": a.Symbol,
			"price":  exec.Price,
			"reason": reason,
		}, optionUnderlying(a.Symbol))
}

func (w *Workflow) publishAlert(runID string, a monitor.Alert) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(events.Event{
		Type:  events.EventPositionAlert,
		RunID: runID,
		Data: map[string]interface{}{
			"symbol":  a.Symbol,
			"type":    string(a.Type),
			"action":  string(a.Action),
			"message": a.Message,
		},
	})
}

// ManualTrade analyzes and, if the signal is actionable, trades one symbol
// outside the scan loop
func (w *Workflow) ManualTrade(ctx context.Context, symbol string) *Result {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return w.run(ctx, WorkflowManualTrade, true, func(ctx context.Context, res *Result) {
		if symbol == "" {
			w.fail(ctx, res, "manual_trade", ErrEmptySymbol)
			return
		}
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

		opp, err := w.scanner.ScanSymbol(ctx, symbol)
		if err != nil {
			w.fail(ctx, res, "scan "+symbol, err)
			return
		}
		res.SymbolsScanned = 1
		res.Opportunities = 1

		w.transition(res, StateSignaling)
		sig, err := w.analyze(ctx, opp)
		if err != nil {
			w.fail(ctx, res, "analyze "+symbol, err)
			return
		}
		w.record(ctx, database.AnalysisManual, sig, opp)
		res.Signals = []signal.Signal{sig}

		if sig.Action != strategy.ActionBuy || sig.Confidence < w.config.MinConfidence {
			res.Status = StatusHold
			res.Message = fmt.Sprintf("%s at %.0f%% confidence: %s", sig.Recommendation, sig.Confidence, sig.Reasoning)
			return
		}

		outcome := w.trade(ctx, res, sig, opp, order.ModeManual)
		res.Trades = []TradeOutcome{outcome}
		if !outcome.Executed {
			res.Status = StatusRejected
			res.Message = outcome.Reason
		}
	})
}

// EmergencyStop pauses trading, persists the flag and closes every position.
// Close failures are reported, never returned early.
func (w *Workflow) EmergencyStop(ctx context.Context) *Result {
	return w.run(ctx, WorkflowEmergencyStop, false, func(ctx context.Context, res *Result) {
		logger := logging.FromContext(ctx)
		w.transition(res, StateEmergencyStop)

		var errs []string
		if err := w.setPaused(ctx, true); err != nil {
			logger.Error().Err(err).Msg("Failed to persist paused flag")
			errs = append(errs, fmt.Sprintf("persist paused: %v", err))
		}
		if w.bus != nil {
			w.bus.Publish(events.Event{
				Type:  events.EventTradingPaused,
				RunID: res.RunID,
				Data:  map[string]interface{}{"reason": "emergency stop"},
			})
		}

		closed, err := w.executor.CloseAll(ctx, "emergency stop")
		if closed != nil {
			res.Closed = closed.Closed
			if len(closed.Failed) > 0 {
				res.Failed = closed.Failed
			}
		}
		if err != nil {
			logger.Error().Err(err).Msg("Close all failed")
			errs = append(errs, err.Error())
		}
		for symbol, reason := range res.Failed {
			logger.Warn().Str("symbol", symbol).Str("reason", reason).Msg("Position not closed")
		}

		if len(errs) > 0 || len(res.Failed) > 0 {
			res.Status = StatusPartial
			res.Error = strings.Join(errs, "; ")
		}
		res.Message = fmt.Sprintf("emergency stop: %d closed, %d failed", len(res.Closed), len(res.Failed))
		w.notify(ctx, res, "", res.Message, map[string]interface{}{
			"type":   "alert",
			"title":  "Emergency stop",
			"closed": len(res.Closed),
			"failed": len(res.Failed),
		}, "emergency_stop")
		w.transition(res, StatePaused)
	})
}

// Resume clears the paused flag
func (w *Workflow) Resume(ctx context.Context) *Result {
	return w.run(ctx, WorkflowResume, false, func(ctx context.Context, res *Result) {
		if err := w.setPaused(ctx, false); err != nil {
			w.fail(ctx, res, "resume", err)
			return
		}
		if w.bus != nil {
			w.bus.Publish(events.Event{Type: events.EventTradingResumed, RunID: res.RunID})
		}
		res.Message = "trading resumed"
		w.notify(ctx, res, "", "Trading resumed", map[string]interface{}{
			"type":  "info",
			"title": "Trading resumed",
		}, "emergency_stop")
		w.transition(res, StateIdle)
	})
}

// ResetCircuitBreaker clears a latched breaker and forgets its alert
func (w *Workflow) ResetCircuitBreaker(ctx context.Context) error {
	if err := w.gate.ResetCircuitBreaker(ctx); err != nil {
		return err
	}
	w.dedup.Forget("circuit_breaker")
	if w.bus != nil {
		w.bus.Publish(events.Event{
			Type: events.EventCircuitBreakerUpdate,
			Data: map[string]interface{}{"triggered": false},
		})
	}
	return nil
}

// optionUnderlying returns the underlying of an option symbol, or the symbol itself
func optionUnderlying(symbol string) string {
	if c, err := options.ParseSymbol(symbol); err == nil {
		return c.Underlying
	}
	return symbol
}
