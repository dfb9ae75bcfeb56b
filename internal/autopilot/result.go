package autopilot

import (
	"time"

	"equities-trading-bot/internal/circuit"
	"equities-trading-bot/internal/monitor"
	"equities-trading-bot/internal/signal"
)

// TradeOutcome is what happened to one candidate signal
type TradeOutcome struct {
	Symbol         string                `json:"symbol"`
	Recommendation signal.Recommendation `json:"recommendation"`
	Confidence     float64               `json:"confidence"`
	Instrument     signal.Instrument     `json:"instrument"`
	Approved       bool                  `json:"approved"`
	Executed       bool                  `json:"executed"`
	Reason         string                `json:"reason"`
	Quantity       float64               `json:"quantity,omitempty"`
	ContractSymbol string                `json:"contract_symbol,omitempty"`
	Contracts      int                   `json:"contracts,omitempty"`
	Price          float64               `json:"price,omitempty"`
	Cost           float64               `json:"cost,omitempty"`
	Delta          float64               `json:"delta,omitempty"`
	OrderID        string                `json:"order_id,omitempty"`
	ClientOrderID  string                `json:"client_order_id,omitempty"`
}

// ExitOutcome is what happened to one exit alert
type ExitOutcome struct {
	Symbol    string            `json:"symbol"`
	AlertType monitor.AlertType `json:"alert_type"`
	Exited    bool              `json:"exited"`
	Reason    string            `json:"reason"`
	Error     string            `json:"error,omitempty"`
	Price     float64           `json:"price,omitempty"`
	OrderID   string            `json:"order_id,omitempty"`
}

// Result is the structured outcome of every workflow invocation
type Result struct {
	RunID             string            `json:"run_id"`
	Workflow          string            `json:"workflow"`
	Status            Status            `json:"status"`
	State             State             `json:"state"`
	Message           string            `json:"message,omitempty"`
	Error             string            `json:"error,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	Duration          time.Duration     `json:"duration"`
	SymbolsScanned    int               `json:"symbols_scanned,omitempty"`
	Opportunities     int               `json:"opportunities,omitempty"`
	Signals           []signal.Signal   `json:"signals,omitempty"`
	AnalysisErrors    int               `json:"analysis_errors,omitempty"`
	Trades            []TradeOutcome    `json:"trades,omitempty"`
	Alerts            []monitor.Alert   `json:"alerts,omitempty"`
	Exits             []ExitOutcome     `json:"exits,omitempty"`
	Closed            []string          `json:"closed,omitempty"`
	Failed            map[string]string `json:"failed,omitempty"`
	NotificationsSent int               `json:"notifications_sent"`
	CircuitBreaker    *circuit.Status   `json:"circuit_breaker,omitempty"`
}

// Executed counts trades that reached the broker
func (r *Result) Executed() int {
	n := 0
	for _, t := range r.Trades {
		if t.Executed {
			n++
		}
	}
	return n
}

// BatchResult is the outcome of a bounded parallel analysis
type BatchResult struct {
	Signals  []signal.Signal `json:"signals"`
	Failures int             `json:"failures"`
	Errors   []string        `json:"errors,omitempty"`
}

// StatusSnapshot summarises the workflow for the control surface
type StatusSnapshot struct {
	State          State              `json:"state"`
	Paused         bool               `json:"paused"`
	AutoTrading    bool               `json:"auto_trading_enabled"`
	OpenPositions  int                `json:"open_positions"`
	CircuitBreaker circuit.Status     `json:"circuit_breaker"`
	DedupSize      int                `json:"dedup_size"`
	LastResults    map[string]*Result `json:"last_results"`
}
