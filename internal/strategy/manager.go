package strategy

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/broker"
)

// NameCombined labels the synthetic HOLD verdict
const NameCombined = "combined"

// Candidate is a verdict together with its evaluator's registration order
type Candidate struct {
	Verdict Verdict
	Order   int
}

// RankFunc reports whether a should be preferred over b when both carry the same action
type RankFunc func(a, b Candidate) bool

// RegistrationOrder prefers the evaluator registered first
func RegistrationOrder(a, b Candidate) bool {
	return a.Order < b.Order
}

// PriorityRanking prefers evaluators in the given name order; unlisted
// evaluators follow in registration order
func PriorityRanking(names []string) RankFunc {
	rank := make(map[string]int, len(names))
	for i, n := range names {
		rank[n] = i
	}
	pos := func(c Candidate) int {
		if r, ok := rank[c.Verdict.Strategy]; ok {
			return r
		}
		return len(names) + c.Order
	}
	return func(a, b Candidate) bool {
		return pos(a) < pos(b)
	}
}

// StrengthRanking prefers the stronger verdict, then registration order
func StrengthRanking(a, b Candidate) bool {
	if a.Verdict.Strength != b.Verdict.Strength {
		return a.Verdict.Strength > b.Verdict.Strength
	}
	return a.Order < b.Order
}

// Manager runs the active evaluators and picks one verdict:
// any BUY wins, then any SELL, otherwise a combined HOLD.
type Manager struct {
	mu         sync.RWMutex
	evaluators []Evaluator
	active     map[string]bool
	rank       RankFunc
	logger     zerolog.Logger
}

// NewManager creates a manager; a nil rank uses registration order
func NewManager(logger zerolog.Logger, rank RankFunc) *Manager {
	if rank == nil {
		rank = RegistrationOrder
	}
	return &Manager{
		active: make(map[string]bool),
		rank:   rank,
		logger: logger.With().Str("component", "strategy_manager").Logger(),
	}
}

// Register adds an evaluator, active by default
func (m *Manager) Register(e Evaluator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluators = append(m.evaluators, e)
	m.active[e.Name()] = true
}

// SetActive restricts analysis to the named evaluators
func (m *Manager) SetActive(names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := make(map[string]bool, len(m.evaluators))
	for _, e := range m.evaluators {
		known[e.Name()] = true
	}
	active := make(map[string]bool, len(names))
	for _, n := range names {
		if !known[n] {
			return fmt.Errorf("unknown strategy %q", n)
		}
		active[n] = true
	}
	m.active = active
	return nil
}

// Active returns the active evaluators in registration order
func (m *Manager) Active() []Evaluator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Evaluator, 0, len(m.evaluators))
	for _, e := range m.evaluators {
		if m.active[e.Name()] {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the registered evaluator by name
func (m *Manager) Get(name string) (Evaluator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.evaluators {
		if e.Name() == name {
			return e, true
		}
	}
	return nil, false
}

func safeAnalyze(e Evaluator, symbol string, bars []broker.Bar, price float64, extras Extras) (v Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.Analyze(symbol, bars, price, extras)
}

func safeCheckExit(e Evaluator, pos Position, price float64, bars []broker.Bar) (d ExitDecision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.CheckExit(pos, price, bars), nil
}

// AnalyzeAll runs every active evaluator. A failing evaluator is logged and skipped.
func (m *Manager) AnalyzeAll(symbol string, bars []broker.Bar, price float64, extras Extras) Verdict {
	var buys, sells []Candidate
	var reasons []string

	for i, e := range m.Active() {
		v, err := safeAnalyze(e, symbol, bars, price, extras)
		if err != nil {
			m.logger.Warn().Err(err).Str("strategy", e.Name()).Str("symbol", symbol).Msg("Evaluator failed, skipping")
			reasons = append(reasons, fmt.Sprintf("%s: failed (%v)", e.Name(), err))
			continue
		}
		if v.Strategy == "" {
			v.Strategy = e.Name()
		}
		c := Candidate{Verdict: v, Order: i}
		switch v.Action {
		case ActionBuy:
			buys = append(buys, c)
		case ActionSell:
			sells = append(sells, c)
		default:
			reasons = append(reasons, fmt.Sprintf("%s: %s", e.Name(), v.Reason()))
		}
	}

	if v, ok := m.pick(buys); ok {
		return v
	}
	if v, ok := m.pick(sells); ok {
		return v
	}
	if len(reasons) == 0 {
		reasons = []string{"no active strategies"}
	}
	return Verdict{
		Strategy:   NameCombined,
		Symbol:     symbol,
		Action:     ActionHold,
		Reasons:    reasons,
		EntryPrice: price,
		Timestamp:  time.Now(),
	}
}

func (m *Manager) pick(candidates []Candidate) (Verdict, bool) {
	if len(candidates) == 0 {
		return Verdict{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return m.rank(candidates[i], candidates[j])
	})
	return candidates[0].Verdict, true
}

// CheckExits asks every active evaluator for an exit opinion and returns the first that exits.
// Non-exiting opinions that carry a flag (such as an adjustment) are returned when nothing exits.
func (m *Manager) CheckExits(pos Position, price float64, bars []broker.Bar) ExitDecision {
	var flagged *ExitDecision
	for _, e := range m.Active() {
		d, err := safeCheckExit(e, pos, price, bars)
		if err != nil {
			m.logger.Warn().Err(err).Str("strategy", e.Name()).Str("symbol", pos.Symbol).Msg("Exit check failed, skipping")
			continue
		}
		if d.Exit {
			d.Reason = fmt.Sprintf("%s: %s", e.Name(), d.Reason)
			return d
		}
		if d.Type != ExitNone && flagged == nil {
			f := d
			flagged = &f
		}
	}
	if flagged != nil {
		return *flagged
	}
	return stay("no exit conditions met")
}
