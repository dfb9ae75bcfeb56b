package broker

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// MockGateway is an in-memory broker used for mock mode and tests.
// Orders fill immediately at the current quote.
type MockGateway struct {
	mu           sync.RWMutex
	account      Account
	positions    map[string]*Position
	bars         map[string][]Bar
	quotes       map[string]Quote
	chains       map[string]*OptionsChain
	optionQuotes map[string]OptionQuote
	news         map[string][]NewsItem
	orders       []OrderRequest
	orderErrs    map[string]error
	closeErrs    map[string]error
	barErrs      map[string]error
	synthetic    bool
	seq          int
}

// MockOptions configures a MockGateway
type MockOptions struct {
	StartingCash float64
	// Synthetic generates deterministic random-walk bars for unknown symbols
	Synthetic bool
}

// NewMockGateway creates a mock broker
func NewMockGateway(opts MockOptions) *MockGateway {
	if opts.StartingCash == 0 {
		opts.StartingCash = 100000
	}
	return &MockGateway{
		account: Account{
			Equity:         opts.StartingCash,
			Cash:           opts.StartingCash,
			BuyingPower:    opts.StartingCash,
			PortfolioValue: opts.StartingCash,
		},
		positions:    make(map[string]*Position),
		bars:         make(map[string][]Bar),
		quotes:       make(map[string]Quote),
		chains:       make(map[string]*OptionsChain),
		optionQuotes: make(map[string]OptionQuote),
		news:         make(map[string][]NewsItem),
		orderErrs:    make(map[string]error),
		closeErrs:    make(map[string]error),
		barErrs:      make(map[string]error),
		synthetic:    opts.Synthetic,
	}
}

// SetAccount overrides account balances
func (m *MockGateway) SetAccount(a Account) {
	m.mu.Lock()
	m.account = a
	m.mu.Unlock()
}

// SetBars sets the bar series returned for symbol
func (m *MockGateway) SetBars(symbol string, bars []Bar) {
	m.mu.Lock()
	m.bars[symbol] = bars
	m.mu.Unlock()
}

// SetQuote sets the quote returned for symbol
func (m *MockGateway) SetQuote(q Quote) {
	m.mu.Lock()
	m.quotes[q.Symbol] = q
	m.mu.Unlock()
}

// SetPosition installs an open position
func (m *MockGateway) SetPosition(p Position) {
	m.mu.Lock()
	pos := p
	m.positions[p.Symbol] = &pos
	m.mu.Unlock()
}

// SetOptionsChain sets the chain returned for an underlying
func (m *MockGateway) SetOptionsChain(chain OptionsChain) {
	m.mu.Lock()
	c := chain
	m.chains[chain.Underlying] = &c
	m.mu.Unlock()
}

// SetOptionQuote sets the quote for an option symbol
func (m *MockGateway) SetOptionQuote(q OptionQuote) {
	m.mu.Lock()
	m.optionQuotes[q.Symbol] = q
	m.mu.Unlock()
}

// SetNews sets the headlines returned for symbol
func (m *MockGateway) SetNews(symbol string, items []NewsItem) {
	m.mu.Lock()
	m.news[symbol] = items
	m.mu.Unlock()
}

// FailOrders makes every order for symbol fail with err
func (m *MockGateway) FailOrders(symbol string, err error) {
	m.mu.Lock()
	m.orderErrs[symbol] = err
	m.mu.Unlock()
}

// FailClose makes ClosePosition for symbol fail with err
func (m *MockGateway) FailClose(symbol string, err error) {
	m.mu.Lock()
	m.closeErrs[symbol] = err
	m.mu.Unlock()
}

// FailBars makes GetBars for symbol fail with err
func (m *MockGateway) FailBars(symbol string, err error) {
	m.mu.Lock()
	m.barErrs[symbol] = err
	m.mu.Unlock()
}

// Orders returns a copy of every order placed
func (m *MockGateway) Orders() []OrderRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]OrderRequest, len(m.orders))
	copy(out, m.orders)
	return out
}

// GetAccount returns simulated account balances
func (m *MockGateway) GetAccount(ctx context.Context) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a := m.account
	return &a, nil
}

// GetPositions returns open positions
func (m *MockGateway) GetPositions(ctx context.Context) ([]Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, m.markLocked(*p))
	}
	return out, nil
}

// GetPosition returns the position for symbol or nil
func (m *MockGateway) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[symbol]
	if !ok {
		return nil, nil
	}
	cp := m.markLocked(*p)
	return &cp, nil
}

// markLocked revalues a position from an explicitly set quote, if any
func (m *MockGateway) markLocked(p Position) Position {
	multiplier := 1.0
	price := 0.0
	if p.IsOption() {
		multiplier = 100
		if q, ok := m.optionQuotes[p.Symbol]; ok {
			price = q.Mid()
		}
	} else if q, ok := m.quotes[p.Symbol]; ok {
		price = q.Price()
	}
	if price <= 0 {
		return p
	}
	p.CurrentPrice = price
	p.MarketValue = price * p.Quantity * multiplier
	if p.CostBasis == 0 {
		p.CostBasis = p.AvgEntryPrice * p.Quantity * multiplier
	}
	p.UnrealizedPL = p.MarketValue - p.CostBasis
	if p.CostBasis != 0 {
		p.UnrealizedPLPercent = p.UnrealizedPL / p.CostBasis * 100
	}
	return p
}

// PlaceOrder fills the order immediately at the current quote
func (m *MockGateway) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.orderErrs[req.Symbol]; ok {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrOrderRejected)
	}

	multiplier := 1.0
	var price float64
	if req.AssetClass == AssetClassOption {
		multiplier = 100
		q, ok := m.optionQuotes[req.Symbol]
		if !ok {
			return nil, fmt.Errorf("%w: no quote for %s", ErrOrderRejected, req.Symbol)
		}
		price = q.Ask
		if req.Side == SideSell {
			price = q.Bid
		}
	} else {
		q, ok := m.quoteLocked(req.Symbol)
		if !ok {
			return nil, fmt.Errorf("%w: no quote for %s", ErrOrderRejected, req.Symbol)
		}
		price = q.Price()
	}
	if req.Type == OrderTypeLimit && req.LimitPrice > 0 {
		price = req.LimitPrice
	}

	value := price * req.Quantity * multiplier
	pos, held := m.positions[req.Symbol]
	switch req.Side {
	case SideBuy:
		if value > m.account.BuyingPower {
			return nil, fmt.Errorf("%w: insufficient buying power", ErrOrderRejected)
		}
		m.account.Cash -= value
		m.account.BuyingPower -= value
		if !held {
			assetClass := req.AssetClass
			if assetClass == "" {
				assetClass = AssetClassEquity
			}
			pos = &Position{Symbol: req.Symbol, AssetClass: assetClass}
			m.positions[req.Symbol] = pos
		}
		cost := pos.AvgEntryPrice*pos.Quantity + price*req.Quantity
		pos.Quantity += req.Quantity
		pos.AvgEntryPrice = cost / pos.Quantity
		pos.CurrentPrice = price
		pos.CostBasis = pos.AvgEntryPrice * pos.Quantity * multiplier
		pos.MarketValue = price * pos.Quantity * multiplier
	case SideSell:
		if !held || pos.Quantity < req.Quantity {
			return nil, fmt.Errorf("%w: insufficient position in %s", ErrOrderRejected, req.Symbol)
		}
		m.account.Cash += value
		m.account.BuyingPower += value
		pos.Quantity -= req.Quantity
		if pos.Quantity == 0 {
			delete(m.positions, req.Symbol)
		}
	default:
		return nil, fmt.Errorf("%w: unknown side %q", ErrOrderRejected, req.Side)
	}

	m.orders = append(m.orders, req)
	m.seq++
	return &OrderResult{
		ID:             fmt.Sprintf("mock-%d", m.seq),
		ClientOrderID:  req.ClientOrderID,
		Symbol:         req.Symbol,
		Side:           req.Side,
		Status:         "filled",
		Quantity:       req.Quantity,
		FilledQuantity: req.Quantity,
		FilledAvgPrice: price,
		SubmittedAt:    time.Now(),
	}, nil
}

// ClosePosition removes the position and credits its market value
func (m *MockGateway) ClosePosition(ctx context.Context, symbol string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.closeErrs[symbol]; ok {
		return false, err
	}
	stored, ok := m.positions[symbol]
	if !ok {
		return false, nil
	}
	pos := m.markLocked(*stored)
	value := pos.MarketValue
	if value == 0 {
		value = pos.CurrentPrice * pos.Quantity
	}
	m.account.Cash += value
	m.account.BuyingPower += value
	delete(m.positions, symbol)
	return true, nil
}

// GetBars returns configured bars, or synthetic ones in synthetic mode
func (m *MockGateway) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error) {
	m.mu.RLock()
	err, failing := m.barErrs[symbol]
	bars, ok := m.bars[symbol]
	m.mu.RUnlock()

	if failing {
		return nil, err
	}
	if !ok {
		if !m.synthetic {
			return nil, fmt.Errorf("%w: %s", ErrNoMarketData, symbol)
		}
		bars = SyntheticBars(symbol, SyntheticHistory, time.Now())
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// GetQuote returns the configured quote, or the last bar close
func (m *MockGateway) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	m.mu.RLock()
	q, ok := m.quoteLocked(symbol)
	m.mu.RUnlock()
	if ok {
		return &q, nil
	}
	if m.synthetic {
		bars := SyntheticBars(symbol, SyntheticHistory, time.Now())
		last := bars[len(bars)-1].Close
		return &Quote{Symbol: symbol, Bid: last * 0.999, Ask: last * 1.001, Last: last, Timestamp: time.Now()}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoMarketData, symbol)
}

func (m *MockGateway) quoteLocked(symbol string) (Quote, bool) {
	if q, ok := m.quotes[symbol]; ok {
		return q, true
	}
	if bars := m.bars[symbol]; len(bars) > 0 {
		last := bars[len(bars)-1]
		return Quote{Symbol: symbol, Bid: last.Close, Ask: last.Close, Last: last.Close, Timestamp: last.Timestamp}, true
	}
	return Quote{}, false
}

// GetOptionsChain returns the configured chain
func (m *MockGateway) GetOptionsChain(ctx context.Context, symbol string) (*OptionsChain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chains[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no options chain for %s", ErrNoMarketData, symbol)
	}
	cp := *c
	return &cp, nil
}

// GetOptionQuote returns the configured option quote
func (m *MockGateway) GetOptionQuote(ctx context.Context, optionSymbol string) (*OptionQuote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.optionQuotes[optionSymbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMarketData, optionSymbol)
	}
	return &q, nil
}

// GetNews returns configured headlines
func (m *MockGateway) GetNews(ctx context.Context, symbol string, limit int) ([]NewsItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.news[symbol]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]NewsItem, len(items))
	copy(out, items)
	return out, nil
}

// SyntheticHistory is the length of the walk synthetic bars and quotes are cut from
const SyntheticHistory = 300

// SyntheticBars generates a deterministic daily random walk for symbol ending at end
func SyntheticBars(symbol string, limit int, end time.Time) []Bar {
	if limit <= 0 {
		limit = 1
	}
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(symbol)))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	price := 20 + rng.Float64()*280
	baseVolume := 500000 + rng.Float64()*5000000
	bars := make([]Bar, limit)
	day := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; i < limit; i++ {
		open := price
		change := (rng.Float64() - 0.5) * 0.04
		closePrice := open * (1 + change)
		high := math.Max(open, closePrice) * (1 + rng.Float64()*0.01)
		low := math.Min(open, closePrice) * (1 - rng.Float64()*0.01)
		bars[i] = Bar{
			Timestamp: day.AddDate(0, 0, i-limit+1),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    baseVolume * (0.5 + rng.Float64()),
		}
		price = closePrice
	}
	return bars
}
