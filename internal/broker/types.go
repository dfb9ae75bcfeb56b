package broker

import (
	"strings"
	"time"
)

// Bar is one OHLCV candle; series are ordered oldest first
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Quote is the latest top-of-book for a symbol
type Quote struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Last      float64   `json:"last"`
	Timestamp time.Time `json:"timestamp"`
}

// Price returns the last trade price, falling back to the mid
func (q Quote) Price() float64 {
	if q.Last > 0 {
		return q.Last
	}
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	if q.Ask > 0 {
		return q.Ask
	}
	return q.Bid
}

// Account represents brokerage account balances
type Account struct {
	Equity         float64 `json:"equity"`
	Cash           float64 `json:"cash"`
	BuyingPower    float64 `json:"buying_power"`
	PortfolioValue float64 `json:"portfolio_value"`
}

// AssetClass distinguishes stock and option positions
type AssetClass string

const (
	AssetClassEquity AssetClass = "us_equity"
	AssetClassOption AssetClass = "us_option"
)

// Position is an open broker position
type Position struct {
	Symbol              string     `json:"symbol"`
	AssetClass          AssetClass `json:"asset_class"`
	Quantity            float64    `json:"qty"`
	AvgEntryPrice       float64    `json:"avg_entry_price"`
	CurrentPrice        float64    `json:"current_price"`
	MarketValue         float64    `json:"market_value"`
	CostBasis           float64    `json:"cost_basis"`
	UnrealizedPL        float64    `json:"unrealized_pl"`
	UnrealizedPLPercent float64    `json:"unrealized_plpc"` // percent, e.g. -2.5
	ChangeTodayPercent  float64    `json:"change_today"`    // percent
}

// IsOption reports whether the position is an option contract
func (p Position) IsOption() bool {
	return p.AssetClass == AssetClassOption
}

// OrderSide is buy or sell
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// ParseSide normalises a side string
func ParseSide(s string) (OrderSide, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy, true
	case "sell":
		return SideSell, true
	}
	return "", false
}

// OrderType is market or limit
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderRequest describes an order to place
type OrderRequest struct {
	Symbol        string     `json:"symbol"`
	AssetClass    AssetClass `json:"asset_class"`
	Side          OrderSide  `json:"side"`
	Type          OrderType  `json:"type"`
	Quantity      float64    `json:"qty"`
	LimitPrice    float64    `json:"limit_price,omitempty"`
	TimeInForce   string     `json:"time_in_force"`
	ClientOrderID string     `json:"client_order_id"`
}

// OrderResult is the broker's acknowledgement of an order
type OrderResult struct {
	ID             string    `json:"id"`
	ClientOrderID  string    `json:"client_order_id"`
	Symbol         string    `json:"symbol"`
	Side           OrderSide `json:"side"`
	Status         string    `json:"status"`
	Quantity       float64   `json:"qty"`
	FilledQuantity float64   `json:"filled_qty"`
	FilledAvgPrice float64   `json:"filled_avg_price"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Expiration is one expiry date with its listed strikes (ascending)
type Expiration struct {
	Date    time.Time `json:"date"`
	Strikes []float64 `json:"strikes"`
}

// DTE returns calendar days to expiration relative to now
func (e Expiration) DTE(now time.Time) int {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := e.Date.Date()
	exp := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(exp.Sub(today).Hours() / 24)
}

// OptionsChain lists the expirations available for an underlying
type OptionsChain struct {
	Underlying  string       `json:"underlying"`
	Expirations []Expiration `json:"expirations"`
}

// OptionQuote is the latest bid/ask for one option contract
type OptionQuote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// Mid returns the bid/ask midpoint, falling back to whichever side is present
func (q OptionQuote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	if q.Ask > 0 {
		return q.Ask
	}
	return q.Bid
}

// NewsItem is a headline attached to one or more symbols
type NewsItem struct {
	ID        string    `json:"id"`
	Headline  string    `json:"headline"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source"`
	Symbols   []string  `json:"symbols"`
	CreatedAt time.Time `json:"created_at"`
}
