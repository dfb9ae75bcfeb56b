package scanner

import (
	"time"

	"equities-trading-bot/internal/broker"
)

// Opportunity is one scanned candidate symbol for the current cycle
type Opportunity struct {
	Symbol       string       `json:"symbol"`
	CurrentPrice float64      `json:"current_price"`
	Bars         []broker.Bar `json:"-"`
	Quote        broker.Quote `json:"quote"`
	VolumeRatio  float64      `json:"volume_ratio"`
	Momentum     float64      `json:"momentum"`   // percent over MomentumLookback bars
	Volatility   float64      `json:"volatility"` // stddev of recent returns, percent
	IVRank       float64      `json:"iv_rank"`
	HasIVRank    bool         `json:"has_iv_rank"`
	Score        float64      `json:"score"` // 0-100
	ScannedAt    time.Time    `json:"scanned_at"`
}

// ScanResult aggregates one scan cycle
type ScanResult struct {
	ScanID         string        `json:"scan_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	SymbolsScanned int           `json:"symbols_scanned"`
	Skipped        int           `json:"skipped"`
	Opportunities  []Opportunity `json:"opportunities"`
}

// ScannerConfig holds scanner configuration
type ScannerConfig struct {
	Timeframe   string
	BarLimit    int
	WorkerCount int
	CacheTTL    time.Duration
}

// DefaultScannerConfig returns default configuration
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		Timeframe:   "1Day",
		BarLimit:    250,
		WorkerCount: 4,
		CacheTTL:    30 * time.Second,
	}
}

// Lookbacks used when measuring a symbol
const (
	VolumeLookback     = 20
	MomentumLookback   = 5
	VolatilityLookback = 10
	IVRankPeriod       = 20
)

type cachedOpportunity struct {
	Opportunity Opportunity
	ExpiresAt   time.Time
}
