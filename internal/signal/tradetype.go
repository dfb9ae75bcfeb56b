package signal

import "math"

// TradeTypeInputs are the measures trade classification looks at
type TradeTypeInputs struct {
	Score       float64
	Volatility  float64 // percent
	VolumeRatio float64
	Momentum    float64 // percent
	Sentiment   float64 // -1..1
}

// Classification thresholds
const (
	AggressiveMaxInterval = 60
	ScalpMinVolatility    = 2.0
	ScalpMinVolumeRatio   = 2.0
	ScalpMinMomentum      = 1.5
	DayTradeMinScore      = 50.0
	DayTradeMinVolume     = 1.5
	DayTradeMinSentiment  = 0.3
)

// ClassifyTradeType picks scalp, day_trade or swing. Short horizons are only
// reachable in aggressive mode with a scan cadence of 60s or less.
func ClassifyTradeType(in TradeTypeInputs, aggressive bool, scanIntervalSeconds int) TradeType {
	if !aggressive || scanIntervalSeconds <= 0 || scanIntervalSeconds > AggressiveMaxInterval {
		return TradeSwing
	}

	if in.Volatility >= ScalpMinVolatility &&
		in.VolumeRatio >= ScalpMinVolumeRatio &&
		math.Abs(in.Momentum) >= ScalpMinMomentum {
		return TradeScalp
	}

	if in.Score >= DayTradeMinScore ||
		in.VolumeRatio >= DayTradeMinVolume ||
		math.Abs(in.Sentiment) >= DayTradeMinSentiment {
		return TradeDayTrade
	}
	return TradeSwing
}
