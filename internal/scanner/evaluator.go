package scanner

import (
	"fmt"
	"math"
	"time"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/indicators"
)

// Measure derives the scan metrics for a bar series and quote
func Measure(symbol string, bars []broker.Bar, quote broker.Quote, now time.Time) (Opportunity, error) {
	if len(bars) < 2 {
		return Opportunity{}, fmt.Errorf("%s: %w", symbol, indicators.ErrInsufficientData)
	}

	price := quote.Price()
	if price <= 0 {
		price = bars[len(bars)-1].Close
	}
	quote.Symbol = symbol

	closes := indicators.Closes(bars)
	opp := Opportunity{
		Symbol:       symbol,
		CurrentPrice: price,
		Bars:         bars,
		Quote:        quote,
		VolumeRatio:  volumeRatio(bars),
		Momentum:     indicators.Momentum(closes, MomentumLookback),
		Volatility:   indicators.ReturnVolatility(closes, VolatilityLookback),
		ScannedAt:    now,
	}

	if hv, err := indicators.HistoricalVolatility(closes, IVRankPeriod); err == nil {
		opp.IVRank, opp.HasIVRank = indicators.PercentRank(hv)
	}

	opp.Score = score(opp, closes)
	return opp, nil
}

// volumeRatio is the last bar's volume over the average of the previous bars
func volumeRatio(bars []broker.Bar) float64 {
	last := len(bars) - 1
	start := last - VolumeLookback
	if start < 0 {
		start = 0
	}
	prev := indicators.Volumes(bars[start:last])
	avg := indicators.Mean(prev)
	if avg <= 0 {
		return 0
	}
	return bars[last].Volume / avg
}

// score blends activity measures into 0-100: volume 40, momentum 30, volatility 20, trend 10
func score(opp Opportunity, closes []float64) float64 {
	s := math.Min(opp.VolumeRatio/3, 1) * 40
	s += math.Min(math.Abs(opp.Momentum)/5, 1) * 30
	s += math.Min(opp.Volatility/3, 1) * 20

	if sma, err := indicators.SMA(closes, 20); err == nil {
		if v, ok := sma.Last(); ok && opp.CurrentPrice > v {
			s += 10
		}
	}
	return math.Round(s*100) / 100
}
