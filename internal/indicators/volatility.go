package indicators

import (
	"math"

	"equities-trading-bot/internal/broker"
)

// TrueRange returns the true range of each bar; the first bar uses high-low
func TrueRange(bars []broker.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		if i == 0 {
			out[i] = b.High - b.Low
			continue
		}
		prevClose := bars[i-1].Close
		out[i] = math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}
	return out
}

// ATR calculates the Wilder-smoothed Average True Range
func ATR(bars []broker.Bar, period int) (Series, error) {
	if period <= 0 || len(bars) < period+1 {
		return nil, insufficient("ATR", len(bars), period+1)
	}
	tr := TrueRange(bars)
	out := newSeries(len(bars))

	atr := Mean(tr[1 : period+1])
	out.set(period, atr)
	p := float64(period)
	for i := period + 1; i < len(bars); i++ {
		atr = (atr*(p-1) + tr[i]) / p
		out.set(i, atr)
	}
	return out, nil
}

// ADXResult holds trend strength and directional indicators
type ADXResult struct {
	ADX     Series
	PlusDI  Series
	MinusDI Series
}

// ADX calculates the Average Directional Index with Wilder smoothing
func ADX(bars []broker.Bar, period int) (*ADXResult, error) {
	if period <= 0 || len(bars) < 2*period {
		return nil, insufficient("ADX", len(bars), 2*period)
	}
	n := len(bars)
	tr := TrueRange(bars)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	res := &ADXResult{ADX: newSeries(n), PlusDI: newSeries(n), MinusDI: newSeries(n)}
	dx := make([]float64, n)

	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}
	p := float64(period)
	for i := period; i < n; i++ {
		if i > period {
			smTR = smTR - smTR/p + tr[i]
			smPlus = smPlus - smPlus/p + plusDM[i]
			smMinus = smMinus - smMinus/p + minusDM[i]
		}
		var pdi, mdi float64
		if smTR > 0 {
			pdi = 100 * smPlus / smTR
			mdi = 100 * smMinus / smTR
		}
		res.PlusDI.set(i, pdi)
		res.MinusDI.set(i, mdi)
		if sum := pdi + mdi; sum > 0 {
			dx[i] = 100 * math.Abs(pdi-mdi) / sum
		}
	}

	first := 2*period - 1
	adx := Mean(dx[period : first+1])
	res.ADX.set(first, adx)
	for i := first + 1; i < n; i++ {
		adx = (adx*(p-1) + dx[i]) / p
		res.ADX.set(i, adx)
	}
	return res, nil
}

// HistoricalVolatility returns the annualised stddev of log returns over each trailing window
func HistoricalVolatility(values []float64, period int) (Series, error) {
	if period <= 1 || len(values) < period+1 {
		return nil, insufficient("historical volatility", len(values), period+1)
	}
	returns := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 && values[i] > 0 {
			returns[i] = math.Log(values[i] / values[i-1])
		}
	}
	out := newSeries(len(values))
	for i := period; i < len(values); i++ {
		out.set(i, StdDev(returns[i-period+1:i+1])*math.Sqrt(252))
	}
	return out, nil
}

// PercentRank returns where the last defined value sits within the defined range of s, 0-100
func PercentRank(s Series) (float64, bool) {
	values := s.Defined()
	if len(values) < 2 {
		return 0, false
	}
	last := values[len(values)-1]
	lo, hi := last, last
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return 50, true
	}
	return (last - lo) / (hi - lo) * 100, true
}

// ReturnVolatility is the stddev of the last lookback simple returns, in percent
func ReturnVolatility(values []float64, lookback int) float64 {
	if len(values) < 2 {
		return 0
	}
	if lookback+1 > len(values) {
		lookback = len(values) - 1
	}
	returns := make([]float64, 0, lookback)
	for i := len(values) - lookback; i < len(values); i++ {
		if values[i-1] > 0 {
			returns = append(returns, (values[i]-values[i-1])/values[i-1]*100)
		}
	}
	return StdDev(returns)
}

// Momentum is the percent change over the last lookback bars
func Momentum(values []float64, lookback int) float64 {
	if len(values) < 2 {
		return 0
	}
	if lookback >= len(values) {
		lookback = len(values) - 1
	}
	base := values[len(values)-1-lookback]
	if base == 0 {
		return 0
	}
	return (values[len(values)-1] - base) / base * 100
}
