package indicators

// RSI calculates the Relative Strength Index with Wilder smoothing.
// A window with no losses yields 100.
func RSI(values []float64, period int) (Series, error) {
	if period <= 0 || len(values) < period+1 {
		return nil, insufficient("RSI", len(values), period+1)
	}
	out := newSeries(len(values))

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out.set(period, rsiFrom(avgGain, avgLoss))

	p := float64(period)
	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out.set(i, rsiFrom(avgGain, avgLoss))
	}
	return out, nil
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
