package indicators

// MACDResult holds the MACD line, its signal line and the histogram
type MACDResult struct {
	MACD      Series
	Signal    Series
	Histogram Series
}

// MACD calculates MACD(fast, slow, signal)
func MACD(values []float64, fast, slow, signal int) (*MACDResult, error) {
	if fast >= slow {
		fast, slow = slow, fast
	}
	if len(values) < slow+signal-1 {
		return nil, insufficient("MACD", len(values), slow+signal-1)
	}
	fastEMA, err := EMA(values, fast)
	if err != nil {
		return nil, err
	}
	slowEMA, err := EMA(values, slow)
	if err != nil {
		return nil, err
	}

	line := newSeries(len(values))
	for i := range values {
		f, fok := fastEMA.At(i)
		s, sok := slowEMA.At(i)
		if fok && sok {
			line.set(i, f-s)
		}
	}
	sig, err := emaOf(line, signal)
	if err != nil {
		return nil, err
	}
	hist := newSeries(len(values))
	for i := range values {
		m, mok := line.At(i)
		s, sok := sig.At(i)
		if mok && sok {
			hist.set(i, m-s)
		}
	}
	return &MACDResult{MACD: line, Signal: sig, Histogram: hist}, nil
}
