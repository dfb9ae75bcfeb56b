package indicators

// BandsResult holds Bollinger band series
type BandsResult struct {
	Upper  Series
	Middle Series
	Lower  Series
}

// BollingerBands calculates middle = SMA(period), upper/lower = middle ± k·stddev
func BollingerBands(values []float64, period int, k float64) (*BandsResult, error) {
	middle, err := SMA(values, period)
	if err != nil {
		return nil, err
	}
	upper := newSeries(len(values))
	lower := newSeries(len(values))
	for i := period - 1; i < len(values); i++ {
		mid, _ := middle.At(i)
		sd := StdDev(values[i-period+1 : i+1])
		upper.set(i, mid+k*sd)
		lower.set(i, mid-k*sd)
	}
	return &BandsResult{Upper: upper, Middle: middle, Lower: lower}, nil
}
