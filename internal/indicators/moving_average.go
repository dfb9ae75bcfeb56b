package indicators

// SMA calculates the simple moving average
func SMA(values []float64, period int) (Series, error) {
	if period <= 0 || len(values) < period {
		return nil, insufficient("SMA", len(values), period)
	}
	out := newSeries(len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out.set(i, sum/float64(period))
		}
	}
	return out, nil
}

// EMA calculates the exponential moving average, seeded with the SMA of the first period values
func EMA(values []float64, period int) (Series, error) {
	if period <= 0 || len(values) < period {
		return nil, insufficient("EMA", len(values), period)
	}
	out := newSeries(len(values))
	k := 2.0 / float64(period+1)

	seed := Mean(values[:period])
	out.set(period-1, seed)
	prev := seed
	for i := period; i < len(values); i++ {
		prev = (values[i]-prev)*k + prev
		out.set(i, prev)
	}
	return out, nil
}

// emaOf runs an EMA over the defined tail of s, keeping alignment with s
func emaOf(s Series, period int) (Series, error) {
	first := -1
	for i, v := range s {
		if v.OK {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, insufficient("EMA", 0, period)
	}
	tail := make([]float64, 0, len(s)-first)
	for _, v := range s[first:] {
		tail = append(tail, v.V)
	}
	inner, err := EMA(tail, period)
	if err != nil {
		return nil, err
	}
	out := newSeries(len(s))
	copy(out[first:], inner)
	return out, nil
}
