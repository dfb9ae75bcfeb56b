package indicators

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"equities-trading-bot/internal/broker"
)

func makeBars(closes []float64) []broker.Bar {
	bars := make([]broker.Bar, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = broker.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	s, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := s.At(1); ok {
		t.Error("Expected index 1 to be undefined")
	}
	want := map[int]float64{2: 2, 3: 3, 4: 4}
	for i, w := range want {
		got, ok := s.At(i)
		if !ok || !approx(got, w) {
			t.Errorf("SMA[%d]: expected %.2f, got %.2f (ok=%v)", i, w, got, ok)
		}
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	s, err := EMA([]float64{2, 4, 6, 8}, 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	seed, _ := s.At(2)
	if !approx(seed, 4) {
		t.Errorf("Expected seed 4, got %.4f", seed)
	}
	last, _ := s.Last()
	// k = 0.5: (8-4)*0.5+4
	if !approx(last, 6) {
		t.Errorf("Expected 6, got %.4f", last)
	}
}

func TestInsufficientData(t *testing.T) {
	short := []float64{1, 2, 3}
	if _, err := SMA(short, 20); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("SMA: expected ErrInsufficientData, got %v", err)
	}
	if _, err := RSI(short, 14); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("RSI: expected ErrInsufficientData, got %v", err)
	}
	if _, err := MACD(short, 12, 26, 9); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("MACD: expected ErrInsufficientData, got %v", err)
	}
	if _, err := ATR(makeBars(short), 14); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("ATR: expected ErrInsufficientData, got %v", err)
	}
	if _, err := ADX(makeBars(short), 14); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("ADX: expected ErrInsufficientData, got %v", err)
	}
}

func TestRSIBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		values := make([]float64, 100)
		price := 100.0
		for i := range values {
			price *= 1 + (rng.Float64()-0.5)*0.1
			values[i] = price
		}
		s, err := RSI(values, 14)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		for i, v := range s {
			if !v.OK {
				if i >= 14 {
					t.Errorf("Expected RSI defined at %d", i)
				}
				continue
			}
			if math.IsNaN(v.V) || v.V < 0 || v.V > 100 {
				t.Fatalf("RSI[%d] out of bounds: %f", i, v.V)
			}
		}
	}
}

func TestRSIFlatAndRising(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"flat series has no losses", linear(30, 50, 0), 100},
		{"monotonic rise", linear(30, 50, 1), 100},
	}
	for _, tt := range tests {
		s, err := RSI(tt.values, 14)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		got, ok := s.Last()
		if !ok || got != tt.want {
			t.Errorf("%s: expected %.1f, got %.4f", tt.name, tt.want, got)
		}
	}

	s, _ := RSI(linear(30, 80, -1), 14)
	if got, _ := s.Last(); got != 0 {
		t.Errorf("Monotonic fall: expected 0, got %.4f", got)
	}
}

func TestMACDAlignment(t *testing.T) {
	values := linear(60, 100, 0.5)
	m, err := MACD(values, 12, 26, 9)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := m.MACD.At(24); ok {
		t.Error("Expected MACD undefined before slow period")
	}
	if _, ok := m.MACD.At(25); !ok {
		t.Error("Expected MACD defined at slow period")
	}
	if _, ok := m.Signal.At(32); ok {
		t.Error("Expected signal undefined before 26+9-1")
	}
	if _, ok := m.Signal.At(33); !ok {
		t.Error("Expected signal defined at 26+9-2")
	}
	line, _ := m.MACD.Last()
	sig, _ := m.Signal.Last()
	hist, _ := m.Histogram.Last()
	if !approx(hist, line-sig) {
		t.Errorf("Expected histogram %.6f, got %.6f", line-sig, hist)
	}
	if line <= 0 {
		t.Errorf("Expected positive MACD on an uptrend, got %.4f", line)
	}
}

func TestBollingerBandsSymmetric(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	b, err := BollingerBands(values, 20, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	mid, _ := b.Middle.Last()
	up, _ := b.Upper.Last()
	lo, _ := b.Lower.Last()
	if !approx(mid, 10.5) {
		t.Errorf("Expected middle 10.5, got %.4f", mid)
	}
	if !approx(up-mid, mid-lo) {
		t.Errorf("Expected symmetric bands, got %.4f / %.4f", up-mid, mid-lo)
	}
	if !approx(up-mid, 2*StdDev(values)) {
		t.Errorf("Expected width 2σ, got %.4f", up-mid)
	}
}

func TestATRConstantRange(t *testing.T) {
	bars := make([]broker.Bar, 30)
	for i := range bars {
		bars[i] = broker.Bar{Open: 100, High: 102, Low: 98, Close: 100}
	}
	s, err := ATR(bars, 14)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := s.At(13); ok {
		t.Error("Expected ATR undefined before period")
	}
	got, _ := s.Last()
	if !approx(got, 4) {
		t.Errorf("Expected ATR 4, got %.4f", got)
	}
}

func TestADXStrongTrend(t *testing.T) {
	bars := makeBars(linear(60, 100, 2))
	a, err := ADX(bars, 14)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	adx, ok := a.ADX.Last()
	if !ok {
		t.Fatal("Expected ADX defined")
	}
	if adx <= 25 || adx > 100 {
		t.Errorf("Expected strong trend ADX in (25,100], got %.2f", adx)
	}
	pdi, _ := a.PlusDI.Last()
	mdi, _ := a.MinusDI.Last()
	if pdi <= mdi {
		t.Errorf("Expected +DI > -DI on an uptrend, got %.2f <= %.2f", pdi, mdi)
	}
	if _, ok := a.ADX.At(26); ok {
		t.Error("Expected ADX undefined before 2*period-1")
	}
}

func TestCrossDetectorsExclusive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := make([]float64, 400)
	price := 100.0
	for i := range values {
		price *= 1 + (rng.Float64()-0.5)*0.06
		values[i] = price
	}
	fast, _ := SMA(values, 50)
	slow, _ := SMA(values, 200)

	golden := 0
	for i := range values {
		g := IsGoldenCross(fast, slow, i)
		d := IsDeathCross(fast, slow, i)
		if g && d {
			t.Fatalf("Golden and death cross both true at %d", i)
		}
		if g {
			golden++
		}
		// symmetric: swapping the inputs swaps the detectors
		if g != IsDeathCross(slow, fast, i) {
			t.Errorf("Expected symmetric detectors at %d", i)
		}
	}
	_ = golden
}

func TestGoldenCrossDetected(t *testing.T) {
	fast := Series{{V: 9, OK: true}, {V: 11, OK: true}}
	slow := Series{{V: 10, OK: true}, {V: 10, OK: true}}
	if !IsGoldenCross(fast, slow, 1) {
		t.Error("Expected golden cross")
	}
	if IsDeathCross(fast, slow, 1) {
		t.Error("Expected no death cross")
	}
	if IsGoldenCross(fast, slow, 0) {
		t.Error("Expected no cross at first index")
	}
}

func TestComputeSet(t *testing.T) {
	set := Compute(makeBars(linear(60, 100, 0.5)))
	for _, key := range []string{KeyRSI, KeySMA20, KeySMA50, KeyEMA12, KeyEMA26, KeyMACD, KeyMACDSignal, KeyBBUpper, KeyATR, KeyADX, KeyVolumeSMA20} {
		if _, ok := set.Get(key); !ok {
			t.Errorf("Expected %s defined", key)
		}
	}
	if _, ok := set.Get(KeySMA200); ok {
		t.Error("Expected SMA_200 undefined with 60 bars")
	}
}

func TestSeriesAllRestartable(t *testing.T) {
	s, _ := SMA([]float64{1, 2, 3, 4}, 2)
	count := func() int {
		n := 0
		for range s.All() {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != 3 || b != 3 {
		t.Errorf("Expected 3 defined values on each walk, got %d and %d", a, b)
	}
}
