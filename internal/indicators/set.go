package indicators

import (
	"equities-trading-bot/internal/broker"
)

// Indicator names used in a Set
const (
	KeyRSI         = "RSI"
	KeySMA20       = "SMA_20"
	KeySMA50       = "SMA_50"
	KeySMA200      = "SMA_200"
	KeyEMA12       = "EMA_12"
	KeyEMA26       = "EMA_26"
	KeyMACD        = "MACD"
	KeyMACDSignal  = "MACD_SIGNAL"
	KeyMACDHist    = "MACD_HIST"
	KeyBBUpper     = "BB_UPPER"
	KeyBBMiddle    = "BB_MIDDLE"
	KeyBBLower     = "BB_LOWER"
	KeyATR         = "ATR"
	KeyADX         = "ADX"
	KeyPlusDI      = "PLUS_DI"
	KeyMinusDI     = "MINUS_DI"
	KeyVolumeSMA20 = "VOLUME_SMA_20"
)

// Standard periods
const (
	RSIPeriod       = 14
	ATRPeriod       = 14
	ADXPeriod       = 14
	BollingerPeriod = 20
	BollingerK      = 2.0
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
)

// Set maps indicator names to their latest value; names with
// insufficient history are absent.
type Set map[string]float64

// Get returns the value and whether it is defined
func (s Set) Get(name string) (float64, bool) {
	v, ok := s[name]
	return v, ok
}

// Compute calculates the latest value of every standard indicator
func Compute(bars []broker.Bar) Set {
	set := make(Set)
	closes := Closes(bars)

	put := func(name string, s Series, err error) {
		if err != nil {
			return
		}
		if v, ok := s.Last(); ok {
			set[name] = v
		}
	}

	s, err := RSI(closes, RSIPeriod)
	put(KeyRSI, s, err)
	s, err = SMA(closes, 20)
	put(KeySMA20, s, err)
	s, err = SMA(closes, 50)
	put(KeySMA50, s, err)
	s, err = SMA(closes, 200)
	put(KeySMA200, s, err)
	s, err = EMA(closes, 12)
	put(KeyEMA12, s, err)
	s, err = EMA(closes, 26)
	put(KeyEMA26, s, err)
	s, err = SMA(Volumes(bars), 20)
	put(KeyVolumeSMA20, s, err)
	s, err = ATR(bars, ATRPeriod)
	put(KeyATR, s, err)

	if m, err := MACD(closes, MACDFast, MACDSlow, MACDSignal); err == nil {
		put(KeyMACD, m.MACD, nil)
		put(KeyMACDSignal, m.Signal, nil)
		put(KeyMACDHist, m.Histogram, nil)
	}
	if b, err := BollingerBands(closes, BollingerPeriod, BollingerK); err == nil {
		put(KeyBBUpper, b.Upper, nil)
		put(KeyBBMiddle, b.Middle, nil)
		put(KeyBBLower, b.Lower, nil)
	}
	if a, err := ADX(bars, ADXPeriod); err == nil {
		put(KeyADX, a.ADX, nil)
		put(KeyPlusDI, a.PlusDI, nil)
		put(KeyMinusDI, a.MinusDI, nil)
	}
	return set
}
