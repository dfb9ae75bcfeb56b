package options

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type is call or put
type Type string

const (
	Call Type = "call"
	Put  Type = "put"
)

// Contract identifies one listed option
type Contract struct {
	Underlying string    `json:"underlying"`
	Expiration time.Time `json:"expiration"`
	Strike     float64   `json:"strike"`
	Type       Type      `json:"type"`
}

// Symbol formats the contract as an OCC symbol without padding, e.g. AAPL240621C00190000
func (c Contract) Symbol() string {
	cp := "C"
	if c.Type == Put {
		cp = "P"
	}
	strike := int64(c.Strike*1000 + 0.5)
	return fmt.Sprintf("%s%s%s%08d", strings.ToUpper(c.Underlying), c.Expiration.Format("060102"), cp, strike)
}

// ParseSymbol decodes an OCC option symbol
func ParseSymbol(symbol string) (Contract, error) {
	s := strings.ReplaceAll(strings.ToUpper(symbol), " ", "")
	if len(s) < 16 {
		return Contract{}, fmt.Errorf("invalid option symbol %q", symbol)
	}
	tail := s[len(s)-15:]
	underlying := s[:len(s)-15]
	exp, err := time.Parse("060102", tail[:6])
	if err != nil {
		return Contract{}, fmt.Errorf("invalid option expiration in %q: %w", symbol, err)
	}
	var typ Type
	switch tail[6] {
	case 'C':
		typ = Call
	case 'P':
		typ = Put
	default:
		return Contract{}, fmt.Errorf("invalid option type in %q", symbol)
	}
	strike, err := strconv.ParseInt(tail[7:], 10, 64)
	if err != nil {
		return Contract{}, fmt.Errorf("invalid option strike in %q: %w", symbol, err)
	}
	return Contract{
		Underlying: underlying,
		Expiration: exp,
		Strike:     float64(strike) / 1000,
		Type:       typ,
	}, nil
}

// IsOptionSymbol reports whether symbol parses as an OCC symbol
func IsOptionSymbol(symbol string) bool {
	_, err := ParseSymbol(symbol)
	return err == nil
}
