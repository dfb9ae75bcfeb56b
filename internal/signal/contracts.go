package signal

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/options"
)

// StrikePreference chooses moneyness
type StrikePreference string

const (
	StrikeATM StrikePreference = "ATM"
	StrikeOTM StrikePreference = "OTM"
	StrikeITM StrikePreference = "ITM"
)

// ContractConfig drives expiration and strike selection
type ContractConfig struct {
	MinDTE           int
	MaxDTE           int
	StrikePreference StrikePreference
	OTMStrikeOffset  int
}

// ErrNoContract is returned when the chain has nothing usable
var ErrNoContract = errors.New("no suitable option contract")

// SelectExpiration returns the expiration with positive DTE closest to the middle of [MinDTE, MaxDTE]
func SelectExpiration(chain *broker.OptionsChain, cfg ContractConfig, now time.Time) (broker.Expiration, error) {
	if chain == nil || len(chain.Expirations) == 0 {
		return broker.Expiration{}, fmt.Errorf("%w: empty chain", ErrNoContract)
	}
	target := float64(cfg.MinDTE+cfg.MaxDTE) / 2

	best := -1
	bestDist := math.MaxFloat64
	for i, exp := range chain.Expirations {
		dte := exp.DTE(now)
		if dte <= 0 || len(exp.Strikes) == 0 {
			continue
		}
		if d := math.Abs(float64(dte) - target); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return broker.Expiration{}, fmt.Errorf("%w: no future expirations", ErrNoContract)
	}
	return chain.Expirations[best], nil
}

// SelectStrike applies the strike preference to a strike list
func SelectStrike(strikes []float64, spot float64, typ options.Type, pref StrikePreference, otmOffset int) (float64, error) {
	if len(strikes) == 0 {
		return 0, fmt.Errorf("%w: no strikes", ErrNoContract)
	}
	sorted := append([]float64(nil), strikes...)
	sort.Float64s(sorted)

	atm := sorted[0]
	for _, k := range sorted {
		if math.Abs(k-spot) < math.Abs(atm-spot) {
			atm = k
		}
	}

	// OTM strikes ordered nearest first: calls above spot, puts below
	var otm, itm []float64
	for _, k := range sorted {
		above := k > spot
		below := k < spot
		if (typ == options.Call && above) || (typ == options.Put && below) {
			otm = append(otm, k)
		} else if (typ == options.Call && below) || (typ == options.Put && above) {
			itm = append(itm, k)
		}
	}
	if typ == options.Put {
		reverse(otm)
	} else {
		reverse(itm)
	}

	switch StrikePreference(strings.ToUpper(string(pref))) {
	case StrikeOTM:
		if len(otm) == 0 {
			return atm, nil
		}
		n := otmOffset
		if n < 1 {
			n = 1
		}
		if n > len(otm) {
			return otm[len(otm)-1], nil
		}
		return otm[n-1], nil
	case StrikeITM:
		if len(itm) == 0 {
			return atm, nil
		}
		return itm[0], nil
	}
	return atm, nil
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// SelectContract picks expiration then strike from a chain
func SelectContract(chain *broker.OptionsChain, spot float64, typ options.Type, cfg ContractConfig, now time.Time) (options.Contract, int, error) {
	exp, err := SelectExpiration(chain, cfg, now)
	if err != nil {
		return options.Contract{}, 0, err
	}
	strike, err := SelectStrike(exp.Strikes, spot, typ, cfg.StrikePreference, cfg.OTMStrikeOffset)
	if err != nil {
		return options.Contract{}, 0, err
	}
	return options.Contract{
		Underlying: chain.Underlying,
		Expiration: exp.Date,
		Strike:     strike,
		Type:       typ,
	}, exp.DTE(now), nil
}
