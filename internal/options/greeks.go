package options

import (
	"math"
)

// Greeks are approximate Black-Scholes sensitivities. Theta is per
// calendar day, vega and rho per one percentage point.
type Greeks struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// Inputs to the estimator; Volatility and Rate are annualised decimals
type Inputs struct {
	Spot       float64
	Strike     float64
	DTE        int
	Volatility float64
	Rate       float64
	Type       Type
}

// DefaultRiskFreeRate is used when no rate is supplied
const DefaultRiskFreeRate = 0.045

// Estimate returns Black-Scholes price and Greeks for a European option.
// Degenerate inputs collapse to intrinsic value.
func Estimate(in Inputs) Greeks {
	if in.Spot <= 0 || in.Strike <= 0 {
		return Greeks{}
	}
	t := float64(in.DTE) / 365
	if t <= 0 || in.Volatility <= 0 {
		return intrinsic(in)
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(in.Spot/in.Strike) + (in.Rate+in.Volatility*in.Volatility/2)*t) / (in.Volatility * sqrtT)
	d2 := d1 - in.Volatility*sqrtT
	discount := math.Exp(-in.Rate * t)
	pdf := normPDF(d1)

	g := Greeks{
		Gamma: pdf / (in.Spot * in.Volatility * sqrtT),
		Vega:  in.Spot * pdf * sqrtT / 100,
	}
	common := -in.Spot * pdf * in.Volatility / (2 * sqrtT)
	if in.Type == Put {
		g.Price = in.Strike*discount*normCDF(-d2) - in.Spot*normCDF(-d1)
		g.Delta = normCDF(d1) - 1
		g.Theta = (common + in.Rate*in.Strike*discount*normCDF(-d2)) / 365
		g.Rho = -in.Strike * t * discount * normCDF(-d2) / 100
	} else {
		g.Price = in.Spot*normCDF(d1) - in.Strike*discount*normCDF(d2)
		g.Delta = normCDF(d1)
		g.Theta = (common - in.Rate*in.Strike*discount*normCDF(d2)) / 365
		g.Rho = in.Strike * t * discount * normCDF(d2) / 100
	}
	return g
}

func intrinsic(in Inputs) Greeks {
	if in.Type == Put {
		if in.Strike > in.Spot {
			return Greeks{Price: in.Strike - in.Spot, Delta: -1}
		}
		return Greeks{}
	}
	if in.Spot > in.Strike {
		return Greeks{Price: in.Spot - in.Strike, Delta: 1}
	}
	return Greeks{}
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
