package strategy

import (
	"math"

	"github.com/rs/zerolog"
)

func zeroLogger() zerolog.Logger { return zerolog.Nop() }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
