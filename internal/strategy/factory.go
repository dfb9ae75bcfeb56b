package strategy

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Registered lists every evaluator in registration order
var Registered = []string{NameMeanReversion, NameMomentumBreakout, NameMACrossover, NameIronCondor}

// New creates an evaluator with default parameters
func New(name string) (Evaluator, error) {
	switch name {
	case NameMeanReversion:
		return NewMeanReversion(DefaultMeanReversionConfig()), nil
	case NameMomentumBreakout:
		return NewMomentumBreakout(DefaultMomentumBreakoutConfig()), nil
	case NameMACrossover:
		return NewMACrossover(DefaultMACrossoverConfig()), nil
	case NameIronCondor:
		return NewIronCondor(DefaultIronCondorConfig()), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// NewDefaultManager registers every evaluator, activates the named subset
// (all when empty) and ranks ties by priority when given
func NewDefaultManager(logger zerolog.Logger, active, priority []string) (*Manager, error) {
	var rank RankFunc
	if len(priority) > 0 {
		rank = PriorityRanking(priority)
	}
	m := NewManager(logger, rank)
	for _, name := range Registered {
		e, err := New(name)
		if err != nil {
			return nil, err
		}
		m.Register(e)
	}
	if len(active) > 0 {
		if err := m.SetActive(active); err != nil {
			return nil, err
		}
	}
	return m, nil
}
