package quantile

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r1"
	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/exploration"
	"github.com/Souphis/yadrl/network"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/solver"
)

// Config describes a quantile-regression DDPG agent.
type Config struct {
	// StateDim and ActionDim describe the environment interface;
	// ActionBounds holds one closed interval per action dimension
	StateDim     int
	ActionDim    int
	ActionBounds []r1.Interval

	// Actor architecture. The actor output layer applies a tanh.
	ActorHiddenSizes []int
	ActorBiases      []bool
	ActorActivations []*network.Activation
	ActorSolver      *solver.Solver

	// Critic architecture. The critic takes state-action rows and
	// outputs Quantiles values of the return distribution.
	CriticHiddenSizes []int
	CriticBiases      []bool
	CriticActivations []*network.Activation
	CriticSolver      *solver.Solver

	// Quantiles is the number of return quantiles the critic predicts;
	// Kappa is the Huber loss threshold
	Quantiles int
	Kappa     float64

	InitWFn G.InitWFn

	// Replay memory
	MemoryCapacity int
	Combined       bool
	Backend        replay.Backend

	// Training schedule
	BatchSize int
	WarmUp    int
	Discount  float64
	NStep     int

	// Tau is the soft target update rate
	Tau float64

	// Noise perturbs actions during exploration
	Noise exploration.Noise

	Seed uint64
}

// Validate returns an error describing an invalid configuration.
func (c Config) Validate() error {
	if c.StateDim < 1 {
		return fmt.Errorf("config: state dim must be >= 1, got %v",
			c.StateDim)
	}
	if c.ActionDim < 1 {
		return fmt.Errorf("config: action dim must be >= 1, got %v",
			c.ActionDim)
	}
	if len(c.ActionBounds) != c.ActionDim {
		return fmt.Errorf("config: invalid action bounds \n\twant(%v)"+
			"\n\thave(%v)", c.ActionDim, len(c.ActionBounds))
	}
	for i, bound := range c.ActionBounds {
		if bound.Max <= bound.Min {
			return fmt.Errorf("config: action bound %v is empty: [%v, %v]",
				i, bound.Min, bound.Max)
		}
	}
	if c.Quantiles < 2 {
		return fmt.Errorf("config: need at least 2 quantiles, got %v",
			c.Quantiles)
	}
	if c.Kappa <= 0 {
		return fmt.Errorf("config: kappa must be > 0, got %v", c.Kappa)
	}
	if c.InitWFn == nil {
		return fmt.Errorf("config: no weight initializer given")
	}
	if c.ActorSolver == nil || c.CriticSolver == nil {
		return fmt.Errorf("config: actor and critic solvers are required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch size must be >= 1, got %v",
			c.BatchSize)
	}
	if c.NStep < 1 {
		return fmt.Errorf("config: n-step horizon must be >= 1, got %v",
			c.NStep)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("config: tau must be in (0, 1], got %v", c.Tau)
	}
	if c.Noise == nil {
		return fmt.Errorf("config: no exploration noise given")
	}
	return nil
}
