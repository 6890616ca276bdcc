package td3

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r1"
	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/exploration"
	"github.com/Souphis/yadrl/network"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/solver"
)

// Config describes a TD3 agent.
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

	// Twin critic architecture. Each critic takes state-action rows.
	CriticHiddenSizes []int
	CriticBiases      []bool
	CriticActivations []*network.Activation
	CriticSolvers     [2]*solver.Solver

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

	// PolicyUpdateFrequency delays actor and target updates to every
	// n-th critic update
	PolicyUpdateFrequency int

	// Tau is the soft target update rate
	Tau float64

	// Target policy smoothing: zero-mean Gaussian noise with standard
	// deviation TargetNoiseSigma, clipped to
	// [-TargetNoiseClip, TargetNoiseClip], is added to target actions
	TargetNoiseSigma float64
	TargetNoiseClip  float64

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
	if c.InitWFn == nil {
		return fmt.Errorf("config: no weight initializer given")
	}
	if c.ActorSolver == nil || c.CriticSolvers[0] == nil ||
		c.CriticSolvers[1] == nil {
		return fmt.Errorf("config: actor and both critic solvers are " +
			"required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch size must be >= 1, got %v",
			c.BatchSize)
	}
	if c.NStep < 1 {
		return fmt.Errorf("config: n-step horizon must be >= 1, got %v",
			c.NStep)
	}
	if c.PolicyUpdateFrequency < 1 {
		return fmt.Errorf("config: policy update frequency must be >= 1, "+
			"got %v", c.PolicyUpdateFrequency)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("config: tau must be in (0, 1], got %v", c.Tau)
	}
	if c.TargetNoiseSigma < 0 || c.TargetNoiseClip < 0 {
		return fmt.Errorf("config: target smoothing noise parameters must "+
			"be non-negative, got sigma %v clip %v", c.TargetNoiseSigma,
			c.TargetNoiseClip)
	}
	if c.Noise == nil {
		return fmt.Errorf("config: no exploration noise given")
	}
	return nil
}
