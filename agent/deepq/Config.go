package deepq

import (
	"fmt"

	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/exploration"
	"github.com/Souphis/yadrl/network"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/solver"
)

// Config describes a DQN agent.
type Config struct {
	// StateDim and NumActions describe the environment interface
	StateDim   int
	NumActions int

	// Network architecture
	HiddenSizes []int
	Biases      []bool
	Activations []*network.Activation
	InitWFn     G.InitWFn
	Solver      *solver.Solver

	// Replay memory
	MemoryCapacity int
	Combined       bool
	Backend        replay.Backend

	// Training schedule
	BatchSize int
	WarmUp    int
	Discount  float64
	NStep     int

	// Target synchronization. Tau > 0 selects soft updates on every
	// training step; otherwise TargetUpdatePeriod selects hard copies.
	Tau                float64
	TargetUpdatePeriod int

	// DoubleQ decouples next-action selection (online network) from
	// evaluation (target network)
	DoubleQ bool

	// Epsilon drives epsilon-greedy exploration
	Epsilon exploration.Schedule

	Seed uint64
}

// Validate returns an error describing an invalid configuration.
func (c Config) Validate() error {
	if c.StateDim < 1 {
		return fmt.Errorf("config: state dim must be >= 1, got %v",
			c.StateDim)
	}
	if c.NumActions < 2 {
		return fmt.Errorf("config: need at least 2 actions, got %v",
			c.NumActions)
	}
	if c.InitWFn == nil {
		return fmt.Errorf("config: no weight initializer given")
	}
	if c.Solver == nil {
		return fmt.Errorf("config: no solver given")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch size must be >= 1, got %v",
			c.BatchSize)
	}
	if c.NStep < 1 {
		return fmt.Errorf("config: n-step horizon must be >= 1, got %v",
			c.NStep)
	}
	if c.Tau > 1 {
		return fmt.Errorf("config: tau must be in (0, 1], got %v", c.Tau)
	}
	if c.Tau <= 0 && c.TargetUpdatePeriod < 1 {
		return fmt.Errorf("config: need either tau > 0 or a target update " +
			"period >= 1")
	}
	if c.Epsilon == nil {
		return fmt.Errorf("config: no epsilon schedule given")
	}
	return nil
}
