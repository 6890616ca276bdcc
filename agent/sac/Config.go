package sac

import (
	"fmt"

	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/network"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/solver"
)

// Config describes a SAC agent.
type Config struct {
	// StateDim and ActionDim describe the environment interface
	StateDim  int
	ActionDim int

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

	// Alpha is the entropy temperature weighting the policy's log
	// density in the bootstrapped target
	Alpha float64

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
	if c.InitWFn == nil {
		return fmt.Errorf("config: no weight initializer given")
	}
	if c.CriticSolvers[0] == nil || c.CriticSolvers[1] == nil {
		return fmt.Errorf("config: both critic solvers are required")
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
	if c.Alpha < 0 {
		return fmt.Errorf("config: alpha must be non-negative, got %v",
			c.Alpha)
	}
	return nil
}
