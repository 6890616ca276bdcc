// Package agent defines the contracts that off-policy agents and
// their pluggable strategies satisfy.
package agent

import (
	"github.com/Souphis/yadrl/replay"
)

// Agent is the complete lifecycle of a learning agent.
//
// An Agent is composed of a Learner, which updates network weights
// from stored experience, and a Policy, which chooses actions in each
// state.
type Agent interface {
	Learner
	Policy
}

// Learner implements a learning algorithm that defines how weights are
// updated from observed transitions.
type Learner interface {
	// Observe records one environment transition
	Observe(state, action []float64, reward float64, nextState []float64,
		done bool) error

	// Update performs a single learning update
	Update() error

	// EndEpisode performs cleanup at the end of an episode
	EndEpisode()
}

// Policy determines how an agent selects actions. When explore is
// false the greedy or mean action is returned.
type Policy interface {
	SelectAction(state []float64, explore bool) ([]float64, error)
}

// CriticUpdater performs one gradient step on the value networks for
// a sampled batch. The effective discount is the bootstrap multiplier
// gamma^n already raised to the n-step horizon; implementations
// multiply it by the batch masks. The returned value is the critic
// loss.
type CriticUpdater interface {
	UpdateCritic(batch replay.Batch, effectiveDiscount float64) (float64,
		error)
}

// ActorUpdater performs one gradient step on the policy network for a
// sampled batch. The returned value is the actor loss.
type ActorUpdater interface {
	UpdateActor(batch replay.Batch) (float64, error)
}

// StochasticPolicy samples actions together with their log densities
// for a batch of states. It is the seam through which
// entropy-regularized agents query their reparameterized policies.
type StochasticPolicy interface {
	// SampleWithLogProb returns one action row and one log density
	// per state row in states
	SampleWithLogProb(states []float64, batchSize int) (actions,
		logProbs []float64, err error)

	// Mean returns the deterministic mean action for every state row
	Mean(states []float64, batchSize int) ([]float64, error)
}
