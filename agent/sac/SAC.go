// Package sac implements the soft actor-critic agent: twin critics
// with an entropy-regularized min-target over a stochastic policy.
// The policy itself and its update rule are injected collaborators,
// so any reparameterized policy satisfying the StochasticPolicy
// contract can be trained.
package sac

import (
	"fmt"
	"math"
	"sync/atomic"

	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/agent"
	"github.com/Souphis/yadrl/agent/offpolicy"
	"github.com/Souphis/yadrl/network"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/target"
	"github.com/Souphis/yadrl/utils/floatutils"
)

// SAC learns twin Q critics against entropy-regularized targets
//
//	y = r + mask * gamma^n * (min(Q1', Q2')(s', a') - alpha*logpi(a'|s'))
//
// with a' sampled fresh from the injected stochastic policy. Actor and
// temperature updates are delegated to the injected ActorUpdater.
type SAC struct {
	loop *offpolicy.Loop

	criticTrainers [2]*network.RegressionTrainer
	targetCritics  [2]*network.Runner

	policy agent.StochasticPolicy

	alphaBits atomic.Uint64

	stateDim  int
	actionDim int
}

// New creates and returns a new SAC agent. The policy collaborator is
// required; actorUpdater may be nil, in which case the policy is
// treated as externally trained.
func New(config Config, policy agent.StochasticPolicy,
	actorUpdater agent.ActorUpdater) (*SAC, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if policy == nil {
		return nil, fmt.Errorf("new: policy cannot be nil")
	}

	syncs := []*target.Synchronizer{}
	var criticTrainers [2]*network.RegressionTrainer
	var targetCritics [2]*network.Runner
	for i := 0; i < 2; i++ {
		gCritic := G.NewGraph()
		trainCritic, err := network.NewStateActionMLP(config.StateDim,
			config.ActionDim, config.BatchSize, 1, gCritic,
			config.CriticHiddenSizes, config.CriticBiases, config.InitWFn,
			config.CriticActivations)
		if err != nil {
			return nil, fmt.Errorf("new: could not create critic %v: %v", i,
				err)
		}
		targetCriticNet, err := trainCritic.CloneWithBatch(config.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("new: could not create target critic "+
				"%v: %v", i, err)
		}

		criticTrainers[i], err = network.NewRegressionTrainer(trainCritic,
			config.CriticSolvers[i])
		if err != nil {
			return nil, fmt.Errorf("new: %v", err)
		}
		targetCritics[i] = network.NewRunner(targetCriticNet)

		criticSync, err := target.NewSoft(trainCritic, targetCriticNet,
			config.Tau)
		if err != nil {
			return nil, fmt.Errorf("new: %v", err)
		}
		syncs = append(syncs, criticSync)
	}

	memory, err := replay.New(replay.Config{
		Capacity:  config.MemoryCapacity,
		StateDim:  config.StateDim,
		ActionDim: config.ActionDim,
		Combined:  config.Combined,
		Backend:   config.Backend,
		Seed:      config.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	var rollout *replay.Rollout
	if config.NStep > 1 {
		rollout, err = replay.NewRollout(config.NStep, config.Discount,
			config.StateDim, config.ActionDim, config.Backend)
		if err != nil {
			return nil, fmt.Errorf("new: %v", err)
		}
	}

	sac := &SAC{
		criticTrainers: criticTrainers,
		targetCritics:  targetCritics,
		policy:         policy,
		stateDim:       config.StateDim,
		actionDim:      config.ActionDim,
	}
	sac.SetAlpha(config.Alpha)

	sac.loop, err = offpolicy.New(memory, rollout, sac, actorUpdater, nil,
		syncs, offpolicy.Config{
			BatchSize:             config.BatchSize,
			WarmUp:                config.WarmUp,
			PolicyUpdateFrequency: config.PolicyUpdateFrequency,
			Discount:              config.Discount,
		})
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return sac, nil
}

// SelectAction returns an action for state: a fresh policy sample when
// exploring, the policy mean otherwise.
func (s *SAC) SelectAction(state []float64, explore bool) ([]float64,
	error) {
	if explore {
		action, _, err := s.policy.SampleWithLogProb(state, 1)
		if err != nil {
			return nil, fmt.Errorf("selectaction: %v", err)
		}
		return action, nil
	}

	action, err := s.policy.Mean(state, 1)
	if err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}
	return action, nil
}

// Observe records one environment transition.
func (s *SAC) Observe(state, action []float64, reward float64,
	nextState []float64, done bool) error {
	return s.loop.Observe(replay.NewTransition(state, action, reward,
		nextState, done))
}

// Update performs a single learning update.
func (s *SAC) Update() error {
	return s.loop.Update()
}

// EndEpisode performs cleanup at the end of an episode.
func (s *SAC) EndEpisode() {}

// UpdateCritic performs one TD regression step on both critics against
// the entropy-regularized min-target. It is called by the off-policy
// loop.
func (s *SAC) UpdateCritic(batch replay.Batch,
	effectiveDiscount float64) (float64, error) {
	nextActions, logProbs, err := s.policy.SampleWithLogProb(
		batch.NextStates, batch.Size())
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}
	if len(logProbs) != batch.Size() {
		return 0, fmt.Errorf("updatecritic: invalid log density count "+
			"\n\twant(%v)\n\thave(%v)", batch.Size(), len(logProbs))
	}

	nextInputs := floatutils.ConcatRows(batch.NextStates, s.stateDim,
		nextActions, s.actionDim, batch.Size())
	nextValues1, err := s.targetCritics[0].Predict(nextInputs)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}
	nextValues2, err := s.targetCritics[1].Predict(nextInputs)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}

	alpha := s.Alpha()
	targets := make([]float64, batch.Size())
	for i := range targets {
		soft := floatutils.Min(nextValues1[i], nextValues2[i]) -
			alpha*logProbs[i]
		targets[i] = batch.Rewards[i] +
			batch.Masks[i]*effectiveDiscount*soft
	}

	inputs := floatutils.ConcatRows(batch.States, s.stateDim, batch.Actions,
		s.actionDim, batch.Size())
	loss := 0.0
	for i := range s.criticTrainers {
		criticLoss, err := s.criticTrainers[i].Step(inputs, targets)
		if err != nil {
			return 0, fmt.Errorf("updatecritic: critic %v: %v", i, err)
		}
		loss += criticLoss
	}
	return loss, nil
}

// Alpha returns the current entropy temperature.
func (s *SAC) Alpha() float64 {
	return math.Float64frombits(s.alphaBits.Load())
}

// SetAlpha sets the entropy temperature. External temperature tuners
// may call this concurrently with training.
func (s *SAC) SetAlpha(alpha float64) {
	s.alphaBits.Store(math.Float64bits(alpha))
}

// Critic returns the i-th live critic network, for use by injected
// actor updaters.
func (s *SAC) Critic(i int) network.NeuralNet {
	return s.criticTrainers[i].Net()
}

// Memory returns the agent's replay memory.
func (s *SAC) Memory() *replay.Memory {
	return s.loop.Memory()
}
