// Package categorical implements the categorical (C51) DQN agent,
// which learns a discrete probability distribution over returns for
// every action instead of a scalar action value.
package categorical

import (
	"fmt"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/agent/offpolicy"
	"github.com/Souphis/yadrl/distributional"
	"github.com/Souphis/yadrl/exploration"
	"github.com/Souphis/yadrl/network"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/target"
	"github.com/Souphis/yadrl/utils/floatutils"
)

// C51 learns categorical value distributions over a fixed atom
// support. Greedy actions maximize the distribution's expectation;
// update targets are categorical Bellman projections of the target
// network's next-state distributions.
type C51 struct {
	loop    *offpolicy.Loop
	trainer *network.CategoricalTrainer

	behaviour    *network.Runner
	targetRunner *network.Runner

	support    *distributional.Support
	epsilon    exploration.Schedule
	rng        *rand.Rand
	numActions int
	atoms      int
}

// New creates and returns a new C51 agent.
func New(config Config) (*C51, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	support, err := distributional.NewSupport(config.VMin, config.VMax,
		config.Atoms)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	g := G.NewGraph()
	trainNet, err := network.NewMLP(config.StateDim, config.BatchSize,
		config.NumActions*config.Atoms, g, config.HiddenSizes, config.Biases,
		config.InitWFn, config.Activations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create train network: %v", err)
	}

	behaviourNet, err := trainNet.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour network: %v",
			err)
	}

	targetNet, err := trainNet.CloneWithBatch(config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %v",
			err)
	}

	trainer, err := network.NewCategoricalTrainer(trainNet, config.Solver,
		config.NumActions, config.Atoms)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	var sync *target.Synchronizer
	if config.Tau > 0 {
		sync, err = target.NewSoft(trainNet, targetNet, config.Tau)
	} else {
		sync, err = target.NewHard(trainNet, targetNet,
			config.TargetUpdatePeriod)
	}
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	memory, err := replay.New(replay.Config{
		Capacity:  config.MemoryCapacity,
		StateDim:  config.StateDim,
		ActionDim: 1,
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
			config.StateDim, 1, config.Backend)
		if err != nil {
			return nil, fmt.Errorf("new: %v", err)
		}
	}

	c51 := &C51{
		trainer:      trainer,
		behaviour:    network.NewRunner(behaviourNet),
		targetRunner: network.NewRunner(targetNet),
		support:      support,
		epsilon:      config.Epsilon,
		rng:          rand.New(rand.NewSource(config.Seed)),
		numActions:   config.NumActions,
		atoms:        config.Atoms,
	}

	c51.loop, err = offpolicy.New(memory, rollout, c51, nil, nil,
		[]*target.Synchronizer{sync}, offpolicy.Config{
			BatchSize:             config.BatchSize,
			WarmUp:                config.WarmUp,
			PolicyUpdateFrequency: 1,
			Discount:              config.Discount,
		})
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return c51, nil
}

// expectations converts one row of flat per-action atom logits into
// per-action expected values, normalizing each action's atoms with a
// softmax. The normalized probabilities for each action are written
// into probs when it is non-nil.
func (c *C51) expectations(logits []float64, probs [][]float64) ([]float64,
	error) {
	values := make([]float64, c.numActions)
	for a := 0; a < c.numActions; a++ {
		atomProbs := make([]float64, c.atoms)
		copy(atomProbs, logits[a*c.atoms:(a+1)*c.atoms])
		floatutils.Softmax(atomProbs)

		expectation, err := c.support.Expectation(atomProbs)
		if err != nil {
			return nil, err
		}
		values[a] = expectation
		if probs != nil {
			probs[a] = atomProbs
		}
	}
	return values, nil
}

// SelectAction returns an action for state. With explore set, the
// epsilon schedule advances and with probability epsilon a uniformly
// random action replaces the greedy one.
func (c *C51) SelectAction(state []float64, explore bool) ([]float64,
	error) {
	if explore {
		epsilon := c.epsilon.Value()
		c.epsilon.Step()
		if c.rng.Float64() < epsilon {
			return []float64{float64(c.rng.Intn(c.numActions))}, nil
		}
	}

	logits, err := c.behaviour.Predict(state)
	if err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}
	values, err := c.expectations(logits, nil)
	if err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}
	return []float64{float64(floatutils.ArgMax(values))}, nil
}

// Observe records one environment transition.
func (c *C51) Observe(state, action []float64, reward float64,
	nextState []float64, done bool) error {
	return c.loop.Observe(replay.NewTransition(state, action, reward,
		nextState, done))
}

// Update performs a single learning update.
func (c *C51) Update() error {
	return c.loop.Update()
}

// EndEpisode performs cleanup at the end of an episode.
func (c *C51) EndEpisode() {}

// UpdateCritic performs one distributional gradient step on a sampled
// batch. It is called by the off-policy loop.
func (c *C51) UpdateCritic(batch replay.Batch,
	effectiveDiscount float64) (float64, error) {
	nextLogits, err := c.targetRunner.Predict(batch.NextStates)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}

	// Pick the greedy next action under the target network and gather
	// its atom distribution for every batch row
	nextProbs := make([]float64, batch.Size()*c.atoms)
	actions := make([]int, batch.Size())
	rowProbs := make([][]float64, c.numActions)
	for i := 0; i < batch.Size(); i++ {
		row := nextLogits[i*c.numActions*c.atoms : (i+1)*c.numActions*c.atoms]
		values, err := c.expectations(row, rowProbs)
		if err != nil {
			return 0, fmt.Errorf("updatecritic: %v", err)
		}
		best := floatutils.ArgMax(values)
		copy(nextProbs[i*c.atoms:(i+1)*c.atoms], rowProbs[best])

		action := int(batch.Actions[i])
		if action < 0 || action >= c.numActions {
			return 0, fmt.Errorf("updatecritic: stored action %v out of "+
				"range [0, %v)", action, c.numActions)
		}
		actions[i] = action
	}

	projected, err := distributional.Project(nextProbs, batch.Rewards,
		batch.Masks, effectiveDiscount, c.support)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}

	loss, err := c.trainer.Step(batch.States, actions, projected)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}

	// Keep the behaviour network following the learned weights
	if err := c.behaviour.Net().Set(c.trainer.Net()); err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}
	return loss, nil
}

// Epsilon returns the current exploration rate.
func (c *C51) Epsilon() float64 {
	return c.epsilon.Value()
}

// Memory returns the agent's replay memory.
func (c *C51) Memory() *replay.Memory {
	return c.loop.Memory()
}
