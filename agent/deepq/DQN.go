// Package deepq implements the DQN and double DQN agents for discrete
// action spaces.
package deepq

import (
	"fmt"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/agent/offpolicy"
	"github.com/Souphis/yadrl/exploration"
	"github.com/Souphis/yadrl/network"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/target"
	"github.com/Souphis/yadrl/utils/floatutils"
)

// DQN learns discrete action values with a deep Q network and
// epsilon-greedy exploration. With DoubleQ enabled, the online network
// selects the next action and the target network evaluates it.
type DQN struct {
	loop    *offpolicy.Loop
	trainer *network.QTrainer

	behaviour    *network.Runner
	onlineEval   *network.Runner
	targetRunner *network.Runner

	epsilon    exploration.Schedule
	rng        *rand.Rand
	numActions int
	doubleQ    bool
}

// New creates and returns a new DQN agent.
func New(config Config) (*DQN, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	g := G.NewGraph()
	trainNet, err := network.NewMLP(config.StateDim, config.BatchSize,
		config.NumActions, g, config.HiddenSizes, config.Biases,
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

	var onlineEval *network.Runner
	if config.DoubleQ {
		onlineEvalNet, err := trainNet.CloneWithBatch(config.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("new: could not create evaluation "+
				"network: %v", err)
		}
		onlineEval = network.NewRunner(onlineEvalNet)
	}

	trainer, err := network.NewQTrainer(trainNet, config.Solver)
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

	dqn := &DQN{
		trainer:      trainer,
		behaviour:    network.NewRunner(behaviourNet),
		onlineEval:   onlineEval,
		targetRunner: network.NewRunner(targetNet),
		epsilon:      config.Epsilon,
		rng:          rand.New(rand.NewSource(config.Seed)),
		numActions:   config.NumActions,
		doubleQ:      config.DoubleQ,
	}

	dqn.loop, err = offpolicy.New(memory, rollout, dqn, nil, nil,
		[]*target.Synchronizer{sync}, offpolicy.Config{
			BatchSize:             config.BatchSize,
			WarmUp:                config.WarmUp,
			PolicyUpdateFrequency: 1,
			Discount:              config.Discount,
		})
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return dqn, nil
}

// SelectAction returns an action for state. With explore set, the
// epsilon schedule advances and with probability epsilon a uniformly
// random action replaces the greedy one.
func (d *DQN) SelectAction(state []float64, explore bool) ([]float64,
	error) {
	if explore {
		epsilon := d.epsilon.Value()
		d.epsilon.Step()
		if d.rng.Float64() < epsilon {
			return []float64{float64(d.rng.Intn(d.numActions))}, nil
		}
	}

	values, err := d.behaviour.Predict(state)
	if err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}
	return []float64{float64(floatutils.ArgMax(values))}, nil
}

// Observe records one environment transition.
func (d *DQN) Observe(state, action []float64, reward float64,
	nextState []float64, done bool) error {
	return d.loop.Observe(replay.NewTransition(state, action, reward,
		nextState, done))
}

// Update performs a single learning update.
func (d *DQN) Update() error {
	return d.loop.Update()
}

// EndEpisode performs cleanup at the end of an episode.
func (d *DQN) EndEpisode() {}

// UpdateCritic performs one Q-learning gradient step on a sampled
// batch. It is called by the off-policy loop.
func (d *DQN) UpdateCritic(batch replay.Batch,
	effectiveDiscount float64) (float64, error) {
	nextValues, err := d.targetRunner.Predict(batch.NextStates)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}

	var onlineNext []float64
	if d.doubleQ {
		if err := d.onlineEval.Net().Set(d.trainer.Net()); err != nil {
			return 0, fmt.Errorf("updatecritic: %v", err)
		}
		onlineNext, err = d.onlineEval.Predict(batch.NextStates)
		if err != nil {
			return 0, fmt.Errorf("updatecritic: %v", err)
		}
	}

	targets := make([]float64, batch.Size())
	oneHot := make([]float64, batch.Size()*d.numActions)
	for i := 0; i < batch.Size(); i++ {
		row := nextValues[i*d.numActions : (i+1)*d.numActions]
		next := i * d.numActions
		if d.doubleQ {
			next += floatutils.ArgMax(
				onlineNext[i*d.numActions : (i+1)*d.numActions])
		} else {
			next += floatutils.ArgMax(row)
		}
		targets[i] = batch.Rewards[i] +
			batch.Masks[i]*effectiveDiscount*nextValues[next]

		action := int(batch.Actions[i])
		if action < 0 || action >= d.numActions {
			return 0, fmt.Errorf("updatecritic: stored action %v out of "+
				"range [0, %v)", action, d.numActions)
		}
		oneHot[i*d.numActions+action] = 1.0
	}

	loss, err := d.trainer.Step(batch.States, oneHot, targets)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}

	// Keep the behaviour network following the learned weights
	if err := d.behaviour.Net().Set(d.trainer.Net()); err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}
	return loss, nil
}

// Epsilon returns the current exploration rate.
func (d *DQN) Epsilon() float64 {
	return d.epsilon.Value()
}

// Memory returns the agent's replay memory.
func (d *DQN) Memory() *replay.Memory {
	return d.loop.Memory()
}
