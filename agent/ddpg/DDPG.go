// Package ddpg implements the deep deterministic policy gradient
// agent for continuous action spaces.
package ddpg

import (
	"fmt"

	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/agent/offpolicy"
	"github.com/Souphis/yadrl/exploration"
	"github.com/Souphis/yadrl/network"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/target"
	"github.com/Souphis/yadrl/utils/floatutils"
	"gonum.org/v1/gonum/spatial/r1"
)

// DDPG learns a deterministic continuous policy against a single
// Q critic. Exploration adds noise-process samples to the policy
// action, clamped to the action bounds.
type DDPG struct {
	loop *offpolicy.Loop

	criticTrainer *network.RegressionTrainer
	actorTrainer  *network.ActorTrainer

	behaviourActor *network.Runner
	targetActor    *network.Runner
	targetCritic   *network.Runner

	noise  exploration.Noise
	bounds []r1.Interval

	stateDim  int
	actionDim int
}

// New creates and returns a new DDPG agent.
func New(config Config) (*DDPG, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	gActor := G.NewGraph()
	trainActor, err := network.NewActorMLP(config.StateDim, config.BatchSize,
		config.ActionDim, gActor, config.ActorHiddenSizes,
		config.ActorBiases, config.InitWFn, config.ActorActivations,
		network.TanH())
	if err != nil {
		return nil, fmt.Errorf("new: could not create actor: %v", err)
	}

	behaviourActor, err := trainActor.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour actor: %v",
			err)
	}
	targetActorNet, err := trainActor.CloneWithBatch(config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target actor: %v", err)
	}

	gCritic := G.NewGraph()
	trainCritic, err := network.NewStateActionMLP(config.StateDim,
		config.ActionDim, config.BatchSize, 1, gCritic,
		config.CriticHiddenSizes, config.CriticBiases, config.InitWFn,
		config.CriticActivations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create critic: %v", err)
	}
	targetCriticNet, err := trainCritic.CloneWithBatch(config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target critic: %v",
			err)
	}

	criticTrainer, err := network.NewRegressionTrainer(trainCritic,
		config.CriticSolver)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	actorTrainer, err := network.NewActorTrainer(trainActor, trainCritic,
		config.ActorSolver)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	actorSync, err := target.NewSoft(trainActor, targetActorNet, config.Tau)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	criticSync, err := target.NewSoft(trainCritic, targetCriticNet,
		config.Tau)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
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

	ddpg := &DDPG{
		criticTrainer:  criticTrainer,
		actorTrainer:   actorTrainer,
		behaviourActor: network.NewRunner(behaviourActor),
		targetActor:    network.NewRunner(targetActorNet),
		targetCritic:   network.NewRunner(targetCriticNet),
		noise:          config.Noise,
		bounds:         config.ActionBounds,
		stateDim:       config.StateDim,
		actionDim:      config.ActionDim,
	}

	ddpg.loop, err = offpolicy.New(memory, rollout, ddpg, ddpg, config.Noise,
		[]*target.Synchronizer{actorSync, criticSync}, offpolicy.Config{
			BatchSize:             config.BatchSize,
			WarmUp:                config.WarmUp,
			PolicyUpdateFrequency: 1,
			Discount:              config.Discount,
		})
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return ddpg, nil
}

// SelectAction returns an action for state. With explore set, a noise
// sample is added and the result is clamped to the action bounds.
func (d *DDPG) SelectAction(state []float64, explore bool) ([]float64,
	error) {
	action, err := d.behaviourActor.Predict(state)
	if err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}

	if explore {
		perturbation := d.noise.Sample()
		for i := range action {
			action[i] += perturbation[i]
		}
	}
	floatutils.ClipSlice(action, d.bounds)
	return action, nil
}

// Observe records one environment transition.
func (d *DDPG) Observe(state, action []float64, reward float64,
	nextState []float64, done bool) error {
	return d.loop.Observe(replay.NewTransition(state, action, reward,
		nextState, done))
}

// Update performs a single learning update.
func (d *DDPG) Update() error {
	return d.loop.Update()
}

// EndEpisode performs cleanup at the end of an episode.
func (d *DDPG) EndEpisode() {}

// UpdateCritic performs one TD regression step on the critic. It is
// called by the off-policy loop.
func (d *DDPG) UpdateCritic(batch replay.Batch,
	effectiveDiscount float64) (float64, error) {
	nextActions, err := d.targetActor.Predict(batch.NextStates)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}

	nextInputs := floatutils.ConcatRows(batch.NextStates, d.stateDim,
		nextActions, d.actionDim, batch.Size())
	nextValues, err := d.targetCritic.Predict(nextInputs)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}

	targets := make([]float64, batch.Size())
	for i := range targets {
		targets[i] = batch.Rewards[i] +
			batch.Masks[i]*effectiveDiscount*nextValues[i]
	}

	inputs := floatutils.ConcatRows(batch.States, d.stateDim, batch.Actions,
		d.actionDim, batch.Size())
	loss, err := d.criticTrainer.Step(inputs, targets)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}
	return loss, nil
}

// UpdateActor performs one deterministic policy gradient step on the
// actor. It is called by the off-policy loop.
func (d *DDPG) UpdateActor(batch replay.Batch) (float64, error) {
	loss, err := d.actorTrainer.Step(batch.States)
	if err != nil {
		return 0, fmt.Errorf("updateactor: %v", err)
	}

	// Keep the behaviour actor following the learned weights
	if err := d.behaviourActor.Net().Set(d.actorTrainer.Net()); err != nil {
		return 0, fmt.Errorf("updateactor: %v", err)
	}
	return loss, nil
}

// Memory returns the agent's replay memory.
func (d *DDPG) Memory() *replay.Memory {
	return d.loop.Memory()
}
