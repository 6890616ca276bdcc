// Package quantile implements quantile-regression DDPG: a
// deterministic continuous policy against a critic that predicts
// quantile values of the return distribution instead of its mean.
package quantile

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r1"
	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/agent/offpolicy"
	"github.com/Souphis/yadrl/distributional"
	"github.com/Souphis/yadrl/exploration"
	"github.com/Souphis/yadrl/network"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/target"
	"github.com/Souphis/yadrl/utils/floatutils"
)

// QuantileDDPG is DDPG with a quantile value head. The critic is fit
// with the quantile Huber loss against per-quantile TD targets
//
//	y_j = r + mask * gamma^n * theta'_j(s', pi'(s'))
//
// and the actor ascends the critic's quantile mean.
type QuantileDDPG struct {
	loop *offpolicy.Loop

	criticTrainer *network.QuantileTrainer
	actorTrainer  *network.ActorTrainer

	behaviourActor *network.Runner
	targetActor    *network.Runner
	targetCritic   *network.Runner

	noise  exploration.Noise
	bounds []r1.Interval

	stateDim  int
	actionDim int
	quantiles int
}

// New creates and returns a new QuantileDDPG agent.
func New(config Config) (*QuantileDDPG, error) {
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
		config.ActionDim, config.BatchSize, config.Quantiles, gCritic,
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

	midpoints, err := distributional.Midpoints(config.Quantiles)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	criticTrainer, err := network.NewQuantileTrainer(trainCritic,
		config.CriticSolver, midpoints, config.Kappa)
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

	qrddpg := &QuantileDDPG{
		criticTrainer:  criticTrainer,
		actorTrainer:   actorTrainer,
		behaviourActor: network.NewRunner(behaviourActor),
		targetActor:    network.NewRunner(targetActorNet),
		targetCritic:   network.NewRunner(targetCriticNet),
		noise:          config.Noise,
		bounds:         config.ActionBounds,
		stateDim:       config.StateDim,
		actionDim:      config.ActionDim,
		quantiles:      config.Quantiles,
	}

	qrddpg.loop, err = offpolicy.New(memory, rollout, qrddpg, qrddpg,
		config.Noise, []*target.Synchronizer{actorSync, criticSync},
		offpolicy.Config{
			BatchSize:             config.BatchSize,
			WarmUp:                config.WarmUp,
			PolicyUpdateFrequency: 1,
			Discount:              config.Discount,
		})
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return qrddpg, nil
}

// SelectAction returns an action for state. With explore set, a noise
// sample is added and the result is clamped to the action bounds.
func (q *QuantileDDPG) SelectAction(state []float64, explore bool) (
	[]float64, error) {
	action, err := q.behaviourActor.Predict(state)
	if err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}

	if explore {
		perturbation := q.noise.Sample()
		for i := range action {
			action[i] += perturbation[i]
		}
	}
	floatutils.ClipSlice(action, q.bounds)
	return action, nil
}

// Observe records one environment transition.
func (q *QuantileDDPG) Observe(state, action []float64, reward float64,
	nextState []float64, done bool) error {
	return q.loop.Observe(replay.NewTransition(state, action, reward,
		nextState, done))
}

// Update performs a single learning update.
func (q *QuantileDDPG) Update() error {
	return q.loop.Update()
}

// EndEpisode performs cleanup at the end of an episode.
func (q *QuantileDDPG) EndEpisode() {}

// UpdateCritic performs one quantile regression step on the critic.
// Every target quantile shifts by the same reward and mask, preserving
// the shape of the bootstrapped distribution. It is called by the
// off-policy loop.
func (q *QuantileDDPG) UpdateCritic(batch replay.Batch,
	effectiveDiscount float64) (float64, error) {
	nextActions, err := q.targetActor.Predict(batch.NextStates)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}

	nextInputs := floatutils.ConcatRows(batch.NextStates, q.stateDim,
		nextActions, q.actionDim, batch.Size())
	nextQuantiles, err := q.targetCritic.Predict(nextInputs)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}

	targets := make([]float64, batch.Size()*q.quantiles)
	for i := 0; i < batch.Size(); i++ {
		for j := 0; j < q.quantiles; j++ {
			targets[i*q.quantiles+j] = batch.Rewards[i] +
				batch.Masks[i]*effectiveDiscount*nextQuantiles[i*q.quantiles+j]
		}
	}

	inputs := floatutils.ConcatRows(batch.States, q.stateDim, batch.Actions,
		q.actionDim, batch.Size())
	loss, err := q.criticTrainer.Step(inputs, targets)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}
	return loss, nil
}

// UpdateActor performs one deterministic policy gradient step on the
// actor, ascending the mean of the critic's quantiles. It is called by
// the off-policy loop.
func (q *QuantileDDPG) UpdateActor(batch replay.Batch) (float64, error) {
	loss, err := q.actorTrainer.Step(batch.States)
	if err != nil {
		return 0, fmt.Errorf("updateactor: %v", err)
	}

	// Keep the behaviour actor following the learned weights
	if err := q.behaviourActor.Net().Set(q.actorTrainer.Net()); err != nil {
		return 0, fmt.Errorf("updateactor: %v", err)
	}
	return loss, nil
}

// Memory returns the agent's replay memory.
func (q *QuantileDDPG) Memory() *replay.Memory {
	return q.loop.Memory()
}
