// Package td3 implements the twin delayed deep deterministic policy
// gradient agent: twin critics with a min-target, target policy
// smoothing, and delayed actor and target updates.
package td3

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/agent/offpolicy"
	"github.com/Souphis/yadrl/exploration"
	"github.com/Souphis/yadrl/network"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/target"
	"github.com/Souphis/yadrl/utils/floatutils"
)

// TD3 learns a deterministic continuous policy against two
// independent Q critics, bootstrapping from the pointwise minimum of
// their targets to curb overestimation.
type TD3 struct {
	loop *offpolicy.Loop

	criticTrainers [2]*network.RegressionTrainer
	actorTrainer   *network.ActorTrainer

	behaviourActor *network.Runner
	targetActor    *network.Runner
	targetCritics  [2]*network.Runner

	noise       exploration.Noise
	smoothing   distuv.Normal
	noiseSigma  float64
	noiseClip   float64
	bounds      []r1.Interval
	stateDim    int
	actionDim   int
}

// New creates and returns a new TD3 agent.
func New(config Config) (*TD3, error) {
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

	syncs := []*target.Synchronizer{}
	actorSync, err := target.NewSoft(trainActor, targetActorNet, config.Tau)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	syncs = append(syncs, actorSync)

	var criticTrainers [2]*network.RegressionTrainer
	var targetCritics [2]*network.Runner
	var firstCritic network.NeuralNet
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

		if i == 0 {
			firstCritic = trainCritic
		}
	}

	// The actor ascends the first critic only
	actorTrainer, err := network.NewActorTrainer(trainActor, firstCritic,
		config.ActorSolver)
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

	td3 := &TD3{
		criticTrainers: criticTrainers,
		actorTrainer:   actorTrainer,
		behaviourActor: network.NewRunner(behaviourActor),
		targetActor:    network.NewRunner(targetActorNet),
		targetCritics:  targetCritics,
		noise:          config.Noise,
		smoothing: distuv.Normal{
			Mu:    0.0,
			Sigma: 1.0,
			Src:   rand.NewSource(config.Seed),
		},
		noiseSigma: config.TargetNoiseSigma,
		noiseClip:  config.TargetNoiseClip,
		bounds:     config.ActionBounds,
		stateDim:   config.StateDim,
		actionDim:  config.ActionDim,
	}

	td3.loop, err = offpolicy.New(memory, rollout, td3, td3, config.Noise,
		syncs, offpolicy.Config{
			BatchSize:             config.BatchSize,
			WarmUp:                config.WarmUp,
			PolicyUpdateFrequency: config.PolicyUpdateFrequency,
			Discount:              config.Discount,
		})
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return td3, nil
}

// SelectAction returns an action for state. With explore set, a noise
// sample is added and the result is clamped to the action bounds.
func (t *TD3) SelectAction(state []float64, explore bool) ([]float64,
	error) {
	action, err := t.behaviourActor.Predict(state)
	if err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}

	if explore {
		perturbation := t.noise.Sample()
		for i := range action {
			action[i] += perturbation[i]
		}
	}
	floatutils.ClipSlice(action, t.bounds)
	return action, nil
}

// Observe records one environment transition.
func (t *TD3) Observe(state, action []float64, reward float64,
	nextState []float64, done bool) error {
	return t.loop.Observe(replay.NewTransition(state, action, reward,
		nextState, done))
}

// Update performs a single learning update.
func (t *TD3) Update() error {
	return t.loop.Update()
}

// EndEpisode performs cleanup at the end of an episode.
func (t *TD3) EndEpisode() {}

// UpdateCritic performs one TD regression step on both critics,
// bootstrapping from the smoothed target action and the minimum of
// the two target critic values. It is called by the off-policy loop.
func (t *TD3) UpdateCritic(batch replay.Batch,
	effectiveDiscount float64) (float64, error) {
	nextActions, err := t.targetActor.Predict(batch.NextStates)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}

	// Target policy smoothing: clipped noise on the target action,
	// re-clamped to the action bounds
	for i := range nextActions {
		noise := floatutils.Clip(t.smoothing.Rand()*t.noiseSigma,
			-t.noiseClip, t.noiseClip)
		nextActions[i] = floatutils.ClipInterval(nextActions[i]+noise,
			t.bounds[i%t.actionDim])
	}

	nextInputs := floatutils.ConcatRows(batch.NextStates, t.stateDim,
		nextActions, t.actionDim, batch.Size())
	nextValues1, err := t.targetCritics[0].Predict(nextInputs)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}
	nextValues2, err := t.targetCritics[1].Predict(nextInputs)
	if err != nil {
		return 0, fmt.Errorf("updatecritic: %v", err)
	}

	targets := make([]float64, batch.Size())
	for i := range targets {
		nextValue := floatutils.Min(nextValues1[i], nextValues2[i])
		targets[i] = batch.Rewards[i] +
			batch.Masks[i]*effectiveDiscount*nextValue
	}

	inputs := floatutils.ConcatRows(batch.States, t.stateDim, batch.Actions,
		t.actionDim, batch.Size())
	loss := 0.0
	for i := range t.criticTrainers {
		criticLoss, err := t.criticTrainers[i].Step(inputs, targets)
		if err != nil {
			return 0, fmt.Errorf("updatecritic: critic %v: %v", i, err)
		}
		loss += criticLoss
	}
	return loss, nil
}

// UpdateActor performs one delayed deterministic policy gradient step
// on the actor. It is called by the off-policy loop on every
// PolicyUpdateFrequency-th update.
func (t *TD3) UpdateActor(batch replay.Batch) (float64, error) {
	loss, err := t.actorTrainer.Step(batch.States)
	if err != nil {
		return 0, fmt.Errorf("updateactor: %v", err)
	}

	// Keep the behaviour actor following the learned weights
	if err := t.behaviourActor.Net().Set(t.actorTrainer.Net()); err != nil {
		return 0, fmt.Errorf("updateactor: %v", err)
	}
	return loss, nil
}

// Memory returns the agent's replay memory.
func (t *TD3) Memory() *replay.Memory {
	return t.loop.Memory()
}
