package experiment

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Souphis/yadrl/agent"
	"github.com/Souphis/yadrl/checkpoint"
	"github.com/Souphis/yadrl/utils/progressbar"
)

// Online runs an agent online only. No offline evaluation is
// performed. Actions are always selected in explore mode and every
// transition triggers one agent update.
type Online struct {
	env   Environment
	agent agent.Agent

	maxSteps     int
	currentSteps int
	episodes     int

	returns []float64

	logger zerolog.Logger
	bar    *progressbar.ManualProgressBar

	store           *checkpoint.Store
	blob            checkpoint.Serializable
	checkpointEvery int
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many environment steps the experiment is run for.
func NewOnline(env Environment, a agent.Agent, steps int,
	logger zerolog.Logger) (*Online, error) {
	if env == nil {
		return nil, fmt.Errorf("newonline: environment cannot be nil")
	}
	if a == nil {
		return nil, fmt.Errorf("newonline: agent cannot be nil")
	}
	if steps < 1 {
		return nil, fmt.Errorf("newonline: steps must be >= 1, got %v",
			steps)
	}

	return &Online{
		env:      env,
		agent:    a,
		maxSteps: steps,
		logger:   logger.With().Str("component", "online_experiment").Logger(),
	}, nil
}

// WithProgressBar attaches a terminal progress bar that advances with
// every environment step.
func (o *Online) WithProgressBar(width int) {
	o.bar = progressbar.NewManualProgressBar(width, o.maxSteps)
}

// WithCheckpoints saves blob to store every n environment steps.
func (o *Online) WithCheckpoints(store *checkpoint.Store,
	blob checkpoint.Serializable, every int) error {
	if every < 1 {
		return fmt.Errorf("withcheckpoints: interval must be >= 1, got %v",
			every)
	}
	o.store = store
	o.blob = blob
	o.checkpointEvery = every
	return nil
}

// RunEpisode runs a single episode of the experiment. It returns
// whether the environment step limit has been reached.
func (o *Online) RunEpisode() (bool, error) {
	state, err := o.env.Reset()
	if err != nil {
		return false, fmt.Errorf("runepisode: %v", err)
	}

	episodeReturn := 0.0
	episodeSteps := 0
	done := false

	for !done && o.currentSteps < o.maxSteps {
		o.currentSteps++
		episodeSteps++

		action, err := o.agent.SelectAction(state, true)
		if err != nil {
			return false, fmt.Errorf("runepisode: %v", err)
		}

		nextState, reward, stepDone, err := o.env.Step(action)
		if err != nil {
			return false, fmt.Errorf("runepisode: %v", err)
		}
		done = stepDone
		episodeReturn += reward

		err = o.agent.Observe(state, action, reward, nextState, done)
		if err != nil {
			return false, fmt.Errorf("runepisode: %v", err)
		}
		if err := o.agent.Update(); err != nil {
			return false, fmt.Errorf("runepisode: %v", err)
		}
		state = nextState

		if o.bar != nil {
			o.bar.Increment()
			o.bar.Display()
		}
		if err := o.maybeCheckpoint(); err != nil {
			return false, fmt.Errorf("runepisode: %v", err)
		}
	}

	o.agent.EndEpisode()
	o.episodes++
	o.returns = append(o.returns, episodeReturn)

	o.logger.Info().
		Int("episode", o.episodes).
		Int("episode_steps", episodeSteps).
		Int("total_steps", o.currentSteps).
		Float64("return", episodeReturn).
		Msg("Episode finished")

	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all environment steps.
func (o *Online) Run() error {
	ended := false
	for !ended {
		var err error
		ended, err = o.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: %v", err)
		}
	}

	o.logger.Info().
		Int("episodes", o.episodes).
		Int("total_steps", o.currentSteps).
		Msg("Experiment finished")
	return nil
}

// Returns lists the cumulative reward of every completed episode.
func (o *Online) Returns() []float64 {
	out := make([]float64, len(o.returns))
	copy(out, o.returns)
	return out
}

// Steps returns the number of environment steps taken so far.
func (o *Online) Steps() int {
	return o.currentSteps
}

func (o *Online) maybeCheckpoint() error {
	if o.store == nil || o.currentSteps%o.checkpointEvery != 0 {
		return nil
	}
	if err := o.store.Save(o.blob, o.currentSteps); err != nil {
		return err
	}
	o.logger.Debug().
		Int("step", o.currentSteps).
		Msg("Saved checkpoint")
	return nil
}
