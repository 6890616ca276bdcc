// Package offpolicy implements the generic observe/update lifecycle
// shared by every off-policy agent: warm-up gating, optional n-step
// return accumulation, batch sampling, delegation to the injected
// critic and actor strategies, and target network synchronization.
package offpolicy

import (
	"fmt"
	"math"

	"github.com/Souphis/yadrl/agent"
	"github.com/Souphis/yadrl/exploration"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/target"
)

// State is the training phase of a Loop.
type State int

const (
	// WarmingUp means too few transitions are stored to train
	WarmingUp State = iota

	// Training means updates are performed on every Update call
	Training
)

// String implements the Stringer interface
func (s State) String() string {
	switch s {
	case WarmingUp:
		return "WarmingUp"
	case Training:
		return "Training"
	default:
		return "Unknown"
	}
}

// Loop drives the shared off-policy training lifecycle. Agents inject
// their critic and actor update strategies; the Loop owns when they
// run.
type Loop struct {
	memory  *replay.Memory
	rollout *replay.Rollout

	critic agent.CriticUpdater
	actor  agent.ActorUpdater
	noise  exploration.Noise
	syncs  []*target.Synchronizer

	config            Config
	state             State
	updates           int
	effectiveDiscount float64
}

// New returns a Loop over memory that delegates critic updates to
// critic. The rollout, actor and noise collaborators may be nil:
// a nil rollout stores 1-step transitions, a nil actor skips actor
// updates, and a nil noise skips episode-end noise resets. Target
// synchronizers in syncs are stepped on every PolicyUpdateFrequency-th
// update.
func New(memory *replay.Memory, rollout *replay.Rollout,
	critic agent.CriticUpdater, actor agent.ActorUpdater,
	noise exploration.Noise, syncs []*target.Synchronizer,
	config Config) (*Loop, error) {
	if memory == nil {
		return nil, fmt.Errorf("new: memory cannot be nil")
	}
	if critic == nil {
		return nil, fmt.Errorf("new: critic updater cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	horizon := 1
	if rollout != nil {
		if rollout.Discount() != config.Discount {
			return nil, fmt.Errorf("new: rollout discount %v does not "+
				"match configured discount %v", rollout.Discount(),
				config.Discount)
		}
		horizon = rollout.Horizon()
	}

	return &Loop{
		memory:            memory,
		rollout:           rollout,
		critic:            critic,
		actor:             actor,
		noise:             noise,
		syncs:             syncs,
		config:            config,
		state:             WarmingUp,
		effectiveDiscount: math.Pow(config.Discount, float64(horizon)),
	}, nil
}

// State returns the current training phase.
func (l *Loop) State() State {
	return l.state
}

// Memory returns the replay memory the loop stores transitions in.
func (l *Loop) Memory() *replay.Memory {
	return l.memory
}

// EffectiveDiscount returns the bootstrap multiplier gamma^n, where n
// is the n-step horizon (1 without a rollout accumulator).
func (l *Loop) EffectiveDiscount() float64 {
	return l.effectiveDiscount
}

// Observe records one environment transition. With an n-step rollout
// configured, the transition enters the sliding window and a complete
// n-step transition is stored once the window fills. Episode
// termination resets the noise process and the rollout window. The
// warm-up latch flips to Training once enough transitions are stored;
// it never flips back.
func (l *Loop) Observe(t replay.Transition) error {
	if l.rollout == nil {
		if err := l.memory.Push(t); err != nil {
			return fmt.Errorf("observe: %v", err)
		}
	} else {
		if err := l.rollout.Push(t.State, t.Action, t.Reward); err != nil {
			return fmt.Errorf("observe: %v", err)
		}
		if nstep, ok := l.rollout.Transition(t.NextState, t.Mask == 0); ok {
			if err := l.memory.Push(nstep); err != nil {
				return fmt.Errorf("observe: %v", err)
			}
		}
	}

	if t.Mask == 0 {
		if l.noise != nil {
			l.noise.Reset()
		}
		if l.rollout != nil {
			l.rollout.Reset()
		}
	}

	if l.state == WarmingUp && l.memory.Size() >= l.config.WarmUp {
		l.state = Training
	}
	return nil
}

// Update performs one training update. While warming up it is a
// no-op. While training it samples a batch, updates the critic, and
// on every PolicyUpdateFrequency-th call updates the actor and steps
// every target synchronizer.
func (l *Loop) Update() error {
	if l.state != Training {
		return nil
	}

	batch, err := l.memory.Sample(l.config.BatchSize)
	if err != nil {
		return fmt.Errorf("update: %v", err)
	}

	if _, err := l.critic.UpdateCritic(batch, l.effectiveDiscount); err != nil {
		return fmt.Errorf("update: critic: %v", err)
	}

	l.updates++
	if l.updates%l.config.PolicyUpdateFrequency != 0 {
		return nil
	}

	if l.actor != nil {
		if _, err := l.actor.UpdateActor(batch); err != nil {
			return fmt.Errorf("update: actor: %v", err)
		}
	}
	for _, sync := range l.syncs {
		if err := sync.Step(); err != nil {
			return fmt.Errorf("update: target sync: %v", err)
		}
	}
	return nil
}
