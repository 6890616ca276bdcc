package replay

import (
	"fmt"
	"math"
)

// Rollout is a bounded sliding window converting a stream of
// (state, action, reward) triples into n-step-return transitions. Once
// the window holds exactly n entries, each new (nextState, done) pair
// yields a transition whose state and action are the oldest entry in
// the window and whose reward is the discounted sum over the current
// window contents, so emitted transitions run n steps behind real
// time.
//
// The discount is fixed at construction and only spans the window;
// agents bootstrapping n steps ahead multiply mask * gamma^n into
// their targets themselves. Reset must be called on episode
// termination, otherwise rewards bleed across episode boundaries.
type Rollout struct {
	states  *RingBuffer
	actions *RingBuffer
	rewards *RingBuffer

	horizon  int
	discount float64
}

// NewRollout returns a new n-step rollout accumulator with the given
// horizon and per-step discount.
func NewRollout(horizon int, discount float64, stateDim, actionDim int,
	backend Backend) (*Rollout, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("newrollout: horizon must be >= 1, got %v",
			horizon)
	}
	if discount < 0.0 || discount > 1.0 {
		return nil, fmt.Errorf("newrollout: discount must be in [0, 1], "+
			"got %v", discount)
	}

	states, err := NewRingBuffer(horizon, stateDim, backend)
	if err != nil {
		return nil, fmt.Errorf("newrollout: %v", err)
	}
	actions, err := NewRingBuffer(horizon, actionDim, backend)
	if err != nil {
		return nil, fmt.Errorf("newrollout: %v", err)
	}
	rewards, err := NewRingBuffer(horizon, 1, backend)
	if err != nil {
		return nil, fmt.Errorf("newrollout: %v", err)
	}

	return &Rollout{
		states:   states,
		actions:  actions,
		rewards:  rewards,
		horizon:  horizon,
		discount: discount,
	}, nil
}

// Push appends one (state, action, reward) triple to the window,
// evicting the oldest triple once the window is at capacity.
func (r *Rollout) Push(state, action []float64, reward float64) error {
	if err := r.states.Add(state); err != nil {
		return fmt.Errorf("push: %v", err)
	}
	if err := r.actions.Add(action); err != nil {
		return fmt.Errorf("push: %v", err)
	}
	return r.rewards.Add([]float64{reward})
}

// Ready returns whether the window holds exactly horizon entries.
func (r *Rollout) Ready() bool {
	return r.states.Size() == r.horizon
}

// Transition returns the n-step transition ending at the caller's most
// recent (nextState, done) pair. The second return value is false
// until the window is full.
func (r *Rollout) Transition(nextState []float64, done bool) (Transition,
	bool) {
	if !r.Ready() {
		return Transition{}, false
	}

	state, _ := r.states.At(0)
	action, _ := r.actions.At(0)

	return NewTransition(state, action, r.cumulativeReward(), nextState,
		done), true
}

// Reset clears the window. Called on episode boundaries.
func (r *Rollout) Reset() {
	r.states.Reset()
	r.actions.Reset()
	r.rewards.Reset()
}

// Horizon returns the n-step horizon.
func (r *Rollout) Horizon() int {
	return r.horizon
}

// Discount returns the per-step discount baked into emitted rewards.
func (r *Rollout) Discount() float64 {
	return r.discount
}

// cumulativeReward computes sum_t discount^t * reward[t] over the
// current window contents.
func (r *Rollout) cumulativeReward() float64 {
	cumReward := 0.0
	for t := 0; t < r.horizon; t++ {
		reward, _ := r.rewards.At(t)
		cumReward += math.Pow(r.discount, float64(t)) * reward[0]
	}
	return cumReward
}
