package exploration

import (
	"fmt"
	"math"
)

// Schedule is a monotonically non-increasing exploration-rate
// schedule, bounded below by a floor. Value returns the current rate;
// Step advances the schedule and returns the new rate.
type Schedule interface {
	Value() float64
	Step() float64
}

// ExponentialDecay multiplies the rate by a fixed factor on every
// step, down to a floor.
type ExponentialDecay struct {
	value float64
	decay float64
	min   float64
}

// NewExponentialDecay returns a schedule starting at start and
// decaying by factor decay per step, never dropping below min.
func NewExponentialDecay(start, decay, min float64) (*ExponentialDecay,
	error) {
	if decay <= 0.0 || decay > 1.0 {
		return nil, fmt.Errorf("newexponentialdecay: decay must be in "+
			"(0, 1], got %v", decay)
	}
	if min < 0.0 || min > start {
		return nil, fmt.Errorf("newexponentialdecay: need 0 <= min <= start, "+
			"got min %v, start %v", min, start)
	}

	return &ExponentialDecay{value: start, decay: decay, min: min}, nil
}

// Value returns the current rate.
func (e *ExponentialDecay) Value() float64 {
	return e.value
}

// Step decays the rate one step and returns the new value.
func (e *ExponentialDecay) Step() float64 {
	e.value = math.Max(e.value*e.decay, e.min)
	return e.value
}

// LinearAnneal decreases the rate by a fixed amount on every step so
// that it reaches its floor after a fixed number of steps.
type LinearAnneal struct {
	value float64
	min   float64
	delta float64
}

// NewLinearAnneal returns a schedule annealing from start to min over
// steps steps.
func NewLinearAnneal(start, min float64, steps int) (*LinearAnneal, error) {
	if steps < 1 {
		return nil, fmt.Errorf("newlinearanneal: steps must be >= 1, got %v",
			steps)
	}
	if min < 0.0 || min > start {
		return nil, fmt.Errorf("newlinearanneal: need 0 <= min <= start, "+
			"got min %v, start %v", min, start)
	}

	return &LinearAnneal{
		value: start,
		min:   min,
		delta: (start - min) / float64(steps),
	}, nil
}

// Value returns the current rate.
func (l *LinearAnneal) Value() float64 {
	return l.value
}

// Step anneals the rate one step and returns the new value.
func (l *LinearAnneal) Step() float64 {
	l.value = math.Max(l.value-l.delta, l.min)
	return l.value
}
