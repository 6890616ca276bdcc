// Package experiment runs agents against environments and records what
// happens.
package experiment

// Environment is the interaction seam an experiment drives. Callers
// bring their own implementation, typically wrapping a simulator or a
// gym binding.
type Environment interface {
	// Reset starts a new episode and returns the first state
	Reset() ([]float64, error)

	// Step applies action and returns the next state, the reward, and
	// whether the episode ended
	Step(action []float64) ([]float64, float64, bool, error)
}
