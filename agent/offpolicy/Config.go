package offpolicy

import "fmt"

// Config holds the schedule parameters shared by every off-policy
// agent loop.
type Config struct {
	// BatchSize is the number of transitions sampled per update
	BatchSize int

	// WarmUp is the number of stored transitions required before
	// training begins
	WarmUp int

	// PolicyUpdateFrequency delays actor updates and target
	// synchronization to every n-th update call. Critic updates run
	// on every call. Use 1 for no delay.
	PolicyUpdateFrequency int

	// Discount is the per-step discount factor gamma
	Discount float64
}

// Validate returns an error describing an invalid configuration.
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch size must be at least 1, got %v",
			c.BatchSize)
	}
	if c.WarmUp < 0 {
		return fmt.Errorf("config: warm-up must be non-negative, got %v",
			c.WarmUp)
	}
	if c.PolicyUpdateFrequency < 1 {
		return fmt.Errorf("config: policy update frequency must be at "+
			"least 1, got %v", c.PolicyUpdateFrequency)
	}
	if c.Discount <= 0 || c.Discount > 1 {
		return fmt.Errorf("config: discount must be in (0, 1], got %v",
			c.Discount)
	}
	return nil
}
