package deepq

import (
	"testing"

	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/exploration"
	"github.com/Souphis/yadrl/network"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/solver"
)

func newConfig(t *testing.T) Config {
	t.Helper()

	adam, err := solver.NewDefaultAdam(0.001, 4)
	if err != nil {
		t.Fatal(err)
	}
	epsilon, err := exploration.NewExponentialDecay(1.0, 0.9, 0.05)
	if err != nil {
		t.Fatal(err)
	}

	return Config{
		StateDim:           3,
		NumActions:         2,
		HiddenSizes:        []int{8},
		Biases:             []bool{true},
		Activations:        []*network.Activation{network.ReLU()},
		InitWFn:            G.GlorotU(1.0),
		Solver:             adam,
		MemoryCapacity:     64,
		Backend:            replay.Gonum,
		BatchSize:          4,
		WarmUp:             8,
		Discount:           0.99,
		NStep:              1,
		Tau:                0.05,
		TargetUpdatePeriod: 0,
		Epsilon:            epsilon,
		Seed:               42,
	}
}

func TestNewDQN(t *testing.T) {
	agent, err := New(newConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if agent.Memory().Size() != 0 {
		t.Errorf("expected empty memory, got size %v", agent.Memory().Size())
	}
}

func TestDQNSelectActionInRange(t *testing.T) {
	agent, err := New(newConfig(t))
	if err != nil {
		t.Fatal(err)
	}

	action, err := agent.SelectAction([]float64{0.1, -0.2, 0.3}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(action) != 1 {
		t.Fatalf("expected 1-dimensional action, got %v", len(action))
	}
	if action[0] != 0 && action[0] != 1 {
		t.Errorf("expected action in {0, 1}, got %v", action[0])
	}
}

func TestDQNEpsilonDecaysOnExploration(t *testing.T) {
	agent, err := New(newConfig(t))
	if err != nil {
		t.Fatal(err)
	}

	before := agent.Epsilon()
	if _, err := agent.SelectAction([]float64{0, 0, 0}, true); err != nil {
		t.Fatal(err)
	}
	if agent.Epsilon() >= before {
		t.Errorf("expected epsilon to decay from %v, got %v", before,
			agent.Epsilon())
	}
}

func TestDQNObserveAndWarmUp(t *testing.T) {
	agent, err := New(newConfig(t))
	if err != nil {
		t.Fatal(err)
	}

	// Updates before warm-up must be silent no-ops
	for i := 0; i < 3; i++ {
		err := agent.Observe([]float64{0, 0, 0}, []float64{1}, 1.0,
			[]float64{0, 0, 1}, false)
		if err != nil {
			t.Fatal(err)
		}
		if err := agent.Update(); err != nil {
			t.Fatal(err)
		}
	}
	if agent.Memory().Size() != 3 {
		t.Errorf("expected 3 stored transitions, got %v",
			agent.Memory().Size())
	}
}

func TestDQNConfigValidation(t *testing.T) {
	config := newConfig(t)
	config.NumActions = 1
	if _, err := New(config); err == nil {
		t.Error("expected error for single-action environment")
	}

	config = newConfig(t)
	config.Tau = 0
	config.TargetUpdatePeriod = 0
	if _, err := New(config); err == nil {
		t.Error("expected error for missing target update scheme")
	}

	config = newConfig(t)
	config.Epsilon = nil
	if _, err := New(config); err == nil {
		t.Error("expected error for missing epsilon schedule")
	}
}
