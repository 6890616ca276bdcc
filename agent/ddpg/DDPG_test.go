package ddpg

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r1"
	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/exploration"
	"github.com/Souphis/yadrl/network"
	"github.com/Souphis/yadrl/replay"
	"github.com/Souphis/yadrl/solver"
)

func newConfig(t *testing.T) Config {
	t.Helper()

	actorSolver, err := solver.NewDefaultAdam(0.0001, 4)
	if err != nil {
		t.Fatal(err)
	}
	criticSolver, err := solver.NewDefaultAdam(0.001, 4)
	if err != nil {
		t.Fatal(err)
	}
	noise, err := exploration.NewOUNoise(2, 0.0, 0.15, 0.2, 0.0, 0, 0.01, 42)
	if err != nil {
		t.Fatal(err)
	}

	return Config{
		StateDim:  3,
		ActionDim: 2,
		ActionBounds: []r1.Interval{
			{Min: -1, Max: 1},
			{Min: -1, Max: 1},
		},
		ActorHiddenSizes:  []int{8},
		ActorBiases:       []bool{true},
		ActorActivations:  []*network.Activation{network.ReLU()},
		ActorSolver:       actorSolver,
		CriticHiddenSizes: []int{8},
		CriticBiases:      []bool{true},
		CriticActivations: []*network.Activation{network.ReLU()},
		CriticSolver:      criticSolver,
		InitWFn:           G.GlorotU(1.0),
		MemoryCapacity:    64,
		Backend:           replay.Gonum,
		BatchSize:         4,
		WarmUp:            8,
		Discount:          0.99,
		NStep:             1,
		Tau:               0.01,
		Noise:             noise,
		Seed:              42,
	}
}

func TestNewDDPG(t *testing.T) {
	agent, err := New(newConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if agent.Memory().Size() != 0 {
		t.Errorf("expected empty memory, got size %v", agent.Memory().Size())
	}
}

func TestDDPGSelectActionWithinBounds(t *testing.T) {
	agent, err := New(newConfig(t))
	if err != nil {
		t.Fatal(err)
	}

	for _, explore := range []bool{false, true} {
		action, err := agent.SelectAction([]float64{0.1, -0.2, 0.3}, explore)
		if err != nil {
			t.Fatal(err)
		}
		if len(action) != 2 {
			t.Fatalf("expected 2-dimensional action, got %v", len(action))
		}
		for i, a := range action {
			if a < -1 || a > 1 {
				t.Errorf("action[%v] = %v outside bounds [-1, 1]", i, a)
			}
		}
	}
}

func TestDDPGConfigValidation(t *testing.T) {
	config := newConfig(t)
	config.ActionBounds = config.ActionBounds[:1]
	if _, err := New(config); err == nil {
		t.Error("expected error for mismatched action bounds")
	}

	config = newConfig(t)
	config.Tau = 0
	if _, err := New(config); err == nil {
		t.Error("expected error for tau = 0")
	}

	config = newConfig(t)
	config.Noise = nil
	if _, err := New(config); err == nil {
		t.Error("expected error for missing noise process")
	}
}
