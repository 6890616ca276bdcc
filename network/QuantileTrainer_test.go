package network

import (
	"testing"

	G "gorgonia.org/gorgonia"

	"github.com/Souphis/yadrl/distributional"
)

func newQuantileNet(t *testing.T, quantiles int) NeuralNet {
	t.Helper()

	g := G.NewGraph()
	net, err := NewMLP(5, 4, quantiles, g, []int{8}, []bool{true},
		G.GlorotU(1.0), []*Activation{ReLU()})
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func TestNewQuantileTrainer(t *testing.T) {
	net := newQuantileNet(t, 16)
	midpoints, err := distributional.Midpoints(16)
	if err != nil {
		t.Fatal(err)
	}

	solver := G.NewAdamSolver(G.WithLearnRate(0.001))
	trainer, err := NewQuantileTrainer(net, solver, midpoints, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if trainer.Net() != net {
		t.Error("trainer must wrap the given network")
	}
}

func TestNewQuantileTrainerValidation(t *testing.T) {
	solver := G.NewAdamSolver(G.WithLearnRate(0.001))

	midpoints, err := distributional.Midpoints(16)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewQuantileTrainer(newQuantileNet(t, 1), solver,
		midpoints[:1], 1.0); err == nil {
		t.Error("expected error for a single quantile output")
	}

	if _, err := NewQuantileTrainer(newQuantileNet(t, 16), solver,
		midpoints[:8], 1.0); err == nil {
		t.Error("expected error for mismatched midpoint count")
	}

	if _, err := NewQuantileTrainer(newQuantileNet(t, 16), solver,
		midpoints, 0); err == nil {
		t.Error("expected error for non-positive kappa")
	}
}

func TestQuantileTrainerStepValidatesTargets(t *testing.T) {
	net := newQuantileNet(t, 4)
	midpoints, err := distributional.Midpoints(4)
	if err != nil {
		t.Fatal(err)
	}

	trainer, err := NewQuantileTrainer(net,
		G.NewAdamSolver(G.WithLearnRate(0.001)), midpoints, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	inputs := make([]float64, 4*5)
	if _, err := trainer.Step(inputs, make([]float64, 3)); err == nil {
		t.Error("expected error for wrong target batch size")
	}
}
