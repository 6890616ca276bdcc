package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// RegressionTrainer updates a single-output network towards externally
// computed scalar targets with the mean squared error loss. It is used
// for critics that predict Q(s, a) from a concatenated state-action
// input.
type RegressionTrainer struct {
	net    NeuralNet
	vm     G.VM
	solver G.Solver

	targets *G.Node
	lossVal G.Value

	batchSize int
}

// NewRegressionTrainer adds the MSE loss to net's graph and returns a
// trainer that performs gradient steps with solver. The network must
// have a single output.
func NewRegressionTrainer(net NeuralNet,
	solver G.Solver) (*RegressionTrainer, error) {
	if net.Outputs() != 1 {
		return nil, fmt.Errorf("newregressiontrainer: network must have a "+
			"single output, got %v", net.Outputs())
	}

	g := net.Graph()
	batchSize := net.BatchSize()

	targets := G.NewVector(g, tensor.Float64, G.WithShape(batchSize),
		G.WithName("regressionTarget"))

	predicted := G.Must(G.Reshape(net.Prediction(),
		tensor.Shape{batchSize}))

	losses := G.Must(G.Sub(targets, predicted))
	losses = G.Must(G.Square(losses))
	cost := G.Must(G.Mean(losses))

	var lossVal G.Value
	G.Read(cost, &lossVal)

	if _, err := G.Grad(cost, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newregressiontrainer: could not compute "+
			"gradient: %v", err)
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))

	return &RegressionTrainer{
		net:       net,
		vm:        vm,
		solver:    solver,
		targets:   targets,
		lossVal:   lossVal,
		batchSize: batchSize,
	}, nil
}

// Net returns the network being trained.
func (r *RegressionTrainer) Net() NeuralNet {
	return r.net
}

// Step performs one gradient step. inputs holds batch rows of network
// inputs and targets holds one regression target per row. It returns
// the loss before the step.
func (r *RegressionTrainer) Step(inputs, targets []float64) (float64, error) {
	if len(targets) != r.batchSize {
		return 0, fmt.Errorf("step: invalid target batch\n\twant(%v)"+
			"\n\thave(%v)", r.batchSize, len(targets))
	}

	if err := r.net.SetInput(inputs); err != nil {
		return 0, fmt.Errorf("step: %v", err)
	}

	targetTensor := tensor.New(
		tensor.WithShape(r.batchSize),
		tensor.WithBacking(targets),
	)
	if err := G.Let(r.targets, targetTensor); err != nil {
		return 0, fmt.Errorf("step: could not set targets: %v", err)
	}

	if err := r.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("step: could not run training graph: %v", err)
	}
	loss := r.lossVal.Data().(float64)

	if err := r.solver.Step(r.net.Model()); err != nil {
		return 0, fmt.Errorf("step: could not step solver: %v", err)
	}
	r.vm.Reset()

	return loss, nil
}
