package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Runner wraps a NeuralNet together with a virtual machine for its
// graph so that forward passes can be computed outside of training.
type Runner struct {
	net NeuralNet
	vm  G.VM
}

// NewRunner returns a Runner for net. The net's graph should contain
// only the forward pass.
func NewRunner(net NeuralNet) *Runner {
	return &Runner{
		net: net,
		vm:  G.NewTapeMachine(net.Graph()),
	}
}

// Net returns the wrapped NeuralNet.
func (r *Runner) Net() NeuralNet {
	return r.net
}

// Predict runs the forward pass on input and returns a copy of the
// network output. The input length must equal BatchSize() * Features()
// of the wrapped network.
func (r *Runner) Predict(input []float64) ([]float64, error) {
	if err := r.net.SetInput(input); err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}
	if err := r.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("predict: could not run forward pass: %v", err)
	}
	defer r.vm.Reset()

	data, ok := r.net.Output().Data().([]float64)
	if !ok {
		value, scalar := r.net.Output().Data().(float64)
		if !scalar {
			return nil, fmt.Errorf("predict: unexpected output type %T",
				r.net.Output().Data())
		}
		return []float64{value}, nil
	}

	out := make([]float64, len(data))
	copy(out, data)
	return out, nil
}
