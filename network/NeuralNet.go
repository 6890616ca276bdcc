// Package network implements neural network function approximators
// and the gorgonia training graphs that update them.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet is a feedforward function approximator. Implementations
// hold their own gorgonia graph so that multiple copies of the same
// architecture (online, target, behaviour) can be run independently.
type NeuralNet interface {
	Graph() *G.ExprGraph
	Clone() (NeuralNet, error)
	CloneWithBatch(int) (NeuralNet, error)
	BatchSize() int
	Features() int
	Outputs() int
	SetInput([]float64) error
	Set(NeuralNet) error
	Polyak(NeuralNet, float64) error
	Learnables() G.Nodes
	Model() []G.ValueGrad
	Output() G.Value
	Prediction() *G.Node
}

// Layer is a single layer of a NeuralNet.
type Layer interface {
	fwd(*G.Node) (*G.Node, error)
	CloneTo(g *G.ExprGraph) Layer
	Weights() *G.Node
	Bias() *G.Node
	Activation() *Activation
}
