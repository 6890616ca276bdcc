package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// QTrainer updates an action-value network towards externally computed
// scalar targets. The network predicts one value per action; the
// one-hot action mask picks out the value of the action actually
// taken, and the loss is the mean squared error between that value and
// the target:
//
//	loss = mean[(target - sum(Q(s) ⊙ onehot(a), 1))²]
type QTrainer struct {
	net    NeuralNet
	vm     G.VM
	solver G.Solver

	actions *G.Node
	targets *G.Node
	lossVal G.Value

	batchSize  int
	numActions int
}

// NewQTrainer adds the Q-learning loss to net's graph and returns a
// trainer that performs gradient steps with solver.
func NewQTrainer(net NeuralNet, solver G.Solver) (*QTrainer, error) {
	g := net.Graph()
	batchSize := net.BatchSize()
	numActions := net.Outputs()

	actions := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("selectedActions"))
	targets := G.NewVector(g, tensor.Float64, G.WithShape(batchSize),
		G.WithName("updateTarget"))

	selectedActionValues := G.Must(G.HadamardProd(net.Prediction(), actions))
	selectedActionValues = G.Must(G.Sum(selectedActionValues, 1))

	losses := G.Must(G.Sub(targets, selectedActionValues))
	losses = G.Must(G.Square(losses))
	cost := G.Must(G.Mean(losses))

	var lossVal G.Value
	G.Read(cost, &lossVal)

	if _, err := G.Grad(cost, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newqtrainer: could not compute gradient: %v",
			err)
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))

	return &QTrainer{
		net:        net,
		vm:         vm,
		solver:     solver,
		actions:    actions,
		targets:    targets,
		lossVal:    lossVal,
		batchSize:  batchSize,
		numActions: numActions,
	}, nil
}

// Net returns the network being trained.
func (q *QTrainer) Net() NeuralNet {
	return q.net
}

// Step performs one gradient step. states holds batch rows of state
// features, actions holds batch rows of one-hot selected actions, and
// targets holds one update target per row. It returns the loss before
// the step.
func (q *QTrainer) Step(states, actions, targets []float64) (float64, error) {
	if len(actions) != q.batchSize*q.numActions {
		return 0, fmt.Errorf("step: invalid action batch\n\twant(%v)"+
			"\n\thave(%v)", q.batchSize*q.numActions, len(actions))
	}
	if len(targets) != q.batchSize {
		return 0, fmt.Errorf("step: invalid target batch\n\twant(%v)"+
			"\n\thave(%v)", q.batchSize, len(targets))
	}

	if err := q.net.SetInput(states); err != nil {
		return 0, fmt.Errorf("step: %v", err)
	}

	actionTensor := tensor.New(
		tensor.WithShape(q.batchSize, q.numActions),
		tensor.WithBacking(actions),
	)
	if err := G.Let(q.actions, actionTensor); err != nil {
		return 0, fmt.Errorf("step: could not set selected actions: %v", err)
	}

	targetTensor := tensor.New(
		tensor.WithShape(q.batchSize),
		tensor.WithBacking(targets),
	)
	if err := G.Let(q.targets, targetTensor); err != nil {
		return 0, fmt.Errorf("step: could not set update targets: %v", err)
	}

	if err := q.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("step: could not run training graph: %v", err)
	}
	loss := q.lossVal.Data().(float64)

	if err := q.solver.Step(q.net.Model()); err != nil {
		return 0, fmt.Errorf("step: could not step solver: %v", err)
	}
	q.vm.Reset()

	return loss, nil
}
