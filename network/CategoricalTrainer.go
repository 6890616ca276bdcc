package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// CategoricalTrainer updates a network whose output parameterizes one
// categorical value distribution per action. The network predicts
// numActions * atoms logits per state; the trainer reshapes them to
// (batch, actions, atoms), normalizes each action's atom distribution
// with a softmax, selects the distribution of the action actually
// taken, and minimizes the cross entropy to an externally projected
// target distribution.
type CategoricalTrainer struct {
	net    NeuralNet
	vm     G.VM
	solver G.Solver

	actionMask  *G.Node
	targetProbs *G.Node
	lossVal     G.Value

	batchSize  int
	numActions int
	atoms      int
}

// NewCategoricalTrainer adds the categorical cross-entropy loss to
// net's graph and returns a trainer that performs gradient steps with
// solver.
func NewCategoricalTrainer(net NeuralNet, solver G.Solver, numActions,
	atoms int) (*CategoricalTrainer, error) {
	if numActions < 1 || atoms < 2 {
		return nil, fmt.Errorf("newcategoricaltrainer: need at least 1 "+
			"action and 2 atoms, got (%v, %v)", numActions, atoms)
	}
	if net.Outputs() != numActions*atoms {
		return nil, fmt.Errorf("newcategoricaltrainer: invalid network "+
			"output size\n\twant(%v)\n\thave(%v)", numActions*atoms,
			net.Outputs())
	}

	g := net.Graph()
	batchSize := net.BatchSize()

	logits := G.Must(G.Reshape(net.Prediction(),
		tensor.Shape{batchSize, numActions, atoms}))
	probs := G.Must(G.SoftMax(logits, 2))

	// One-hot action mask expanded over the atom dimension picks out
	// the taken action's distribution
	actionMask := G.NewTensor(g, tensor.Float64, 3,
		G.WithShape(batchSize, numActions, atoms), G.WithName("actionMask"))
	chosen := G.Must(G.HadamardProd(probs, actionMask))
	chosen = G.Must(G.Sum(chosen, 1))

	logProbs := G.Must(G.Log(G.Must(G.Add(chosen,
		G.NewConstant(1e-8, G.WithName("logEpsilon"))))))

	targetProbs := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batchSize, atoms), G.WithName("targetProbs"))

	crossEntropy := G.Must(G.HadamardProd(targetProbs, logProbs))
	crossEntropy = G.Must(G.Sum(crossEntropy, 1))
	cost := G.Must(G.Neg(G.Must(G.Mean(crossEntropy))))

	var lossVal G.Value
	G.Read(cost, &lossVal)

	if _, err := G.Grad(cost, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newcategoricaltrainer: could not compute "+
			"gradient: %v", err)
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))

	return &CategoricalTrainer{
		net:         net,
		vm:          vm,
		solver:      solver,
		actionMask:  actionMask,
		targetProbs: targetProbs,
		lossVal:     lossVal,
		batchSize:   batchSize,
		numActions:  numActions,
		atoms:       atoms,
	}, nil
}

// Net returns the network being trained.
func (c *CategoricalTrainer) Net() NeuralNet {
	return c.net
}

// Step performs one gradient step. states holds batch rows of state
// features, actions holds one selected action index per row, and
// targetProbs holds batch rows of projected target atom probabilities.
// It returns the loss before the step.
func (c *CategoricalTrainer) Step(states []float64, actions []int,
	targetProbs []float64) (float64, error) {
	if len(actions) != c.batchSize {
		return 0, fmt.Errorf("step: invalid action batch\n\twant(%v)"+
			"\n\thave(%v)", c.batchSize, len(actions))
	}
	if len(targetProbs) != c.batchSize*c.atoms {
		return 0, fmt.Errorf("step: invalid target batch\n\twant(%v)"+
			"\n\thave(%v)", c.batchSize*c.atoms, len(targetProbs))
	}

	if err := c.net.SetInput(states); err != nil {
		return 0, fmt.Errorf("step: %v", err)
	}

	// Expand the action indices into a (batch, actions, atoms) mask
	mask := make([]float64, c.batchSize*c.numActions*c.atoms)
	for i, action := range actions {
		if action < 0 || action >= c.numActions {
			return 0, fmt.Errorf("step: action index out of range [0, %v): "+
				"%v", c.numActions, action)
		}
		offset := i*c.numActions*c.atoms + action*c.atoms
		for j := 0; j < c.atoms; j++ {
			mask[offset+j] = 1.0
		}
	}
	maskTensor := tensor.New(
		tensor.WithShape(c.batchSize, c.numActions, c.atoms),
		tensor.WithBacking(mask),
	)
	if err := G.Let(c.actionMask, maskTensor); err != nil {
		return 0, fmt.Errorf("step: could not set action mask: %v", err)
	}

	targetTensor := tensor.New(
		tensor.WithShape(c.batchSize, c.atoms),
		tensor.WithBacking(targetProbs),
	)
	if err := G.Let(c.targetProbs, targetTensor); err != nil {
		return 0, fmt.Errorf("step: could not set target probabilities: %v",
			err)
	}

	if err := c.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("step: could not run training graph: %v", err)
	}
	loss := c.lossVal.Data().(float64)

	if err := c.solver.Step(c.net.Model()); err != nil {
		return 0, fmt.Errorf("step: could not step solver: %v", err)
	}
	c.vm.Reset()

	return loss, nil
}
