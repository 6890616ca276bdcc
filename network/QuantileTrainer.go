package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/Souphis/yadrl/distributional"
)

// QuantileTrainer updates a network whose outputs are quantile values
// of the return distribution. Predicted and target quantiles are
// compared pairwise with the asymmetric quantile Huber loss
//
//	rho_tau(u) = |tau - 1{u < 0}| * huber_kappa(u)
//
// where tau is the cumulative-density midpoint of each predicted
// quantile. The loss is averaged over target quantiles and the batch
// and summed over predicted quantiles.
type QuantileTrainer struct {
	net    NeuralNet
	vm     G.VM
	solver G.Solver

	targets *G.Node

	midpoints []float64
	kappa     float64

	batchSize int
	quantiles int
}

// NewQuantileTrainer adds the quantile Huber loss to net's graph and
// returns a trainer that performs gradient steps with solver. The
// network must output one value per quantile; midpoints holds the
// cumulative-density midpoint of each output.
func NewQuantileTrainer(net NeuralNet, solver G.Solver,
	midpoints []float64, kappa float64) (*QuantileTrainer, error) {
	quantiles := net.Outputs()
	if quantiles < 2 {
		return nil, fmt.Errorf("newquantiletrainer: need at least 2 "+
			"quantile outputs, got %v", quantiles)
	}
	if len(midpoints) != quantiles {
		return nil, fmt.Errorf("newquantiletrainer: invalid midpoint count"+
			"\n\twant(%v)\n\thave(%v)", quantiles, len(midpoints))
	}
	if kappa <= 0 {
		return nil, fmt.Errorf("newquantiletrainer: kappa must be > 0, "+
			"got %v", kappa)
	}

	g := net.Graph()
	batchSize := net.BatchSize()

	targets := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batchSize, quantiles), G.WithName("quantileTargets"))

	// Pairwise differences u[b, i, j] = target_j - predicted_i
	predCol := G.Must(G.Reshape(net.Prediction(),
		tensor.Shape{batchSize, quantiles, 1}))
	targRow := G.Must(G.Reshape(targets,
		tensor.Shape{batchSize, 1, quantiles}))
	u := G.Must(G.BroadcastSub(targRow, predCol, []byte{1}, []byte{2}))

	half := G.NewConstant(0.5)
	one := G.NewConstant(1.0)
	kappaNode := G.NewConstant(kappa)

	// Elementwise min(|u|, kappa) via 0.5 * (|u| + k - ||u| - k|)
	absU := G.Must(G.Abs(u))
	clipped := G.Must(G.Mul(half, G.Must(G.Sub(
		G.Must(G.Add(absU, kappaNode)),
		G.Must(G.Abs(G.Must(G.Sub(absU, kappaNode))))))))

	// huber_kappa(u) = 0.5*m^2 + kappa*(|u| - m) with m = min(|u|, k)
	huber := G.Must(G.Add(
		G.Must(G.Mul(half, G.Must(G.Square(clipped)))),
		G.Must(G.Mul(kappaNode, G.Must(G.Sub(absU, clipped))))))

	// |tau - 1{u < 0}|, with the indicator built from sign(u). The
	// indicator carries no gradient, matching its role as a constant
	// weight on the Huber term.
	indicator := G.Must(G.Mul(half, G.Must(G.Sub(one, G.Must(G.Sign(u))))))
	tauBacking := make([]float64, quantiles)
	copy(tauBacking, midpoints)
	taus := G.NewConstant(tensor.New(tensor.WithShape(1, quantiles, 1),
		tensor.WithBacking(tauBacking)), G.WithName("midpoints"))
	weight := G.Must(G.Abs(G.Must(G.BroadcastSub(taus, indicator,
		[]byte{0, 2}, nil))))

	// Mean over batch and target quantiles, sum over predicted ones
	rho := G.Must(G.HadamardProd(weight, huber))
	cost := G.Must(G.Mul(G.NewConstant(float64(quantiles)),
		G.Must(G.Mean(rho))))

	if _, err := G.Grad(cost, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newquantiletrainer: could not compute "+
			"gradient: %v", err)
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))

	taus2 := make([]float64, quantiles)
	copy(taus2, midpoints)

	return &QuantileTrainer{
		net:       net,
		vm:        vm,
		solver:    solver,
		targets:   targets,
		midpoints: taus2,
		kappa:     kappa,
		batchSize: batchSize,
		quantiles: quantiles,
	}, nil
}

// Net returns the network being trained.
func (q *QuantileTrainer) Net() NeuralNet {
	return q.net
}

// Step performs one gradient step. inputs holds batch rows of network
// inputs; targets holds one row of target quantile values per input
// row. It returns the loss before the step.
func (q *QuantileTrainer) Step(inputs, targets []float64) (float64,
	error) {
	if len(targets) != q.batchSize*q.quantiles {
		return 0, fmt.Errorf("step: invalid target batch\n\twant(%v)"+
			"\n\thave(%v)", q.batchSize*q.quantiles, len(targets))
	}

	if err := q.net.SetInput(inputs); err != nil {
		return 0, fmt.Errorf("step: %v", err)
	}

	targetTensor := tensor.New(
		tensor.WithShape(q.batchSize, q.quantiles),
		tensor.WithBacking(targets),
	)
	if err := G.Let(q.targets, targetTensor); err != nil {
		return 0, fmt.Errorf("step: could not set targets: %v", err)
	}

	if err := q.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("step: could not run training graph: %v", err)
	}

	// Report the pre-step loss from the forward pass output rather than
	// an extra graph read
	preds := q.net.Output().Data().([]float64)
	loss := 0.0
	for i := 0; i < q.batchSize; i++ {
		rowLoss, err := distributional.QuantileHuberLoss(
			preds[i*q.quantiles:(i+1)*q.quantiles],
			targets[i*q.quantiles:(i+1)*q.quantiles],
			q.midpoints, q.kappa)
		if err != nil {
			return 0, fmt.Errorf("step: %v", err)
		}
		loss += rowLoss / float64(q.batchSize)
	}

	if err := q.solver.Step(q.net.Model()); err != nil {
		return 0, fmt.Errorf("step: could not step solver: %v", err)
	}
	q.vm.Reset()

	return loss, nil
}
