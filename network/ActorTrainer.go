package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// ActorTrainer updates a deterministic policy network with the
// deterministic policy gradient. The critic's layers are cloned into
// the actor's graph so that the loss
//
//	loss = -mean[Q(s, π(s))]
//
// can be differentiated with respect to the actor's weights only. The
// clone's weights are refreshed from the live critic before every
// gradient step. Critics with several outputs per state-action pair,
// such as quantile value heads, are averaged over their outputs.
type ActorTrainer struct {
	actor  NeuralNet
	critic NeuralNet
	vm     G.VM
	solver G.Solver

	criticCloneLearnables G.Nodes
	lossVal               G.Value
}

// NewActorTrainer builds the actor loss on actor's graph and returns
// a trainer that performs gradient steps with solver. The critic must
// take the actor's state features concatenated with its action outputs
// as input.
func NewActorTrainer(actor, critic NeuralNet,
	solver G.Solver) (*ActorTrainer, error) {
	actorMLP, ok := actor.(*mlp)
	if !ok {
		return nil, fmt.Errorf("newactortrainer: actor must be an MLP")
	}
	criticMLP, ok := critic.(*mlp)
	if !ok {
		return nil, fmt.Errorf("newactortrainer: critic must be an MLP")
	}

	if critic.Features() != actor.Features()+actor.Outputs() {
		return nil, fmt.Errorf("newactortrainer: critic input size must be "+
			"state plus action features\n\twant(%v)\n\thave(%v)",
			actor.Features()+actor.Outputs(), critic.Features())
	}
	if critic.BatchSize() != actor.BatchSize() {
		return nil, fmt.Errorf("newactortrainer: critic and actor batch "+
			"sizes differ\n\twant(%v)\n\thave(%v)", actor.BatchSize(),
			critic.BatchSize())
	}

	g := actor.Graph()

	// Clone the critic layers into the actor's graph and run them on
	// the actor's state input concatenated with its action prediction
	cloneLayers := make([]Layer, len(criticMLP.layers))
	cloneLearnables := make(G.Nodes, 0, 2*len(criticMLP.layers))
	for i := range criticMLP.layers {
		cloneLayers[i] = criticMLP.layers[i].CloneTo(g)
		cloneLearnables = append(cloneLearnables, cloneLayers[i].Weights())
		if bias := cloneLayers[i].Bias(); bias != nil {
			cloneLearnables = append(cloneLearnables, bias)
		}
	}

	pred := G.Must(G.Concat(1, actorMLP.input, actor.Prediction()))
	var err error
	for i, l := range cloneLayers {
		if pred, err = l.fwd(pred); err != nil {
			return nil, fmt.Errorf("newactortrainer: could not compute "+
				"critic forward pass at layer %v: %v", i, err)
		}
	}

	cost := G.Must(G.Neg(G.Must(G.Mean(pred))))

	var lossVal G.Value
	G.Read(cost, &lossVal)

	if _, err := G.Grad(cost, actor.Learnables()...); err != nil {
		return nil, fmt.Errorf("newactortrainer: could not compute "+
			"gradient: %v", err)
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(actor.Learnables()...))

	return &ActorTrainer{
		actor:                 actor,
		critic:                critic,
		vm:                    vm,
		solver:                solver,
		criticCloneLearnables: cloneLearnables,
		lossVal:               lossVal,
	}, nil
}

// Net returns the actor network being trained.
func (a *ActorTrainer) Net() NeuralNet {
	return a.actor
}

// Step performs one gradient step on the actor. states holds batch
// rows of state features. It returns the loss before the step.
func (a *ActorTrainer) Step(states []float64) (float64, error) {
	// Refresh the critic clone with the live critic's weights
	criticLearnables := a.critic.Learnables()
	for i, node := range a.criticCloneLearnables {
		value := criticLearnables[i].Clone().(*G.Node).Value()
		if err := G.Let(node, value); err != nil {
			return 0, fmt.Errorf("step: could not refresh critic clone: %v",
				err)
		}
	}

	if err := a.actor.SetInput(states); err != nil {
		return 0, fmt.Errorf("step: %v", err)
	}

	if err := a.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("step: could not run training graph: %v", err)
	}
	loss := a.lossVal.Data().(float64)

	if err := a.solver.Step(a.actor.Model()); err != nil {
		return 0, fmt.Errorf("step: could not step solver: %v", err)
	}
	a.vm.Reset()

	return loss, nil
}
