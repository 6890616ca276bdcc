package network

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	G "gorgonia.org/gorgonia"
)

func TestNewMLPShapes(t *testing.T) {
	g := G.NewGraph()
	net, err := NewMLP(4, 8, 3, g, []int{10, 5}, []bool{true, true},
		G.GlorotU(1.0), []*Activation{ReLU(), ReLU()})
	if err != nil {
		t.Fatal(err)
	}

	if net.Features() != 4 {
		t.Errorf("expected 4 features, got %v", net.Features())
	}
	if net.BatchSize() != 8 {
		t.Errorf("expected batch size 8, got %v", net.BatchSize())
	}
	if net.Outputs() != 3 {
		t.Errorf("expected 3 outputs, got %v", net.Outputs())
	}

	// Two hidden layers plus the final linear layer, each with a
	// weight and a bias node
	if len(net.Learnables()) != 6 {
		t.Errorf("expected 6 learnables, got %v", len(net.Learnables()))
	}

	shape := net.Prediction().Shape()
	if shape[0] != 8 || shape[1] != 3 {
		t.Errorf("expected prediction shape (8, 3), got %v", shape)
	}
}

func TestNewMLPInvalidConfig(t *testing.T) {
	g := G.NewGraph()
	_, err := NewMLP(4, 8, 3, g, []int{10, 5}, []bool{true},
		G.GlorotU(1.0), []*Activation{ReLU(), ReLU()})
	if err == nil {
		t.Error("expected error for mismatched bias count")
	}

	g = G.NewGraph()
	_, err = NewMLP(4, 8, 3, g, []int{10}, []bool{true},
		G.GlorotU(1.0), []*Activation{ReLU(), ReLU()})
	if err == nil {
		t.Error("expected error for mismatched activation count")
	}

	g = G.NewGraph()
	_, err = NewMLP(0, 8, 3, g, nil, nil, G.GlorotU(1.0), nil)
	if err == nil {
		t.Error("expected error for zero features")
	}
}

func TestCloneWithBatchIsIndependent(t *testing.T) {
	g := G.NewGraph()
	net, err := NewMLP(4, 1, 2, g, []int{6}, []bool{true},
		G.GlorotU(1.0), []*Activation{TanH()})
	if err != nil {
		t.Fatal(err)
	}

	clone, err := net.CloneWithBatch(16)
	if err != nil {
		t.Fatal(err)
	}

	if clone.BatchSize() != 16 {
		t.Errorf("expected clone batch size 16, got %v", clone.BatchSize())
	}
	if clone.Graph() == net.Graph() {
		t.Error("clone must live on its own graph")
	}

	// Cloned weights start equal to the source weights
	for i, learnable := range net.Learnables() {
		source := learnable.Value().Data().([]float64)
		cloned := clone.Learnables()[i].Value().Data().([]float64)
		for j := range source {
			if source[j] != cloned[j] {
				t.Fatalf("learnable %v differs at %v after clone", i, j)
			}
		}
	}
}

func TestSetCopiesWeights(t *testing.T) {
	g1 := G.NewGraph()
	source, err := NewMLP(3, 2, 2, g1, []int{4}, []bool{true},
		G.GlorotU(1.0), []*Activation{ReLU()})
	if err != nil {
		t.Fatal(err)
	}

	g2 := G.NewGraph()
	dest, err := NewMLP(3, 2, 2, g2, []int{4}, []bool{true},
		G.Zeroes(), []*Activation{ReLU()})
	if err != nil {
		t.Fatal(err)
	}

	if err := dest.Set(source); err != nil {
		t.Fatal(err)
	}

	for i, learnable := range source.Learnables() {
		sourceData := learnable.Value().Data().([]float64)
		destData := dest.Learnables()[i].Value().Data().([]float64)
		for j := range sourceData {
			if sourceData[j] != destData[j] {
				t.Fatalf("learnable %v differs at %v after Set", i, j)
			}
		}
	}
}

func TestPolyakBlendsWeights(t *testing.T) {
	g1 := G.NewGraph()
	source, err := NewMLP(3, 2, 2, g1, nil, nil, G.Ones(), nil)
	if err != nil {
		t.Fatal(err)
	}

	g2 := G.NewGraph()
	dest, err := NewMLP(3, 2, 2, g2, nil, nil, G.Zeroes(), nil)
	if err != nil {
		t.Fatal(err)
	}

	tau := 0.25
	if err := dest.Polyak(source, tau); err != nil {
		t.Fatal(err)
	}

	// Weights blend 0 with 1; biases blend 0 with 0
	weights := dest.Learnables()[0].Value().Data().([]float64)
	for i, w := range weights {
		if math.Abs(w-tau) > 1e-12 {
			t.Errorf("weight %v: expected %v, got %v", i, tau, w)
		}
	}
	biases := dest.Learnables()[1].Value().Data().([]float64)
	for i, b := range biases {
		if b != 0 {
			t.Errorf("bias %v: expected 0, got %v", i, b)
		}
	}
}

func TestMLPGobRoundTrip(t *testing.T) {
	g := G.NewGraph()
	net, err := NewMLP(3, 2, 2, g, []int{4}, []bool{true},
		G.GlorotU(1.0), []*Activation{TanH()})
	if err != nil {
		t.Fatal(err)
	}
	source := net.(*mlp)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(source); err != nil {
		t.Fatal(err)
	}

	decoded := new(mlp)
	if err := gob.NewDecoder(&buf).Decode(decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Features() != source.Features() ||
		decoded.BatchSize() != source.BatchSize() ||
		decoded.Outputs() != source.Outputs() {
		t.Fatalf("decoded architecture differs: (%v, %v, %v)",
			decoded.Features(), decoded.BatchSize(), decoded.Outputs())
	}

	for i, learnable := range source.Learnables() {
		sourceData := learnable.Value().Data().([]float64)
		decodedData := decoded.Learnables()[i].Value().Data().([]float64)
		for j := range sourceData {
			if sourceData[j] != decodedData[j] {
				t.Fatalf("learnable %v differs at %v after decode", i, j)
			}
		}
	}
}

func TestActorMLPGobKeepsOutputActivation(t *testing.T) {
	g := G.NewGraph()
	net, err := NewActorMLP(3, 2, 2, g, []int{4}, []bool{true},
		G.GlorotU(1.0), []*Activation{ReLU()}, TanH())
	if err != nil {
		t.Fatal(err)
	}
	source := net.(*mlp)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(source); err != nil {
		t.Fatal(err)
	}

	decoded := new(mlp)
	if err := gob.NewDecoder(&buf).Decode(decoded); err != nil {
		t.Fatal(err)
	}

	if len(decoded.layers) != len(source.layers) {
		t.Fatalf("decoded layer count differs: want %v, got %v",
			len(source.layers), len(decoded.layers))
	}

	// The actor's output layer bounds actions with a tanh; losing it to
	// an identity head would unbound the restored policy
	outputAct := decoded.layers[len(decoded.layers)-1].Activation()
	if outputAct.String() != TanH().String() {
		t.Errorf("expected tanh output activation after decode, got %v",
			outputAct)
	}

	for i, learnable := range source.Learnables() {
		sourceData := learnable.Value().Data().([]float64)
		decodedData := decoded.Learnables()[i].Value().Data().([]float64)
		for j := range sourceData {
			if sourceData[j] != decodedData[j] {
				t.Fatalf("learnable %v differs at %v after decode", i, j)
			}
		}
	}
}
