package replay

import (
	"math"
	"testing"
)

func TestRolloutNotReadyUntilFull(t *testing.T) {
	rollout, err := NewRollout(3, 0.5, 1, 1, Gonum)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		rollout.Push([]float64{float64(i)}, []float64{0}, 1.0)
		if _, ok := rollout.Transition([]float64{9}, false); ok {
			t.Fatalf("transition available after only %v pushes", i+1)
		}
	}

	rollout.Push([]float64{2}, []float64{0}, 1.0)
	transition, ok := rollout.Transition([]float64{9}, false)
	if !ok {
		t.Fatal("expected transition after n pushes")
	}

	// n=3, gamma=0.5, rewards [1, 1, 1]: 1 + 0.5 + 0.25
	if expected := 1.75; math.Abs(transition.Reward-expected) > 1e-12 {
		t.Errorf("expected cumulative reward %v, got %v", expected,
			transition.Reward)
	}
	if transition.State[0] != 0 {
		t.Errorf("expected oldest state 0, got %v", transition.State[0])
	}
	if transition.NextState[0] != 9 {
		t.Errorf("expected caller-supplied next state 9, got %v",
			transition.NextState[0])
	}
	if transition.Mask != 1.0 {
		t.Errorf("expected mask 1, got %v", transition.Mask)
	}
}

func TestRolloutSlidesWindow(t *testing.T) {
	rollout, _ := NewRollout(2, 0.9, 1, 1, Gonum)

	rollout.Push([]float64{0}, []float64{10}, 1.0)
	rollout.Push([]float64{1}, []float64{11}, 2.0)
	rollout.Push([]float64{2}, []float64{12}, 4.0)

	transition, ok := rollout.Transition([]float64{3}, true)
	if !ok {
		t.Fatal("expected transition from full window")
	}

	// Window now holds steps 1 and 2: reward 2 + 0.9*4
	if expected := 2.0 + 0.9*4.0; math.Abs(transition.Reward-expected) > 1e-12 {
		t.Errorf("expected reward %v, got %v", expected, transition.Reward)
	}
	if transition.State[0] != 1 || transition.Action[0] != 11 {
		t.Errorf("expected oldest surviving (state, action) = (1, 11), "+
			"got (%v, %v)", transition.State[0], transition.Action[0])
	}
	if transition.Mask != 0.0 {
		t.Errorf("expected mask 0 on done, got %v", transition.Mask)
	}
}

func TestRolloutReset(t *testing.T) {
	rollout, _ := NewRollout(2, 0.9, 1, 1, Gonum)
	rollout.Push([]float64{0}, []float64{0}, 1.0)
	rollout.Push([]float64{1}, []float64{0}, 1.0)

	rollout.Reset()
	if rollout.Ready() {
		t.Error("expected rollout not ready after reset")
	}
	if _, ok := rollout.Transition([]float64{2}, false); ok {
		t.Error("expected no transition after reset")
	}
}
