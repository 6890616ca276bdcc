package replay

import "testing"

func testTransition(i int, done bool) Transition {
	v := float64(i)
	return NewTransition(
		[]float64{v, v + 0.5},
		[]float64{-v},
		v*0.1,
		[]float64{v + 1, v + 1.5},
		done,
	)
}

func newTestMemory(t *testing.T, capacity int, combined bool) *Memory {
	t.Helper()
	memory, err := New(Config{
		Capacity:  capacity,
		StateDim:  2,
		ActionDim: 1,
		Combined:  combined,
		Backend:   Gonum,
		Seed:      13,
	})
	if err != nil {
		t.Fatal(err)
	}
	return memory
}

func TestMemoryPushEviction(t *testing.T) {
	memory := newTestMemory(t, 5, false)

	for i := 1; i <= 10; i++ {
		if err := memory.Push(testTransition(i, false)); err != nil {
			t.Fatal(err)
		}
	}

	if memory.Size() != 5 {
		t.Errorf("expected size 5, got %v", memory.Size())
	}

	// Transitions 6-10 should survive in order
	for i := 0; i < 5; i++ {
		state, err := memory.state.At(i)
		if err != nil {
			t.Fatal(err)
		}
		if expected := float64(i + 6); state[0] != expected {
			t.Errorf("logical index %v: expected state %v, got %v", i,
				expected, state[0])
		}
	}
}

func TestMemorySampleShape(t *testing.T) {
	memory := newTestMemory(t, 10, false)
	for i := 0; i < 4; i++ {
		memory.Push(testTransition(i, false))
	}

	batch, err := memory.Sample(7)
	if err != nil {
		t.Fatal(err)
	}

	if batch.Size() != 7 {
		t.Errorf("expected batch size 7, got %v", batch.Size())
	}
	if len(batch.States) != 7*2 || len(batch.NextStates) != 7*2 {
		t.Error("state fields have wrong leading dimension")
	}
	if len(batch.Actions) != 7 || len(batch.Rewards) != 7 ||
		len(batch.Masks) != 7 {
		t.Error("scalar fields have wrong leading dimension")
	}

	if r, c := batch.StateTensor().Shape()[0],
		batch.StateTensor().Shape()[1]; r != 7 || c != 2 {
		t.Errorf("state tensor shape: expected (7, 2), got (%v, %v)", r, c)
	}
}

func TestMemorySampleWithReplacementExceedsSize(t *testing.T) {
	memory := newTestMemory(t, 10, false)
	memory.Push(testTransition(1, false))

	batch, err := memory.Sample(4)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < batch.Size(); i++ {
		if batch.States[i*2] != 1.0 {
			t.Errorf("expected every member to be transition 1, got state %v",
				batch.States[i*2])
		}
	}
}

func TestMemorySampleEmpty(t *testing.T) {
	memory := newTestMemory(t, 10, false)
	_, err := memory.Sample(2)
	if !IsEmptyMemory(err) {
		t.Errorf("expected empty memory error, got %v", err)
	}
}

func TestMemoryCombinedIncludesNewest(t *testing.T) {
	memory := newTestMemory(t, 8, true)
	for i := 1; i <= 6; i++ {
		memory.Push(testTransition(i, false))
	}

	for trial := 0; trial < 25; trial++ {
		batch, err := memory.Sample(4)
		if err != nil {
			t.Fatal(err)
		}

		newest := 0
		for i := 0; i < batch.Size(); i++ {
			if batch.States[i*2] == 6.0 {
				newest++
			}
		}
		if newest != 1 {
			t.Fatalf("trial %v: newest transition appeared %v times, want "+
				"exactly 1", trial, newest)
		}
	}
}

func TestMemoryCombinedNeedsTwoTransitions(t *testing.T) {
	memory := newTestMemory(t, 8, true)
	memory.Push(testTransition(1, false))

	_, err := memory.Sample(2)
	if !IsInsufficientSamples(err) {
		t.Errorf("expected insufficient samples error, got %v", err)
	}

	memory.Push(testTransition(2, false))
	if _, err := memory.Sample(2); err != nil {
		t.Errorf("expected combined sampling to succeed with size 2: %v", err)
	}
}

func TestMemoryPushAtomicity(t *testing.T) {
	memory := newTestMemory(t, 8, false)

	bad := testTransition(1, false)
	bad.Action = []float64{1, 2, 3}
	if err := memory.Push(bad); err == nil {
		t.Fatal("expected error pushing transition with bad action size")
	}
	if memory.Size() != 0 {
		t.Errorf("failed push left partial state: size %v", memory.Size())
	}

	bad = testTransition(1, false)
	bad.Mask = 0.5
	if err := memory.Push(bad); err == nil {
		t.Fatal("expected error pushing transition with non-binary mask")
	}
	if memory.Size() != 0 {
		t.Errorf("failed push left partial state: size %v", memory.Size())
	}
}

func TestMemoryConfigValidate(t *testing.T) {
	config := Config{
		Capacity:  1,
		StateDim:  2,
		ActionDim: 1,
		Combined:  true,
		Backend:   Gonum,
	}
	if err := config.Validate(); err == nil {
		t.Error("expected combined sampling with capacity 1 to be rejected")
	}

	config.Combined = false
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestBatchIsDeepCopy(t *testing.T) {
	memory := newTestMemory(t, 2, false)
	memory.Push(testTransition(1, false))
	memory.Push(testTransition(2, false))

	batch, err := memory.Sample(2)
	if err != nil {
		t.Fatal(err)
	}
	states := make([]float64, len(batch.States))
	copy(states, batch.States)

	// Evict everything sampled
	memory.Push(testTransition(3, false))
	memory.Push(testTransition(4, false))

	for i := range states {
		if batch.States[i] != states[i] {
			t.Fatal("batch mutated by pushes after sampling")
		}
	}
}
