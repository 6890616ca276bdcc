package replay

import "testing"

func TestRingBufferEvictsOldest(t *testing.T) {
	for _, backend := range []Backend{Gonum, Tensor} {
		buffer, err := NewRingBuffer(5, 1, backend)
		if err != nil {
			t.Fatal(err)
		}

		for i := 1; i <= 10; i++ {
			if err := buffer.Add([]float64{float64(i)}); err != nil {
				t.Fatal(err)
			}
		}

		if buffer.Size() != 5 {
			t.Errorf("%v: expected size 5, got %v", backend, buffer.Size())
		}

		// The buffer should hold the most recent 5 values in insertion
		// order: 6, 7, 8, 9, 10
		for i := 0; i < 5; i++ {
			value, err := buffer.At(i)
			if err != nil {
				t.Fatal(err)
			}
			if expected := float64(i + 6); value[0] != expected {
				t.Errorf("%v: logical index %v: expected %v, got %v",
					backend, i, expected, value[0])
			}
		}
	}
}

func TestRingBufferPartialFill(t *testing.T) {
	buffer, err := NewRingBuffer(4, 2, Gonum)
	if err != nil {
		t.Fatal(err)
	}

	buffer.Add([]float64{1, 2})
	buffer.Add([]float64{3, 4})

	if buffer.Size() != 2 {
		t.Errorf("expected size 2, got %v", buffer.Size())
	}

	stacked, err := buffer.Sample([]int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	expected := []float64{1, 2, 3, 4}
	for i := range expected {
		if stacked[i] != expected[i] {
			t.Errorf("stacked sample: expected %v at %v, got %v",
				expected[i], i, stacked[i])
		}
	}
}

func TestRingBufferSampleOutOfRange(t *testing.T) {
	buffer, _ := NewRingBuffer(3, 1, Gonum)
	buffer.Add([]float64{1})

	_, err := buffer.Sample([]int{1})
	if !IsIndexOutOfRange(err) {
		t.Errorf("expected index out of range error, got %v", err)
	}

	_, err = buffer.Sample([]int{-1})
	if !IsIndexOutOfRange(err) {
		t.Errorf("expected index out of range error, got %v", err)
	}
}

func TestRingBufferSampleIsCopy(t *testing.T) {
	buffer, _ := NewRingBuffer(2, 1, Gonum)
	buffer.Add([]float64{1})
	buffer.Add([]float64{2})

	sampled, err := buffer.Sample([]int{0})
	if err != nil {
		t.Fatal(err)
	}

	// Evict the sampled element; the earlier sample must be unaffected
	buffer.Add([]float64{3})
	if sampled[0] != 1 {
		t.Errorf("sample mutated by later add: expected 1, got %v", sampled[0])
	}
}

func TestRingBufferReset(t *testing.T) {
	buffer, _ := NewRingBuffer(3, 1, Tensor)
	buffer.Add([]float64{1})
	buffer.Add([]float64{2})

	buffer.Reset()
	if buffer.Size() != 0 {
		t.Errorf("expected size 0 after reset, got %v", buffer.Size())
	}

	if _, err := buffer.Sample([]int{0}); !IsIndexOutOfRange(err) {
		t.Errorf("expected index out of range after reset, got %v", err)
	}

	buffer.Add([]float64{7})
	value, _ := buffer.At(0)
	if value[0] != 7 {
		t.Errorf("expected 7 after reset and add, got %v", value[0])
	}
}

func TestRingBufferAddWrongDim(t *testing.T) {
	buffer, _ := NewRingBuffer(3, 2, Gonum)
	if err := buffer.Add([]float64{1}); err == nil {
		t.Error("expected error adding element of wrong dimension")
	}
	if buffer.Size() != 0 {
		t.Errorf("failed add changed size: %v", buffer.Size())
	}
}
