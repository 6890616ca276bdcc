package distributional

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

func TestProjectPreservesMass(t *testing.T) {
	support, err := NewSupport(-10, 10, 51)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(42))
	batchSize := 32

	nextProbs := make([]float64, batchSize*support.Atoms())
	rewards := make([]float64, batchSize)
	masks := make([]float64, batchSize)
	for i := 0; i < batchSize; i++ {
		row := nextProbs[i*support.Atoms() : (i+1)*support.Atoms()]
		for j := range row {
			row[j] = rng.Float64()
		}
		floats.Scale(1.0/floats.Sum(row), row)

		rewards[i] = rng.Float64()*20 - 10
		if rng.Float64() < 0.5 {
			masks[i] = 1.0
		}
	}

	projected, err := Project(nextProbs, rewards, masks, 0.99, support)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < batchSize; i++ {
		row := projected[i*support.Atoms() : (i+1)*support.Atoms()]
		if mass := floats.Sum(row); math.Abs(mass-1.0) > 1e-5 {
			t.Errorf("row %v: projected mass %v, want 1.0", i, mass)
		}
		for j, p := range row {
			if p < 0 {
				t.Errorf("row %v atom %v: negative mass %v", i, j, p)
			}
		}
	}
}

func TestProjectExactGridPoint(t *testing.T) {
	// Support {0, 1, 2, 3, 4} with spacing 1
	support, err := NewSupport(0, 4, 5)
	if err != nil {
		t.Fatal(err)
	}

	// All mass on atom z=2; reward 1, discount 1, mask 1 shifts it to
	// exactly z=3, a grid point. The mass must land entirely on that
	// atom rather than being split or dropped.
	nextProbs := []float64{0, 0, 1, 0, 0}
	projected, err := Project(nextProbs, []float64{1}, []float64{1}, 1.0,
		support)
	if err != nil {
		t.Fatal(err)
	}

	expected := []float64{0, 0, 0, 1, 0}
	for i := range expected {
		if math.Abs(projected[i]-expected[i]) > 1e-12 {
			t.Errorf("atom %v: expected %v, got %v", i, expected[i],
				projected[i])
		}
	}
}

func TestProjectTerminalCollapsesToReward(t *testing.T) {
	support, _ := NewSupport(0, 4, 5)

	// mask=0 kills the bootstrapped term, so every atom shifts to the
	// raw reward 2.5, splitting mass between atoms 2 and 3
	nextProbs := []float64{0.2, 0.2, 0.2, 0.2, 0.2}
	projected, err := Project(nextProbs, []float64{2.5}, []float64{0}, 0.99,
		support)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(projected[2]-0.5) > 1e-12 ||
		math.Abs(projected[3]-0.5) > 1e-12 {
		t.Errorf("expected mass split 0.5/0.5 between atoms 2 and 3, got %v",
			projected)
	}
}

func TestProjectClampsAtBounds(t *testing.T) {
	support, _ := NewSupport(0, 4, 5)

	// Huge reward pushes every shifted atom past vMax; all mass must
	// pile up on the last atom
	nextProbs := []float64{0.25, 0.25, 0.25, 0.25, 0}
	projected, err := Project(nextProbs, []float64{100}, []float64{1}, 0.99,
		support)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(projected[4]-1.0) > 1e-12 {
		t.Errorf("expected all mass on final atom, got %v", projected)
	}
}

func TestProjectBoundaryRounding(t *testing.T) {
	// Atom counts whose spacing is not exactly representable. A reward
	// equal to a support bound shifts atoms onto that bound, where the
	// index arithmetic (tz - vMin) / spacing can round past the grid.
	cases := []struct {
		atoms      int
		vMin, vMax float64
	}{
		{197, -1, 1},
		{198, 0, 1},
		{197, 0, 1},
		{179, 0, 0.7},
		{180, 0, 0.7},
		{189, 0, 3},
	}

	for _, c := range cases {
		support, err := NewSupport(c.vMin, c.vMax, c.atoms)
		if err != nil {
			t.Fatal(err)
		}

		nextProbs := make([]float64, c.atoms)
		nextProbs[c.atoms-1] = 1.0

		for _, reward := range []float64{c.vMax, c.vMin} {
			projected, err := Project(nextProbs, []float64{reward},
				[]float64{0}, 0.99, support)
			if err != nil {
				t.Fatal(err)
			}

			if mass := floats.Sum(projected); math.Abs(mass-1.0) > 1e-9 {
				t.Errorf("atoms %v span [%v, %v] reward %v: projected mass "+
					"%v, want 1.0", c.atoms, c.vMin, c.vMax, reward, mass)
			}

			edge := 0
			if reward == c.vMax {
				edge = c.atoms - 1
			}
			if math.Abs(projected[edge]-1.0) > 1e-9 {
				t.Errorf("atoms %v span [%v, %v] reward %v: expected all "+
					"mass on atom %v, got %v there", c.atoms, c.vMin, c.vMax,
					reward, edge, projected[edge])
			}
		}
	}
}

func TestSupportExpectation(t *testing.T) {
	support, _ := NewSupport(-1, 1, 3)

	expectation, err := support.Expectation([]float64{0.25, 0.5, 0.25})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(expectation) > 1e-12 {
		t.Errorf("expected symmetric distribution to have mean 0, got %v",
			expectation)
	}

	expectation, _ = support.Expectation([]float64{0, 0, 1})
	if math.Abs(expectation-1.0) > 1e-12 {
		t.Errorf("expected mean 1.0, got %v", expectation)
	}
}

func TestMidpoints(t *testing.T) {
	midpoints, err := Midpoints(4)
	if err != nil {
		t.Fatal(err)
	}

	expected := []float64{0.125, 0.375, 0.625, 0.875}
	for i := range expected {
		if math.Abs(midpoints[i]-expected[i]) > 1e-12 {
			t.Errorf("midpoint %v: expected %v, got %v", i, expected[i],
				midpoints[i])
		}
	}
}
