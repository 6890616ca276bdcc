// Package distributional implements support for distributional value
// heads: the categorical Bellman projection onto a fixed atom support
// and quantile-regression helpers.
package distributional

import (
	"fmt"
	"math"

	"github.com/Souphis/yadrl/utils/intutils"
)

// Support is a fixed discrete support of uniformly spaced atoms
// spanning [vMin, vMax].
type Support struct {
	vMin    float64
	vMax    float64
	atoms   int
	spacing float64
	values  []float64
}

// NewSupport returns a new Support of the given number of atoms.
func NewSupport(vMin, vMax float64, atoms int) (*Support, error) {
	if atoms < 2 {
		return nil, fmt.Errorf("newsupport: need at least 2 atoms, got %v",
			atoms)
	}
	if vMax <= vMin {
		return nil, fmt.Errorf("newsupport: need vMin < vMax, got [%v, %v]",
			vMin, vMax)
	}

	spacing := (vMax - vMin) / float64(atoms-1)
	values := make([]float64, atoms)
	for i := range values {
		values[i] = vMin + float64(i)*spacing
	}

	return &Support{
		vMin:    vMin,
		vMax:    vMax,
		atoms:   atoms,
		spacing: spacing,
		values:  values,
	}, nil
}

// Atoms returns the number of support atoms.
func (s *Support) Atoms() int {
	return s.atoms
}

// Spacing returns the distance between adjacent atoms.
func (s *Support) Spacing() float64 {
	return s.spacing
}

// Values returns a copy of the atom values.
func (s *Support) Values() []float64 {
	values := make([]float64, s.atoms)
	copy(values, s.values)
	return values
}

// Expectation returns the expected value of one atom-probability row
// under the support.
func (s *Support) Expectation(probs []float64) (float64, error) {
	if len(probs) != s.atoms {
		return 0, fmt.Errorf("expectation: invalid probability row length "+
			"\n\twant(%v)\n\thave(%v)", s.atoms, len(probs))
	}
	expectation := 0.0
	for i, p := range probs {
		expectation += p * s.values[i]
	}
	return expectation, nil
}

// Project computes the categorical-distributional Bellman projection.
// For every batch row, each atom z_j of the support is shifted to
//
//	Tz_j = clamp(reward + mask * discount * z_j, vMin, vMax)
//
// and its probability mass is redistributed onto the two support
// points neighbouring Tz_j proportionally to distance. When Tz_j lands
// exactly on a support point, all of its mass goes to that single
// point. Total probability mass is preserved per row.
//
// nextProbs holds batch rows of atom probabilities in row-major order;
// rewards and masks hold one value per row. The returned slice has the
// same layout as nextProbs.
func Project(nextProbs, rewards, masks []float64, discount float64,
	support *Support) ([]float64, error) {
	batchSize := len(rewards)
	if len(masks) != batchSize {
		return nil, fmt.Errorf("project: invalid mask length \n\twant(%v)"+
			"\n\thave(%v)", batchSize, len(masks))
	}
	if len(nextProbs) != batchSize*support.atoms {
		return nil, fmt.Errorf("project: invalid probability length "+
			"\n\twant(%v)\n\thave(%v)", batchSize*support.atoms,
			len(nextProbs))
	}

	projected := make([]float64, len(nextProbs))
	for i := 0; i < batchSize; i++ {
		row := projected[i*support.atoms : (i+1)*support.atoms]
		probs := nextProbs[i*support.atoms : (i+1)*support.atoms]

		for j := 0; j < support.atoms; j++ {
			tz := rewards[i] + masks[i]*discount*support.values[j]
			tz = math.Min(math.Max(tz, support.vMin), support.vMax)

			// Clamping tz to the support bounds does not guarantee
			// b lands in [0, atoms-1]: rounding in the division can
			// push it past either end, so the indices are clamped too
			b := (tz - support.vMin) / support.spacing
			lower := intutils.Max(int(math.Floor(b)), 0)
			upper := intutils.Min(int(math.Ceil(b)), support.atoms-1)

			if lower == upper {
				// Exactly on a support point: all mass to that point,
				// splitting here would drop the whole atom
				row[lower] += probs[j]
				continue
			}

			row[lower] += probs[j] * (float64(upper) - b)
			row[upper] += probs[j] * (b - float64(lower))
		}
	}

	return projected, nil
}
