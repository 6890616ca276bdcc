package distributional

import (
	"fmt"
	"math"
)

// Midpoints returns the cumulative-density midpoints (i + 0.5) / n
// used as quantile targets by quantile-regression value heads.
func Midpoints(n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("midpoints: need at least 1 quantile, got %v",
			n)
	}
	midpoints := make([]float64, n)
	for i := range midpoints {
		midpoints[i] = (float64(i) + 0.5) / float64(n)
	}
	return midpoints, nil
}

// huber is the Huber loss with threshold kappa.
func huber(u, kappa float64) float64 {
	if math.Abs(u) <= kappa {
		return 0.5 * u * u
	}
	return kappa * (math.Abs(u) - 0.5*kappa)
}

// QuantileHuberLoss computes the asymmetric quantile Huber loss
// between one row of predicted quantiles and one row of target
// quantiles, averaged over target quantiles and summed over predicted
// quantiles. midpoints holds the cumulative-density midpoint for each
// predicted quantile.
func QuantileHuberLoss(predicted, targets, midpoints []float64,
	kappa float64) (float64, error) {
	if len(predicted) != len(midpoints) {
		return 0, fmt.Errorf("quantilehuberloss: invalid midpoint length "+
			"\n\twant(%v)\n\thave(%v)", len(predicted), len(midpoints))
	}
	if kappa <= 0 {
		return 0, fmt.Errorf("quantilehuberloss: kappa must be > 0, got %v",
			kappa)
	}

	loss := 0.0
	for i, p := range predicted {
		rowLoss := 0.0
		for _, target := range targets {
			u := target - p
			weight := midpoints[i]
			if u < 0 {
				weight = 1.0 - midpoints[i]
			}
			rowLoss += weight * huber(u, kappa)
		}
		loss += rowLoss / float64(len(targets))
	}
	return loss, nil
}
