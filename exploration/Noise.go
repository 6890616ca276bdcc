// Package exploration implements stateful exploration-noise processes
// and epsilon schedules for off-policy agents.
package exploration

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Noise is a stateful exploration-noise source. Sample returns one
// perturbation of the action dimension; Reset restores the process to
// its initial state and is called on episode boundaries.
type Noise interface {
	Sample() []float64
	Reset()
}

// GaussianNoise samples i.i.d. normal perturbations with fixed mean
// and standard deviation.
type GaussianNoise struct {
	dim  int
	dist distuv.Normal
}

// NewGaussianNoise returns a new GaussianNoise of the given action
// dimension.
func NewGaussianNoise(dim int, mean, sigma float64,
	seed uint64) (*GaussianNoise, error) {
	if dim < 1 {
		return nil, fmt.Errorf("newgaussiannoise: dim must be >= 1, got %v",
			dim)
	}
	if sigma <= 0 {
		return nil, fmt.Errorf("newgaussiannoise: sigma must be > 0, got %v",
			sigma)
	}

	return &GaussianNoise{
		dim: dim,
		dist: distuv.Normal{
			Mu:    mean,
			Sigma: sigma,
			Src:   rand.NewSource(seed),
		},
	}, nil
}

// Sample returns one noise vector.
func (g *GaussianNoise) Sample() []float64 {
	noise := make([]float64, g.dim)
	for i := range noise {
		noise[i] = g.dist.Rand()
	}
	return noise
}

// Reset implements the Noise interface. A memoryless process has
// nothing to reset.
func (g *GaussianNoise) Reset() {}

// AdaptiveGaussianNoise samples normal perturbations whose standard
// deviation anneals linearly from sigma to sigmaMin over annealSteps
// samples.
type AdaptiveGaussianNoise struct {
	dim      int
	mean     float64
	sigma    float64
	sigmaMin float64
	step     float64
	dist     distuv.Normal
}

// NewAdaptiveGaussianNoise returns a new annealed Gaussian noise
// process.
func NewAdaptiveGaussianNoise(dim int, mean, sigma, sigmaMin float64,
	annealSteps float64, seed uint64) (*AdaptiveGaussianNoise, error) {
	if dim < 1 {
		return nil, fmt.Errorf("newadaptivegaussiannoise: dim must be >= 1, "+
			"got %v", dim)
	}
	if sigma < sigmaMin {
		return nil, fmt.Errorf("newadaptivegaussiannoise: sigma (%v) must "+
			"be >= sigmaMin (%v)", sigma, sigmaMin)
	}
	if annealSteps <= 0 {
		return nil, fmt.Errorf("newadaptivegaussiannoise: annealSteps must "+
			"be > 0, got %v", annealSteps)
	}

	return &AdaptiveGaussianNoise{
		dim:      dim,
		mean:     mean,
		sigma:    sigma,
		sigmaMin: sigmaMin,
		step:     (sigma - sigmaMin) / annealSteps,
		dist: distuv.Normal{
			Mu:    mean,
			Sigma: sigma,
			Src:   rand.NewSource(seed),
		},
	}, nil
}

// Sample returns one noise vector and anneals the standard deviation
// one step toward its minimum.
func (a *AdaptiveGaussianNoise) Sample() []float64 {
	noise := make([]float64, a.dim)
	for i := range noise {
		noise[i] = a.dist.Rand()
	}
	a.dist.Sigma = math.Max(a.dist.Sigma-a.step, a.sigmaMin)
	return noise
}

// Sigma returns the current annealed standard deviation.
func (a *AdaptiveGaussianNoise) Sigma() float64 {
	return a.dist.Sigma
}

// Reset restores the standard deviation to its initial value.
func (a *AdaptiveGaussianNoise) Reset() {
	a.dist.Sigma = a.sigma
}

// OUNoise samples temporally correlated perturbations from an
// Ornstein-Uhlenbeck process:
//
//	x <- x + theta * (mean - x) * dt + sigma * sqrt(dt) * N(0, 1)
//
// The standard deviation anneals linearly to sigmaMin over annealSteps
// samples. Reset returns the internal state to the mean.
type OUNoise struct {
	dim      int
	mean     float64
	theta    float64
	dt       float64
	sigma    float64
	sigmaMin float64
	step     float64

	currentSigma float64
	state        []float64
	dist         distuv.Normal
}

// NewOUNoise returns a new Ornstein-Uhlenbeck noise process.
func NewOUNoise(dim int, mean, theta, sigma, sigmaMin float64,
	annealSteps, dt float64, seed uint64) (*OUNoise, error) {
	if dim < 1 {
		return nil, fmt.Errorf("newounoise: dim must be >= 1, got %v", dim)
	}
	if sigma < sigmaMin {
		return nil, fmt.Errorf("newounoise: sigma (%v) must be >= sigmaMin "+
			"(%v)", sigma, sigmaMin)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("newounoise: dt must be > 0, got %v", dt)
	}

	step := 0.0
	if annealSteps > 0 {
		step = (sigma - sigmaMin) / annealSteps
	}

	noise := &OUNoise{
		dim:          dim,
		mean:         mean,
		theta:        theta,
		dt:           dt,
		sigma:        sigma,
		sigmaMin:     sigmaMin,
		step:         step,
		currentSigma: sigma,
		dist: distuv.Normal{
			Mu:    0.0,
			Sigma: 1.0,
			Src:   rand.NewSource(seed),
		},
	}
	noise.Reset()
	return noise, nil
}

// Sample advances the process one step and returns the new state.
func (o *OUNoise) Sample() []float64 {
	scale := o.currentSigma * math.Sqrt(o.dt)
	for i := range o.state {
		o.state[i] += o.theta*(o.mean-o.state[i])*o.dt + scale*o.dist.Rand()
	}
	o.currentSigma = math.Max(o.currentSigma-o.step, o.sigmaMin)

	out := make([]float64, o.dim)
	copy(out, o.state)
	return out
}

// Reset returns the internal state to the process mean.
func (o *OUNoise) Reset() {
	if o.state == nil {
		o.state = make([]float64, o.dim)
	}
	for i := range o.state {
		o.state[i] = o.mean
	}
}
