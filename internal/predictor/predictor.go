package predictor

import (
	"hash/fnv"
	"math"
	"sync"

	"github.com/CatherineChiramel/Squirrel/internal/resource"
)

const (
	// DefaultDimensions is the size of the hashed feature space. URI
	// token sets are small, so collisions at this size are rare enough
	// not to hurt ranking quality.
	DefaultDimensions = 256

	// DefaultLearningRate is the step size for a single feedback update.
	DefaultLearningRate = 0.05
)

// Options configures a Predictor.
type Options struct {
	// Dimensions is the hashed feature space size. Values below 1 fall
	// back to DefaultDimensions.
	Dimensions int
	// LearningRate is the gradient step per feedback sample.
	// Non-positive values fall back to DefaultLearningRate.
	LearningRate float64
}

// DefaultOptions returns the options used for a zero Options value.
func DefaultOptions() Options {
	return Options{
		Dimensions:   DefaultDimensions,
		LearningRate: DefaultLearningRate,
	}
}

// Predictor is an online logistic regression model over hashed URI
// tokens. Score and Learn are safe for concurrent use.
type Predictor struct {
	mu      sync.RWMutex
	weights []float64
	bias    float64
	rate    float64
	samples int
}

// New creates an untrained model. The zero Options value selects
// DefaultOptions.
func New(opts Options) *Predictor {
	if opts.Dimensions < 1 {
		opts.Dimensions = DefaultDimensions
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultLearningRate
	}
	return &Predictor{
		weights: make([]float64, opts.Dimensions),
		rate:    opts.LearningRate,
	}
}

// Score returns the model's estimate, in [0, 1], that crawling the
// resource yields structured data. An untrained model returns 0.5 for
// everything.
func (p *Predictor) Score(res *resource.Resource) float64 {
	features := p.features(res)
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sigmoid(p.activationLocked(features))
}

// Learn updates the model with one feedback sample: relevant reports
// whether crawling the resource actually produced structured data.
func (p *Predictor) Learn(res *resource.Resource, relevant bool) {
	features := p.features(res)
	target := 0.0
	if relevant {
		target = 1.0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	gradient := p.rate * (target - sigmoid(p.activationLocked(features)))
	for _, i := range features {
		p.weights[i] += gradient
	}
	p.bias += gradient
	p.samples++
}

// Samples reports how many feedback updates the model has absorbed.
func (p *Predictor) Samples() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.samples
}

// features hashes the resource's URI tokens into weight indices. The
// same token always lands on the same index, so the model treats a
// token consistently across resources.
func (p *Predictor) features(res *resource.Resource) []uint32 {
	tokens := resource.Tokens(res)
	features := make([]uint32, 0, len(tokens))
	dims := uint32(len(p.weights))
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		features = append(features, h.Sum32()%dims)
	}
	return features
}

// activationLocked computes the raw linear score. Callers hold p.mu.
func (p *Predictor) activationLocked(features []uint32) float64 {
	z := p.bias
	for _, i := range features {
		z += p.weights[i]
	}
	return z
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
