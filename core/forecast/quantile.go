package forecast

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// QuantileModel is an online regressor for one quantile level.
type QuantileModel interface {
	Predict(x []float64) float64
	Learn(x []float64, y float64)
}

// ModelFactory builds a fresh model for the quantile level alpha.
type ModelFactory func(alpha float64) QuantileModel

// Scaler standardises features with running mean and variance (Welford).
type Scaler struct {
	Count int       `json:"count"`
	Mean  []float64 `json:"mean"`
	M2    []float64 `json:"m2"`
}

// ensure resets statistics whose shape does not match n features, as left
// by a partial snapshot.
func (s *Scaler) ensure(n int) {
	if len(s.Mean) != n || len(s.M2) != n {
		s.Mean = make([]float64, n)
		s.M2 = make([]float64, n)
		s.Count = 0
	}
}

// Learn folds x into the running statistics.
func (s *Scaler) Learn(x []float64) {
	s.ensure(len(x))
	s.Count++
	c := float64(s.Count)
	for i, v := range x {
		d := v - s.Mean[i]
		s.Mean[i] += d / c
		s.M2[i] += d * (v - s.Mean[i])
	}
}

// Transform returns the standardised copy of x. Features with zero
// variance map to 0.
func (s *Scaler) Transform(x []float64) []float64 {
	s.ensure(len(x))
	out := make([]float64, len(x))
	if s.Count == 0 {
		return out
	}
	c := float64(s.Count)
	for i, v := range x {
		sd := math.Sqrt(s.M2[i] / c)
		if sd > 0 {
			out[i] = (v - s.Mean[i]) / sd
		}
	}
	return out
}

// SGDQuantile is a linear model on standardised features trained by
// stochastic gradient descent on the pinball loss at level Alpha.
type SGDQuantile struct {
	Alpha       float64   `json:"alpha"`
	LR          float64   `json:"lr"`
	InterceptLR float64   `json:"intercept_lr"`
	Scaler      Scaler    `json:"scaler"`
	Weights     []float64 `json:"weights"`
	Intercept   float64   `json:"intercept"`
}

// DefaultLearningRate is the SGD step for weights and intercept.
const DefaultLearningRate = 0.01

// NewSGDQuantile returns an untrained model for quantile alpha.
func NewSGDQuantile(alpha, lr float64) *SGDQuantile {
	if lr <= 0 {
		lr = DefaultLearningRate
	}
	return &SGDQuantile{Alpha: alpha, LR: lr, InterceptLR: lr}
}

// SGDFactory returns a ModelFactory of SGDQuantile models.
func SGDFactory(lr float64) ModelFactory {
	return func(alpha float64) QuantileModel { return NewSGDQuantile(alpha, lr) }
}

func (q *SGDQuantile) raw(z []float64) float64 {
	if len(q.Weights) != len(z) {
		q.Weights = make([]float64, len(z))
	}
	return floats.Dot(q.Weights, z) + q.Intercept
}

// Predict returns the current estimate of the alpha quantile for x.
func (q *SGDQuantile) Predict(x []float64) float64 {
	return q.raw(q.Scaler.Transform(x))
}

// Learn updates the scaler with x, then takes one SGD step on the pinball
// loss for target y.
func (q *SGDQuantile) Learn(x []float64, y float64) {
	q.Scaler.Learn(x)
	z := q.Scaler.Transform(x)
	g := PinballGradient(q.Alpha, y, q.raw(z))
	floats.AddScaled(q.Weights, -q.LR*g, z)
	q.Intercept -= q.InterceptLR * g
}

// PinballGradient is the derivative of the pinball loss with respect to the
// prediction: 1-alpha when over-predicting, -alpha otherwise.
func PinballGradient(alpha, yTrue, yPred float64) float64 {
	if yPred > yTrue {
		return 1 - alpha
	}
	return -alpha
}

// PinballLoss is the quantile loss of a single prediction.
func PinballLoss(alpha, yTrue, yPred float64) float64 {
	d := yTrue - yPred
	if d >= 0 {
		return alpha * d
	}
	return (alpha - 1) * d
}
