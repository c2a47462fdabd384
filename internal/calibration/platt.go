// Package calibration implements spec.md §4.9: the Calibration Trainer.
// Fitting logic is re-expressed (not translated) from
// original_source/src/bot/calibration.rs's gradient-descent Platt fit.
package calibration

import "math"

const epsilon = 1e-6

func clampProb(p float64) float64 {
	if p < epsilon {
		return epsilon
	}
	if p > 1-epsilon {
		return 1 - epsilon
	}
	return p
}

func logit(p float64) float64 {
	p = clampProb(p)
	return math.Log(p / (1 - p))
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		z := math.Exp(-x)
		return 1 / (1 + z)
	}
	z := math.Exp(x)
	return z / (1 + z)
}

func logLoss(p, y float64) float64 {
	p = clampProb(p)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

// Coefficients is a fitted Platt-scaling model: p_cal = sigmoid(a*logit(p_raw)+b).
type Coefficients struct {
	A, B float64
}

// Apply runs the fitted correction on a raw probability.
func (c Coefficients) Apply(pRaw float64) float64 {
	x := logit(pRaw)
	p := sigmoid(c.A*x + c.B)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Metrics holds before/after log-loss and Brier score from a fit attempt,
// used by the promotion gate.
type Metrics struct {
	LogLossBefore, LogLossAfter float64
	BrierBefore, BrierAfter     float64
}

// Sample is one (raw model probability, outcome) pair from a resolved position.
type Sample struct {
	RawProb float64
	Outcome float64 // 1.0 if the bet side won, else 0.0
}

// FitResult is a completed fit attempt's coefficients and evaluation metrics.
type FitResult struct {
	Coefficients Coefficients
	Metrics      Metrics
}

const minSamplesForFit = 8

// Fit runs maxIters gradient-descent steps with learning rate lr and L2
// penalty l2 over samples, returning nil if there are too few samples or
// all outcomes are identical (no signal to fit against).
func Fit(samples []Sample, maxIters int, lr, l2 float64) *FitResult {
	if len(samples) < minSamplesForFit {
		return nil
	}
	positives := 0
	for _, s := range samples {
		if s.Outcome > 0.5 {
			positives++
		}
	}
	if positives == 0 || positives == len(samples) {
		return nil
	}

	n := float64(len(samples))
	a, b := 1.0, 0.0

	if maxIters < 1 {
		maxIters = 1
	}
	for i := 0; i < maxIters; i++ {
		stepLR := lr / (1 + 0.01*float64(i))
		var gradA, gradB float64
		for _, s := range samples {
			x := logit(s.RawProb)
			p := sigmoid(a*x + b)
			err := p - s.Outcome
			gradA += err * x
			gradB += err
		}
		gradA = gradA/n + l2*a
		gradB /= n
		a -= stepLR * gradA
		b -= stepLR * gradB
		if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
			return nil
		}
	}

	model := Coefficients{A: a, B: b}
	var llBefore, llAfter, brBefore, brAfter float64
	for _, s := range samples {
		before := clampProb(s.RawProb)
		after := model.Apply(s.RawProb)
		llBefore += logLoss(before, s.Outcome)
		llAfter += logLoss(after, s.Outcome)
		brBefore += (before - s.Outcome) * (before - s.Outcome)
		brAfter += (after - s.Outcome) * (after - s.Outcome)
	}

	return &FitResult{
		Coefficients: model,
		Metrics: Metrics{
			LogLossBefore: llBefore / n,
			LogLossAfter:  llAfter / n,
			BrierBefore:   brBefore / n,
			BrierAfter:    brAfter / n,
		},
	}
}
