package calibration

import "testing"

func TestFitImprovesOverconfidentSyntheticProbabilities(t *testing.T) {
	var samples []Sample
	for i := 1; i < 100; i++ {
		pTrue := float64(i) / 100.0
		pRaw := clampProb((pTrue-0.5)*1.8 + 0.5)
		var y float64
		switch {
		case pTrue > 0.65:
			y = 1.0
		case pTrue < 0.35:
			y = 0.0
		default:
			y = float64(i % 2)
		}
		samples = append(samples, Sample{RawProb: pRaw, Outcome: y})
	}

	result := Fit(samples, 500, 0.2, 1e-3)
	if result == nil {
		t.Fatal("expected fit to succeed")
	}
	if result.Metrics.LogLossAfter >= result.Metrics.LogLossBefore {
		t.Fatalf("expected log-loss improvement, before=%f after=%f", result.Metrics.LogLossBefore, result.Metrics.LogLossAfter)
	}
}

func TestFitReturnsNilBelowMinimumSamples(t *testing.T) {
	samples := []Sample{{RawProb: 0.6, Outcome: 1}, {RawProb: 0.4, Outcome: 0}}
	if Fit(samples, 100, 0.2, 1e-3) != nil {
		t.Fatal("expected nil fit for too-few samples")
	}
}

func TestFitReturnsNilWithNoClassVariation(t *testing.T) {
	var samples []Sample
	for i := 0; i < 20; i++ {
		samples = append(samples, Sample{RawProb: 0.7, Outcome: 1})
	}
	if Fit(samples, 100, 0.2, 1e-3) != nil {
		t.Fatal("expected nil fit when all outcomes are identical")
	}
}

func TestApplyBoundsOutput(t *testing.T) {
	m := Coefficients{A: 1.2, B: -0.1}
	p := m.Apply(0.999999)
	if p < 0 || p > 1 {
		t.Fatalf("expected output in [0,1], got %f", p)
	}
}
