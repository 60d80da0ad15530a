package forecast

import (
	"encoding/json"
	"math"
	"testing"
)

func TestSGDQuantile_OrdersQuantiles(t *testing.T) {
	x := []float64{0.5, 0.5, 0.2, 800, 28}
	models := map[float64]*SGDQuantile{}
	for _, a := range []float64{0.1, 0.5, 0.9} {
		models[a] = NewSGDQuantile(a, 0.01)
	}
	for i := 0; i < 20000; i++ {
		y := float64(i % 10)
		for _, m := range models {
			m.Learn(x, y)
		}
	}
	p10, p50, p90 := models[0.1].Predict(x), models[0.5].Predict(x), models[0.9].Predict(x)
	if !(p10 < p50 && p50 < p90) {
		t.Fatalf("quantiles not ordered: %v %v %v", p10, p50, p90)
	}
	if p50 < 3.5 || p50 > 5.5 {
		t.Fatalf("median estimate off: %v", p50)
	}
}

func TestSGDQuantile_DefaultLearningRate(t *testing.T) {
	m := NewSGDQuantile(0.5, 0)
	if m.LR != DefaultLearningRate || m.InterceptLR != DefaultLearningRate {
		t.Fatalf("unexpected rates %+v", m)
	}
	if m.Predict([]float64{1, 2}) != 0 {
		t.Fatalf("untrained model should predict 0")
	}
}

func TestScaler(t *testing.T) {
	var s Scaler
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Learn([]float64{v, 1})
	}
	if math.Abs(s.Mean[0]-5) > 1e-12 {
		t.Fatalf("mean %v", s.Mean[0])
	}
	z := s.Transform([]float64{7, 1})
	if math.Abs(z[0]-1) > 1e-9 {
		t.Fatalf("expected one standard deviation, got %v", z[0])
	}
	if z[1] != 0 {
		t.Fatalf("constant feature should scale to 0, got %v", z[1])
	}
}

func TestScaler_ResetsMismatchedStatistics(t *testing.T) {
	s := Scaler{Count: 4, Mean: []float64{1, 2}}
	s.Learn([]float64{3, 5})
	if s.Count != 1 || len(s.M2) != 2 {
		t.Fatalf("expected fresh statistics, got %+v", s)
	}
	if s.Mean[0] != 3 || s.Mean[1] != 5 {
		t.Fatalf("mean %v", s.Mean)
	}
}

func TestSGDQuantile_PartialSnapshotState(t *testing.T) {
	var m SGDQuantile
	if err := json.Unmarshal([]byte(`{"alpha":0.5,"lr":0.01,"intercept_lr":0.01,"scaler":{"count":3,"mean":[1,2,3]}}`), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	x := []float64{1, 2, 3}
	m.Learn(x, 10)
	if p := m.Predict(x); math.IsNaN(p) {
		t.Fatalf("prediction is NaN")
	}
}

func TestPinball(t *testing.T) {
	if PinballGradient(0.9, 10, 12) != 1-0.9 {
		t.Fatalf("over-prediction gradient")
	}
	if PinballGradient(0.9, 10, 8) != -0.9 {
		t.Fatalf("under-prediction gradient")
	}
	if math.Abs(PinballLoss(0.1, 10, 12)-1.8) > 1e-12 {
		t.Fatalf("loss %v", PinballLoss(0.1, 10, 12))
	}
	if math.Abs(PinballLoss(0.1, 10, 8)-0.2) > 1e-12 {
		t.Fatalf("loss %v", PinballLoss(0.1, 10, 8))
	}
}
