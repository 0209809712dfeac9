package evaluation

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func buildConfusion(pairs [][2]Decision) Confusion {
	c := make(Confusion)
	for _, p := range pairs {
		c.Record(p[0], p[1])
	}
	return c
}

func TestPrecision_Perfect(t *testing.T) {
	c := buildConfusion([][2]Decision{
		{DecisionAllow, DecisionAllow},
		{DecisionAllow, DecisionAllow},
		{DecisionReject, DecisionReject},
	})
	if got := c.Precision(DecisionAllow); !almostEqual(got, 1.0) {
		t.Errorf("Precision(allow) = %v, want 1.0", got)
	}
}

func TestPrecision_FalsePositives(t *testing.T) {
	// Two selections predicted allow, only one truly allow.
	c := buildConfusion([][2]Decision{
		{DecisionAllow, DecisionAllow},
		{DecisionReject, DecisionAllow},
	})
	if got := c.Precision(DecisionAllow); !almostEqual(got, 0.5) {
		t.Errorf("Precision(allow) = %v, want 0.5", got)
	}
}

func TestPrecision_NeverPredicted(t *testing.T) {
	c := buildConfusion([][2]Decision{
		{DecisionNoise, DecisionUnsure},
	})
	if got := c.Precision(DecisionNoise); !almostEqual(got, 0.0) {
		t.Errorf("Precision(noise) = %v, want 0.0", got)
	}
}

func TestRecall_Partial(t *testing.T) {
	// Three reject selections, two caught.
	c := buildConfusion([][2]Decision{
		{DecisionReject, DecisionReject},
		{DecisionReject, DecisionReject},
		{DecisionReject, DecisionUnsure},
	})
	got := c.Recall(DecisionReject)
	if !almostEqual(got, 2.0/3.0) {
		t.Errorf("Recall(reject) = %v, want 2/3", got)
	}
}

func TestRecall_AbsentClass(t *testing.T) {
	c := buildConfusion([][2]Decision{
		{DecisionAllow, DecisionAllow},
	})
	if got := c.Recall(DecisionNoise); !almostEqual(got, 0.0) {
		t.Errorf("Recall(noise) = %v, want 0.0", got)
	}
}
