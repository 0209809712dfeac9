package evaluation

import "time"

// Decision is the gate outcome recorded for a selection before any card is
// generated.
type Decision string

const (
	DecisionAllow  Decision = "allow"  // taxonomy allows, generation proceeds
	DecisionReject Decision = "reject" // taxonomy rejects with a reason
	DecisionUnsure Decision = "unsure" // falls through to the LLM validator
	DecisionNoise  Decision = "noise"  // dropped by the noise gate
)

// ValidDecisions returns all valid decision values.
func ValidDecisions() []Decision {
	return []Decision{DecisionAllow, DecisionReject, DecisionUnsure, DecisionNoise}
}

// IsValid checks if the decision value is one of the defined constants.
func (d Decision) IsValid() bool {
	switch d {
	case DecisionAllow, DecisionReject, DecisionUnsure, DecisionNoise:
		return true
	}
	return false
}

// GoldenSelection represents a labeled report selection with the gate
// decision a correct pipeline should reach for it.
type GoldenSelection struct {
	ID         string   `json:"id"`
	Selection  string   `json:"selection"`
	Modality   string   `json:"modality"`
	Expected   Decision `json:"expected"`
	Difficulty string   `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the evaluation outcome for a single selection.
type EvalResult struct {
	SelectionID string
	Selection   string
	Modality    string
	Expected    Decision
	Actual      Decision
	Reason      string
	Correct     bool
	Latency     time.Duration
}

// EvalSummary holds aggregate metrics across all golden selections.
type EvalSummary struct {
	TotalSelections int
	Correct         int
	Accuracy        float64
	AvgLatency      time.Duration
	ByExpected      map[Decision]*DecisionSummary
	Mismatches      []EvalResult
}

// DecisionSummary holds metrics grouped by expected decision.
type DecisionSummary struct {
	Count     int
	Correct   int
	Accuracy  float64
	Precision float64
	Recall    float64
}
