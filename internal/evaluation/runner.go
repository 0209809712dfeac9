package evaluation

import (
	"context"
	"time"
)

// SelectionGater classifies a selection without calling any provider.
type SelectionGater interface {
	Assess(ctx context.Context, selection, modality string) (Decision, string)
}

// Runner runs evaluation across a set of golden selections.
type Runner struct {
	gater SelectionGater
}

func NewRunner(gater SelectionGater) *Runner {
	return &Runner{gater: gater}
}

func (r *Runner) Run(ctx context.Context, selections []GoldenSelection) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalSelections: len(selections),
		ByExpected:      make(map[Decision]*DecisionSummary),
	}
	confusion := make(Confusion)

	for _, gs := range selections {
		start := time.Now()
		actual, reason := r.gater.Assess(ctx, gs.Selection, gs.Modality)
		duration := time.Since(start)

		result := EvalResult{
			SelectionID: gs.ID,
			Selection:   gs.Selection,
			Modality:    gs.Modality,
			Expected:    gs.Expected,
			Actual:      actual,
			Reason:      reason,
			Correct:     actual == gs.Expected,
			Latency:     duration,
		}

		confusion.Record(gs.Expected, actual)
		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary, confusion)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.AvgLatency += res.Latency
	if res.Correct {
		s.Correct++
	} else {
		s.Mismatches = append(s.Mismatches, res)
	}

	if _, ok := s.ByExpected[res.Expected]; !ok {
		s.ByExpected[res.Expected] = &DecisionSummary{}
	}
	ds := s.ByExpected[res.Expected]
	ds.Count++
	if res.Correct {
		ds.Correct++
	}
}

func (r *Runner) finalizeSummary(s *EvalSummary, confusion Confusion) {
	if s.TotalSelections > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.TotalSelections)
		s.AvgLatency /= time.Duration(s.TotalSelections)
	}

	for decision, ds := range s.ByExpected {
		if ds.Count > 0 {
			ds.Accuracy = float64(ds.Correct) / float64(ds.Count)
		}
		ds.Precision = confusion.Precision(decision)
		ds.Recall = confusion.Recall(decision)
	}
}
