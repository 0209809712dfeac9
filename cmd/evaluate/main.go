package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/zatekoja/radreference/internal/aihelper"
	"github.com/zatekoja/radreference/internal/evaluation"
)

// pipelineGater mirrors the deterministic gates the generation pipeline runs
// before any provider call: noise gate first, then the taxonomy gate.
type pipelineGater struct{}

func (pipelineGater) Assess(ctx context.Context, selection, modality string) (evaluation.Decision, string) {
	trimmed := strings.TrimSpace(selection)
	if trimmed == "" || aihelper.IsNoiseSelection(trimmed) {
		return evaluation.DecisionNoise, "dropped by noise gate"
	}

	decision := aihelper.EvaluateTaxonomy(trimmed, modality)
	switch decision.Verdict {
	case aihelper.TaxonomyAllow:
		return evaluation.DecisionAllow, ""
	case aihelper.TaxonomyReject:
		return evaluation.DecisionReject, decision.Reason
	}
	return evaluation.DecisionUnsure, "deferred to the LLM validator"
}

func main() {
	goldenPath := "config/golden_selections.json"
	if len(os.Args) > 1 {
		goldenPath = os.Args[1]
	}

	selections, err := evaluation.LoadGoldenSelections(goldenPath)
	if err != nil {
		log.Fatalf("Failed to load golden selections: %v", err)
	}
	if err := evaluation.ValidateGoldenSelections(selections); err != nil {
		log.Fatalf("Invalid golden selections: %v", err)
	}

	runner := evaluation.NewRunner(pipelineGater{})
	summary, err := runner.Run(context.Background(), selections)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}
