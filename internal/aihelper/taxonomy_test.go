package aihelper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zatekoja/radreference/internal/aihelper"
)

func TestResolveTaxonomyKey_Aliases(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"BI-RADS", "birads"},
		{"bi rads", "birads"},
		{"Bi-Rads", "birads"},
		{"TI-RADS", "tirads"},
		{"tnm staging", "tnm"},
		{"CHA2DS2-VASc", "chads2vasc"},
		{"Lung-RADS", "lungrads"},
		{"BIRADS", "birads"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, aihelper.ResolveTaxonomyKey(tt.input), "input %q", tt.input)
	}
}

func TestEvaluateTaxonomy_ModalityAllowlist(t *testing.T) {
	decision := aihelper.EvaluateTaxonomy("TI-RADS", "ULTRASOUND")
	assert.Equal(t, aihelper.TaxonomyAllow, decision.Verdict)

	decision = aihelper.EvaluateTaxonomy("TI-RADS", "CT")
	assert.Equal(t, aihelper.TaxonomyReject, decision.Verdict)
	assert.Contains(t, decision.Reason, "ULTRASOUND")

	decision = aihelper.EvaluateTaxonomy("ti-rads", "ultrasound")
	assert.Equal(t, aihelper.TaxonomyAllow, decision.Verdict, "modality comparison is case-insensitive")
}

func TestEvaluateTaxonomy_ModalityAgnostic(t *testing.T) {
	for _, modality := range []string{"CT", "MRI", "ULTRASOUND", ""} {
		decision := aihelper.EvaluateTaxonomy("TNM", modality)
		assert.Equal(t, aihelper.TaxonomyAllow, decision.Verdict, "TNM with modality %q", modality)
	}

	decision := aihelper.EvaluateTaxonomy("RECIST 1.1", "CT")
	assert.Equal(t, aihelper.TaxonomyAllow, decision.Verdict)
}

func TestEvaluateTaxonomy_ClinicalOnly(t *testing.T) {
	for _, selection := range []string{"CHADS2", "MELD", "Wells score", "Child-Pugh"} {
		decision := aihelper.EvaluateTaxonomy(selection, "CT")
		assert.Equal(t, aihelper.TaxonomyReject, decision.Verdict, "selection %q", selection)
		assert.Contains(t, decision.Reason, "clinical-only")
	}
}

func TestEvaluateTaxonomy_UnknownFallsThrough(t *testing.T) {
	decision := aihelper.EvaluateTaxonomy("hepatic steatosis", "CT")
	assert.Equal(t, aihelper.TaxonomyUnknown, decision.Verdict)

	decision = aihelper.EvaluateTaxonomy("", "CT")
	assert.Equal(t, aihelper.TaxonomyUnknown, decision.Verdict)
}

func TestEvaluateTaxonomy_BIRADSModalities(t *testing.T) {
	for _, modality := range []string{"MAMMOGRAPHY", "ULTRASOUND", "MRI"} {
		decision := aihelper.EvaluateTaxonomy("BI-RADS", modality)
		assert.Equal(t, aihelper.TaxonomyAllow, decision.Verdict, "modality %s", modality)
	}

	decision := aihelper.EvaluateTaxonomy("BI-RADS", "CT")
	assert.Equal(t, aihelper.TaxonomyReject, decision.Verdict)
}
