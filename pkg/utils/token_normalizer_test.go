package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey_CasingAndPunctuationVariants(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"BI-RADS", "birads"},
		{"bi rads", "birads"},
		{"Bi-Rads", "birads"},
		{"  TI-RADS  ", "tirads"},
		{"CHADS2", "chads2"},
		{"", ""},
		{"---", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeKey(tc.input))
		})
	}
}

func TestNormalizeToken_Deterministic(t *testing.T) {
	variants := []string{
		"Liver cirrhosis staging",
		"LIVER CIRRHOSIS, staging!",
		"staging... liver cirrhosis",
	}

	first := NormalizeToken(variants[0])
	assert.NotEmpty(t, first)
	for _, v := range variants[1:] {
		assert.Equal(t, first, NormalizeToken(v), "variant %q should normalize identically", v)
	}
}

func TestNormalizeToken_Idempotent(t *testing.T) {
	inputs := []string{"BI-RADS 4a lesion", "hepatocellular carcinoma", "pulmonary nodules"}
	for _, in := range inputs {
		once := NormalizeToken(in)
		assert.Equal(t, once, NormalizeToken(once))
	}
}

func TestNormalizeToken_DropsStopwordsAndStems(t *testing.T) {
	// "staging" and "cancer" are generic; "nodules" loses its plural suffix
	// and is truncated to six characters.
	result := NormalizeToken("cancer staging of pulmonary nodules")
	assert.Equal(t, "nodule pulmon", result)
}

func TestNormalizeToken_SuffixNotStrippedBelowMinLength(t *testing.T) {
	// "oma" alone would leave fewer than three characters, so no stripping.
	assert.Equal(t, "oma", NormalizeToken("oma"))
}

func TestNormalizeToken_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeToken(""))
	assert.Equal(t, "", NormalizeToken("  ,.;  "))
}

func TestStemsSubset(t *testing.T) {
	a := TokenStems("liver cirrhosis")
	b := TokenStems("liver cirrhosis child pugh")

	assert.True(t, StemsSubset(a, b))
	assert.False(t, StemsSubset(b, a))
	assert.False(t, StemsSubset(TokenStems(""), b))
	assert.True(t, StemsSubset(a, a))
}
