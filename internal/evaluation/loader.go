package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadGoldenSelections reads and parses a golden selection set from a JSON
// file.
func LoadGoldenSelections(path string) ([]GoldenSelection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden selections file: %w", err)
	}

	var selections []GoldenSelection
	if err := json.Unmarshal(data, &selections); err != nil {
		return nil, fmt.Errorf("failed to parse golden selections: %w", err)
	}

	return selections, nil
}

var validDifficulties = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

// ValidateGoldenSelections checks that all golden selections have required
// fields and valid values.
func ValidateGoldenSelections(selections []GoldenSelection) error {
	seen := make(map[string]struct{}, len(selections))

	for i, s := range selections {
		if s.ID == "" {
			return fmt.Errorf("selection at index %d: missing id", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("selection at index %d: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = struct{}{}

		if strings.TrimSpace(s.Selection) == "" {
			return fmt.Errorf("selection %q: missing selection text", s.ID)
		}
		if !s.Expected.IsValid() {
			return fmt.Errorf("selection %q: invalid expected decision %q", s.ID, s.Expected)
		}
		if !validDifficulties[s.Difficulty] {
			return fmt.Errorf("selection %q: invalid difficulty %q (must be easy/medium/hard)", s.ID, s.Difficulty)
		}
	}

	return nil
}
