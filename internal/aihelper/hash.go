package aihelper

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/zatekoja/radreference/internal/domain/entities"
	"github.com/zatekoja/radreference/pkg/utils"
)

// ContentHash fingerprints a generation request for dedup. Hashing the
// stemmed token rather than the raw selection makes surface variants
// ("BI-RADS 4a", "bi rads category 4A") collide into one entry.
func ContentHash(section entities.ReportSection, selection, modality, bodyPart, module string) string {
	parts := []string{
		strings.ToLower(string(section)),
		utils.NormalizeToken(selection),
		strings.ToLower(strings.TrimSpace(modality)),
		strings.ToLower(strings.TrimSpace(bodyPart)),
		strings.ToLower(strings.TrimSpace(module)),
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
