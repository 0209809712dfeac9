package aihelper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zatekoja/radreference/pkg/utils"
)

// TaxonomyVerdict is the outcome of the deterministic gate consulted before
// any provider call.
type TaxonomyVerdict int

const (
	// TaxonomyUnknown falls through to the LLM validator.
	TaxonomyUnknown TaxonomyVerdict = iota
	// TaxonomyAllow skips the validator call entirely.
	TaxonomyAllow
	// TaxonomyReject short-circuits generation with a reason.
	TaxonomyReject
)

// TaxonomyDecision carries the verdict plus the resolved canonical key and,
// for rejections, a human-readable reason.
type TaxonomyDecision struct {
	Verdict TaxonomyVerdict
	Key     string
	Reason  string
}

// Canonical modality names used in the allowlist tables.
const (
	ModalityCT          = "CT"
	ModalityMRI         = "MRI"
	ModalityUltrasound  = "ULTRASOUND"
	ModalityMammography = "MAMMOGRAPHY"
	ModalityXRay        = "XRAY"
	ModalityPET         = "PET"
	ModalityAngiography = "ANGIOGRAPHY"
)

// aliasTable maps exact lowercased phrases to canonical keys, for variants
// the character-stripping key path cannot resolve.
var aliasTable = map[string]string{
	"bi-rads":             "birads",
	"bi rads":             "birads",
	"breast imaging reporting and data system": "birads",
	"ti-rads":             "tirads",
	"ti rads":             "tirads",
	"thyroid imaging reporting and data system": "tirads",
	"li-rads":             "lirads",
	"li rads":             "lirads",
	"pi-rads":             "pirads",
	"pi rads":             "pirads",
	"o-rads":              "orads",
	"o rads":              "orads",
	"lung-rads":           "lungrads",
	"lung rads":           "lungrads",
	"ni-rads":             "nirads",
	"cad-rads":            "cadrads",
	"tnm staging":         "tnm",
	"tnm classification":  "tnm",
	"response evaluation criteria in solid tumors": "recist",
	"recist 1.1":          "recist",
	"child-pugh":          "childpugh",
	"child pugh":          "childpugh",
	"kellgren-lawrence":   "kellgrenlawrence",
	"kellgren lawrence":   "kellgrenlawrence",
	"cha2ds2-vasc":        "chads2vasc",
	"cha2ds2 vasc":        "chads2vasc",
	"curb-65":             "curb65",
	"wells score":         "wells",
	"wells criteria":      "wells",
	"fleischner criteria": "fleischner",
	"bosniak classification": "bosniak",
}

// clinicalOnly holds scores that are bedside clinical tools, not imaging
// classification systems. Generation for these is rejected outright.
var clinicalOnly = map[string]bool{
	"chads2":     true,
	"chads2vasc": true,
	"meld":       true,
	"wells":      true,
	"curb65":     true,
	"apache":     true,
	"apacheii":   true,
	"sofa":       true,
	"qsofa":      true,
	"timi":       true,
	"grace":      true,
	"framingham": true,
	"ranson":     true,
	"centor":     true,
	"childpugh":  true,
}

// modalityAgnostic holds systems valid for any imaging modality.
var modalityAgnostic = map[string]bool{
	"tnm":     true,
	"ajcc":    true,
	"recist":  true,
	"irecist": true,
	"mrecist": true,
	"figo":    true,
}

// modalityAllowlist maps canonical keys to the modalities they are defined
// for. Keys absent here (and from the sets above) fall through to the LLM.
var modalityAllowlist = map[string][]string{
	"tirads":           {ModalityUltrasound},
	"birads":           {ModalityMammography, ModalityUltrasound, ModalityMRI},
	"lirads":           {ModalityCT, ModalityMRI, ModalityUltrasound},
	"pirads":           {ModalityMRI},
	"orads":            {ModalityUltrasound, ModalityMRI},
	"lungrads":         {ModalityCT},
	"fleischner":       {ModalityCT},
	"bosniak":          {ModalityCT, ModalityMRI},
	"nirads":           {ModalityCT, ModalityMRI, ModalityPET},
	"cadrads":          {ModalityCT},
	"agatston":         {ModalityCT},
	"aspects":          {ModalityCT},
	"kellgrenlawrence": {ModalityXRay},
	"spetzlermartin":   {ModalityMRI, ModalityAngiography},
}

// ResolveTaxonomyKey maps raw selection text to its canonical key: exact
// alias phrase first, then the stripped-character key.
func ResolveTaxonomyKey(selection string) string {
	phrase := strings.ToLower(strings.TrimSpace(selection))
	if key, ok := aliasTable[phrase]; ok {
		return key
	}
	return utils.NormalizeKey(selection)
}

// EvaluateTaxonomy applies the deterministic domain-knowledge gate. Known
// modality-exclusive systems must not reach the LLM at all; only the
// open-ended remainder returns TaxonomyUnknown.
func EvaluateTaxonomy(selection, modality string) TaxonomyDecision {
	key := ResolveTaxonomyKey(selection)
	if key == "" {
		return TaxonomyDecision{Verdict: TaxonomyUnknown, Key: key}
	}

	if clinicalOnly[key] {
		return TaxonomyDecision{
			Verdict: TaxonomyReject,
			Key:     key,
			Reason:  fmt.Sprintf("%s is a clinical-only score, not a radiology modality system", strings.ToUpper(key)),
		}
	}

	if modalityAgnostic[key] {
		return TaxonomyDecision{Verdict: TaxonomyAllow, Key: key}
	}

	if allowed, ok := modalityAllowlist[key]; ok {
		for _, m := range allowed {
			if strings.EqualFold(m, modality) {
				return TaxonomyDecision{Verdict: TaxonomyAllow, Key: key}
			}
		}
		names := append([]string(nil), allowed...)
		sort.Strings(names)
		return TaxonomyDecision{
			Verdict: TaxonomyReject,
			Key:     key,
			Reason: fmt.Sprintf("%s applies only to %s",
				strings.ToUpper(key), strings.Join(names, ", ")),
		}
	}

	return TaxonomyDecision{Verdict: TaxonomyUnknown, Key: key}
}
