package extractstage

import (
	"regexp"
	"strings"
)

// knownLanguageCodes maps a filename hint (lowercase, ASCII) to the
// Tesseract ISO 639-2 code the OCR engine expects. Ordered by how the
// site actually names its documents: Hungarian first, then the common
// regional languages, then a handful of others worth hinting explicitly.
var knownLanguageCodes = map[string]string{
	"hun":      "hun",
	"magyar":   "hun",
	"eng":      "eng",
	"english":  "eng",
	"ces":      "ces",
	"czech":    "ces",
	"slk":      "slk",
	"slovak":   "slk",
	"pol":      "pol",
	"polish":   "pol",
	"deu":      "deu",
	"german":   "deu",
	"fra":      "fra",
	"french":   "fra",
	"spa":      "spa",
	"spanish":  "spa",
	"ita":      "ita",
	"italian":  "ita",
	"ron":      "ron",
	"romanian": "ron",
}

var languageHintPattern = regexp.MustCompile(buildLanguageHintPattern())

func buildLanguageHintPattern() string {
	codes := make([]string, 0, len(knownLanguageCodes))
	for code := range knownLanguageCodes {
		codes = append(codes, regexp.QuoteMeta(code))
	}
	return `[_\-.](` + strings.Join(codes, "|") + `)[_\-.]`
}

// defaultLanguageHint is used when no manual hint is found in the display
// name: the site is bilingual, so OCR runs against both its local language
// and its primary secondary language.
var defaultLanguageHint = []string{"hun", "eng"}

// LanguageHint derives the OCR language hint from a document's display
// name. A manual hint (e.g. "report_pol_2025.pdf") wins; otherwise the
// bilingual default is used so unstructured text isn't mis-recognized in
// either language.
func LanguageHint(displayName string) []string {
	lower := "." + strings.ToLower(displayName) + "."
	if m := languageHintPattern.FindStringSubmatch(lower); m != nil {
		if code, ok := knownLanguageCodes[m[1]]; ok {
			return []string{code}
		}
	}
	return append([]string(nil), defaultLanguageHint...)
}

// TesseractLanguageString joins a language hint into Tesseract's "+"
// separated language-list convention (e.g. "hun+eng").
func TesseractLanguageString(hint []string) string {
	return strings.Join(hint, "+")
}
