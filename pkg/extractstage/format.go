package extractstage

import "strings"

// Strategy is the partitioning strategy recorded in a derivative bundle's
// meta.json.
type Strategy string

const (
	StrategyNative       Strategy = "native"
	StrategyFast         Strategy = "fast"
	StrategyOCR          Strategy = "ocr"
	StrategyFastFallback Strategy = "fast_fallback"
)

// nativeTextExtensions are formats with an in-band text layer: a
// single-pass, format-specific partitioner is both sufficient and cheap.
var nativeTextExtensions = map[string]bool{
	".docx": true,
	".pptx": true,
	".xlsx": true,
	".txt":  true,
	".md":   true,
	".rtf":  true,
	".epub": true,
}

// portablePageExtensions are page-oriented formats that may or may not
// carry a usable text layer (scanned pages have none), so they go through
// the fast-then-OCR policy instead.
var portablePageExtensions = map[string]bool{
	".pdf": true,
}

// IsNativeText reports whether ext (normalized, leading dot, lowercase)
// should be partitioned with the single-pass native strategy.
func IsNativeText(ext string) bool {
	return nativeTextExtensions[strings.ToLower(ext)]
}

// IsPortablePage reports whether ext should go through the fast/OCR policy.
func IsPortablePage(ext string) bool {
	return portablePageExtensions[strings.ToLower(ext)]
}
