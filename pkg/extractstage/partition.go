package extractstage

import (
	"context"
	"strings"
	"time"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"
)

// ocrRunner performs the OCR pass for one file under a hard wall-clock
// timeout. The thread-pool and process-pool workers each supply a
// different implementation: the thread pool runs Tesseract in-process
// (best-effort, cooperative timeout only — see DESIGN.md), the process
// pool runs it in a disposable subprocess that can be killed outright.
type ocrRunner func(ctx context.Context, tmpPath string, lang []string, timeout time.Duration) ([]Element, error)

// partitionDocument implements the partitioning policy: native-text
// formats get a single pass, portable-page formats try a cheap fast pass
// first and only pay for OCR when the fast pass came back sparse.
func partitionDocument(ctx context.Context, tmpPath, ext string, lang []string, ocrTimeout time.Duration, ocr ocrRunner) ([]Element, Strategy, error) {
	ext = strings.ToLower(ext)

	if IsNativeText(ext) {
		elements, err := PartitionNative(tmpPath, ext)
		if err != nil {
			return nil, "", err
		}
		return elements, StrategyNative, nil
	}

	if !IsPortablePage(ext) {
		return nil, "", permanentError("unsupported_format", nil)
	}

	fastElements, err := PartitionPDFFast(tmpPath)
	if err != nil {
		return nil, "", err
	}

	pages := PageCount(fastElements)
	charsPerPage := float64(totalChars(fastElements)) / float64(max(1, pages))
	if charsPerPage >= minCharsPerPage {
		return fastElements, StrategyFast, nil
	}

	ocrElements, err := ocr(ctx, tmpPath, lang, ocrTimeout)
	if err != nil {
		if ingesterr.KindOf(err) == ingesterr.OCRTimeout {
			return fastElements, StrategyFastFallback, nil
		}
		return nil, "", err
	}
	if len(ocrElements) == 0 {
		// No embedded page images to OCR; the sparse fast result is all
		// there is.
		return fastElements, StrategyFastFallback, nil
	}
	return ocrElements, StrategyOCR, nil
}

// minCharsPerPage is the density threshold below which a PDF's fast
// extraction is considered unreliable and the OCR fallback kicks in.
const minCharsPerPage = 200

// defaultOCRTimeout is the hard wall-clock ceiling for the OCR pass.
const defaultOCRTimeout = 300 * time.Second
