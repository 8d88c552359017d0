package extractstage

import "github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"

func transientError(op string, cause error) *ingesterr.Error {
	return ingesterr.Transient("extractstage: "+op, cause)
}

func permanentError(op string, cause error) *ingesterr.Error {
	return ingesterr.PermanentErr("extractstage: "+op, cause)
}

// emptyContentError marks extraction that produced no usable text.
func emptyContentError(op string) *ingesterr.Error {
	return ingesterr.New(ingesterr.EmptyContent, "extractstage: "+op)
}

// ocrTimeoutError marks a hard wall-clock timeout during the OCR pass.
func ocrTimeoutError(op string, cause error) *ingesterr.Error {
	return ingesterr.Wrap(ingesterr.OCRTimeout, "extractstage: "+op, cause)
}
