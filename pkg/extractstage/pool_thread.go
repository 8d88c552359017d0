package extractstage

import (
	"context"
	"time"
)

// inProcessOCR runs Tesseract in the calling process, which is what the
// thread-pool worker uses. The timeout here is cooperative only: gosseract
// blocks in cgo for the duration of recognition, so a timed-out call
// leaves its goroutine running until Tesseract itself returns. The process
// pool (pool_process.go) is the one that can actually kill a stuck OCR
// pass; see DESIGN.md for why the thread pool can't.
func inProcessOCR(ctx context.Context, tmpPath string, lang []string, timeout time.Duration) ([]Element, error) {
	type result struct {
		elements []Element
		err      error
	}
	resultCh := make(chan result, 1)

	go func() {
		elements, err := ocrPDF(tmpPath, lang)
		resultCh <- result{elements: elements, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.elements, r.err
	case <-time.After(timeout):
		return nil, ocrTimeoutError("ocr_timeout", nil)
	case <-ctx.Done():
		return nil, ocrTimeoutError("ocr_cancelled", ctx.Err())
	}
}
