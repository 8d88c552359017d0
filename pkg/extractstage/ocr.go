package extractstage

import (
	"os"

	"github.com/otiai10/gosseract/v2"
)

// runOCR recognizes text from a set of page images with Tesseract, one
// gosseract client reused across pages to amortize model-load cost within
// a single file's OCR pass.
func runOCR(imagePaths []string, lang []string) ([]Element, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(lang...); err != nil {
		return nil, permanentError("ocr_set_language", err)
	}

	var elements []Element
	for i, path := range imagePaths {
		if err := client.SetImage(path); err != nil {
			return nil, transientError("ocr_set_image", err)
		}
		text, err := client.Text()
		if err != nil {
			return nil, transientError("ocr_recognize", err)
		}
		if text != "" {
			elements = append(elements, Element{Type: "NarrativeText", Text: text, Page: i + 1})
		}
		elements = append(elements, Element{Type: "PageBreak"})
	}
	return elements, nil
}

// ocrPDF renders a PDF's page images (via ExtractPDFImages) and recognizes
// text from each with Tesseract. Scanned PDFs are overwhelmingly the
// reason a document lands in the OCR fallback path in the first place.
func ocrPDF(tmpPath string, lang []string) ([]Element, error) {
	tmpDir, err := os.MkdirTemp("", "extractstage-ocr-")
	if err != nil {
		return nil, transientError("ocr_mkdir", err)
	}
	defer os.RemoveAll(tmpDir)

	images, err := ExtractPDFImages(tmpPath, tmpDir)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		// No embedded raster pages found; nothing for Tesseract to read.
		return nil, nil
	}
	return runOCR(images, lang)
}
