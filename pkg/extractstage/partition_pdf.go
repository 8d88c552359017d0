package extractstage

import (
	"bytes"
	"compress/zlib"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// No PDF-parsing library appears anywhere in the example pack (see
// DESIGN.md), so the fast pass is a minimal, stdlib-only object scanner:
// enough to recover the text layer and embedded page images that real
// partitioners use, without implementing a general PDF renderer.

var pdfObjectPattern = regexp.MustCompile(`(?s)(\d+)\s+\d+\s+obj(.*?)endobj`)
var pdfStreamPattern = regexp.MustCompile(`(?s)stream\r?\n(.*?)\r?\nendstream`)
var pdfTextOpPattern = regexp.MustCompile(`\((?:[^()\\]|\\.)*\)\s*Tj|\[(?:[^\[\]]*)\]\s*TJ`)
var pdfParenStringPattern = regexp.MustCompile(`\((?:[^()\\]|\\.)*\)`)

type pdfObject struct {
	num  int
	body []byte
}

// parsePDFObjects performs a best-effort scan of a PDF's indirect objects.
// It does not follow the cross-reference table; linear scanning over
// "N G obj ... endobj" is sufficient for the vast majority of PDFs
// produced by real-world export pipelines (Drive, Office, scanners).
func parsePDFObjects(data []byte) []pdfObject {
	matches := pdfObjectPattern.FindAllSubmatch(data, -1)
	objects := make([]pdfObject, 0, len(matches))
	for _, m := range matches {
		num, err := strconv.Atoi(string(m[1]))
		if err != nil {
			continue
		}
		objects = append(objects, pdfObject{num: num, body: m[2]})
	}
	return objects
}

// decodeStream extracts and, if FlateDecode is declared, inflates an
// object's stream payload.
func decodeStream(obj pdfObject) ([]byte, bool) {
	m := pdfStreamPattern.FindSubmatch(obj.body)
	if m == nil {
		return nil, false
	}
	raw := m[1]

	if !bytes.Contains(obj.body[:bytes.Index(obj.body, []byte("stream"))+1], []byte("FlateDecode")) {
		return raw, true
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return raw, true
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return raw, true
	}
	return out, true
}

// PartitionPDFFast performs the cheap, no-OCR pass: it pulls every content
// stream's Tj/TJ text-showing operators into page-ordered elements.
func PartitionPDFFast(path string) ([]Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, permanentError("read_pdf", err)
	}

	objects := parsePDFObjects(data)
	pageCount := strings.Count(string(data), "/Type /Page") - strings.Count(string(data), "/Type /Pages")
	if pageCount < 1 {
		pageCount = 1
	}

	var elements []Element
	streamObjects := 0
	for _, obj := range objects {
		if !bytes.Contains(obj.body, []byte("/Length")) {
			continue
		}
		content, ok := decodeStream(obj)
		if !ok {
			continue
		}
		text := extractTextOperators(content)
		if text == "" {
			continue
		}
		elements = append(elements, Element{Type: "NarrativeText", Text: text})
		streamObjects++

		// Distribute page breaks roughly evenly across recovered content
		// streams so PageCount() reflects the declared page count even
		// though this scanner doesn't map streams to specific pages.
		if pageCount > 1 && streamObjects%((len(objects)/pageCount)+1) == 0 {
			elements = append(elements, Element{Type: "PageBreak"})
		}
	}

	for PageCount(elements) < pageCount {
		elements = append(elements, Element{Type: "PageBreak"})
	}

	return elements, nil
}

// extractTextOperators pulls literal string operands out of Tj/TJ
// text-showing operators in a decoded content stream.
func extractTextOperators(content []byte) string {
	var b strings.Builder
	for _, op := range pdfTextOpPattern.FindAll(content, -1) {
		for _, s := range pdfParenStringPattern.FindAll(op, -1) {
			b.WriteString(unescapePDFString(s))
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

func unescapePDFString(lit []byte) string {
	s := string(lit)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	replacer := strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`, `\n`, "\n", `\r`, "")
	return replacer.Replace(s)
}

// ExtractPDFImages pulls embedded DCTDecode (JPEG) image streams out of a
// PDF, one file per recovered XObject, for the OCR fallback pass to feed
// to Tesseract. DCT-compressed streams need no further decoding: they are
// already valid JPEG byte streams.
func ExtractPDFImages(path, tmpDir string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, permanentError("read_pdf", err)
	}

	var paths []string
	for i, obj := range parsePDFObjects(data) {
		if !bytes.Contains(obj.body, []byte("/Subtype /Image")) || !bytes.Contains(obj.body, []byte("DCTDecode")) {
			continue
		}
		m := pdfStreamPattern.FindSubmatch(obj.body)
		if m == nil {
			continue
		}
		out := tmpDir + "/page-" + strconv.Itoa(i) + ".jpg"
		if err := os.WriteFile(out, m[1], 0o600); err != nil {
			return paths, transientError("write_pdf_image", err)
		}
		paths = append(paths, out)
	}
	return paths, nil
}
