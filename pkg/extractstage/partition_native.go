package extractstage

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PartitionNative runs the single-pass, format-specific partitioner for
// native-text formats. No third-party document library exists anywhere in
// the example pack (see DESIGN.md), so OOXML bodies are walked directly
// with archive/zip + encoding/xml, and everything else is read as plain
// text.
func PartitionNative(path, ext string) ([]Element, error) {
	switch strings.ToLower(ext) {
	case ".docx":
		return partitionOOXML(path, "word/document.xml", wordTextRun)
	case ".pptx":
		return partitionOOXMLSlides(path)
	case ".xlsx":
		return partitionOOXMLSheets(path)
	case ".epub":
		return partitionEPUB(path)
	default:
		return partitionPlainText(path)
	}
}

func partitionPlainText(path string) ([]Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, permanentError("read_plain_text", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	var elements []Element
	for _, para := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		elements = append(elements, Element{Type: "NarrativeText", Text: para})
	}
	return elements, nil
}

// wordRun is the subset of WordprocessingML's <w:r><w:t> run structure
// needed to recover paragraph text.
type wordRun struct {
	XMLName xml.Name `xml:"r"`
	Text    []struct {
		Value string `xml:",chardata"`
	} `xml:"t"`
}

type wordParagraph struct {
	XMLName xml.Name  `xml:"p"`
	Runs    []wordRun `xml:"r"`
}

type wordDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    struct {
		Paragraphs []wordParagraph `xml:"p"`
	} `xml:"body"`
}

func wordTextRun(data []byte) ([]Element, error) {
	var doc wordDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, permanentError("parse_docx_body", err)
	}
	var elements []Element
	for _, p := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				b.WriteString(t.Value)
			}
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			elements = append(elements, Element{Type: "NarrativeText", Text: text})
		}
	}
	return elements, nil
}

// partitionOOXML opens part inside the zip container at path and hands its
// bytes to decode.
func partitionOOXML(path, part string, decode func([]byte) ([]Element, error)) ([]Element, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, permanentError("open_ooxml", err)
	}
	defer r.Close()

	f, err := findZipEntry(r, part)
	if err != nil {
		return nil, err
	}
	rc, err := f.Open()
	if err != nil {
		return nil, permanentError("open_ooxml_part", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, permanentError("read_ooxml_part", err)
	}
	return decode(data)
}

func findZipEntry(r *zip.ReadCloser, name string) (*zip.File, error) {
	for _, f := range r.File {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, permanentError("ooxml_part_missing", os.ErrNotExist)
}

// slideText is the subset of PresentationML's slide XML needed to recover
// run text from every shape's text body.
type slideText struct {
	XMLName xml.Name `xml:"sld"`
	Runs    []struct {
		Value string `xml:",chardata"`
	} `xml:"cSld>spTree>sp>txBody>p>r>t"`
}

func partitionOOXMLSlides(path string) ([]Element, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, permanentError("open_ooxml", err)
	}
	defer r.Close()

	var slideFiles []*zip.File
	for _, f := range r.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slideFiles = append(slideFiles, f)
		}
	}

	var elements []Element
	for i, f := range slideFiles {
		rc, err := f.Open()
		if err != nil {
			return nil, permanentError("open_slide", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, permanentError("read_slide", err)
		}

		var slide slideText
		if err := xml.Unmarshal(data, &slide); err != nil {
			return nil, permanentError("parse_slide", err)
		}
		var b strings.Builder
		for _, run := range slide.Runs {
			b.WriteString(run.Value)
			b.WriteString(" ")
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			elements = append(elements, Element{Type: "NarrativeText", Text: text, Page: i + 1})
		}
		elements = append(elements, Element{Type: "PageBreak"})
	}
	return elements, nil
}

// sheetData is the subset of SpreadsheetML's shared-strings-resolved cell
// layout needed for a minimal text dump: inline strings only, which covers
// the common "exported from Google Sheets" case this pipeline ingests.
type sheetRow struct {
	Cells []struct {
		InlineStr struct {
			Text string `xml:"t"`
		} `xml:"is"`
	} `xml:"c"`
}

type sheetXML struct {
	XMLName xml.Name   `xml:"worksheet"`
	Rows    []sheetRow `xml:"sheetData>row"`
}

func partitionOOXMLSheets(path string) ([]Element, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, permanentError("open_ooxml", err)
	}
	defer r.Close()

	var sheetFiles []*zip.File
	for _, f := range r.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/sheet") && strings.HasSuffix(f.Name, ".xml") {
			sheetFiles = append(sheetFiles, f)
		}
	}

	var elements []Element
	for i, f := range sheetFiles {
		rc, err := f.Open()
		if err != nil {
			return nil, permanentError("open_sheet", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, permanentError("read_sheet", err)
		}

		var sheet sheetXML
		if err := xml.Unmarshal(data, &sheet); err != nil {
			return nil, permanentError("parse_sheet", err)
		}
		for _, row := range sheet.Rows {
			var cells []string
			for _, c := range row.Cells {
				if t := strings.TrimSpace(c.InlineStr.Text); t != "" {
					cells = append(cells, t)
				}
			}
			if len(cells) > 0 {
				elements = append(elements, Element{Type: "Table", Text: strings.Join(cells, "\t"), Page: i + 1})
			}
		}
		elements = append(elements, Element{Type: "PageBreak"})
	}
	return elements, nil
}

// partitionEPUB walks an EPUB's XHTML content documents and strips tags,
// good enough for a plain-text derivative without pulling in an HTML
// parser.
func partitionEPUB(path string) ([]Element, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, permanentError("open_epub", err)
	}
	defer r.Close()

	var elements []Element
	for _, f := range r.File {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".xhtml" && ext != ".html" && ext != ".htm" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		text := strings.TrimSpace(stripTags(string(data)))
		if text != "" {
			elements = append(elements, Element{Type: "NarrativeText", Text: text})
		}
	}
	return elements, nil
}

func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
