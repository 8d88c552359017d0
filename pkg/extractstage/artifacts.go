package extractstage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
)

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// Meta is the derivative bundle's meta.json.
// OriginID/OriginCreatedAt/OriginModifiedAt are omitted: a ContentRecord
// may have many origin mappings, so there is no single origin to report
// here (the OriginMapping table is the place to look those up by digest).
type Meta struct {
	Digest       string `json:"digest"`
	OriginalName string `json:"original_name"`
	ObjectKey    string `json:"object_key"`
	Extension    string `json:"extension"`

	ElementCount int `json:"element_count"`
	TextLength   int `json:"text_length"`
	WordCount    int `json:"word_count"`
	PageCount    int `json:"page_count,omitempty"`

	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`

	Language           string `json:"language"`
	SyncedAt           string `json:"synced_at,omitempty"`
	ProcessedAt        string `json:"processed_at"`
	ProcessingStrategy string `json:"processing_strategy"`

	OriginPath string `json:"origin_path,omitempty"`
	OriginMime string `json:"origin_mime,omitempty"`
}

func buildMeta(rec *statestore.ContentRecord, elements []Element, text string, lang []string, strategy Strategy, processedAt time.Time) Meta {
	m := Meta{
		Digest:             rec.Digest,
		OriginalName:       rec.OriginName,
		ObjectKey:          rec.ObjectKey,
		Extension:          rec.Extension,
		ElementCount:       len(elements),
		TextLength:         len(text),
		WordCount:          len(strings.Fields(text)),
		PageCount:          PageCount(elements),
		Language:           TesseractLanguageString(lang),
		ProcessedAt:        processedAt.UTC().Format(time.RFC3339),
		ProcessingStrategy: string(strategy),
		OriginPath:         rec.OriginPath,
		OriginMime:         rec.OriginMime,
	}
	if rec.SyncedAt != nil {
		m.SyncedAt = rec.SyncedAt.UTC().Format(time.RFC3339)
	}
	for _, el := range elements {
		if el.Type == "Title" && m.Title == "" {
			if t := strings.TrimSpace(el.Text); t != "" {
				if len(t) > 200 {
					t = t[:200]
				}
				m.Title = t
			}
		}
	}
	return m
}

// uploadArtifacts writes elements.jsonl, text.txt, meta.json in that
// order. A crash between writes is safe to retry: every write is
// idempotent and the state-machine guard re-runs extraction from scratch.
func uploadArtifacts(ctx context.Context, store objectstore.Store, digest string, elements []Element, text string, meta Meta) error {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanExtractUpload, digest)
	defer span.End()

	elementsJSONL, err := EncodeElementsJSONL(elements)
	if err != nil {
		return permanentError("encode_elements", err)
	}

	if err := store.Put(ctx, objectstore.DerivativeKey(digest, "elements.jsonl"), bytesReader(elementsJSONL), "application/jsonl", nil); err != nil {
		return err
	}
	if err := store.Put(ctx, objectstore.DerivativeKey(digest, "text.txt"), bytesReader([]byte(text)), "text/plain; charset=utf-8", nil); err != nil {
		return err
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return permanentError("encode_meta", err)
	}
	if err := store.Put(ctx, objectstore.DerivativeKey(digest, "meta.json"), bytesReader(metaJSON), "application/json", nil); err != nil {
		return err
	}

	return nil
}
