// Package openai implements indexstage.VectorService against OpenAI's
// Files and Vector Stores APIs via github.com/sashabaranov/go-openai.
package openai

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/sashabaranov/go-openai"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"
)

// Service adapts an openai.Client to indexstage.VectorService.
type Service struct {
	client *openai.Client
}

// New constructs a Service from an OpenAI API key.
func New(apiKey string) *Service {
	return &Service{client: openai.NewClient(apiKey)}
}

// NewWithClient wraps an already-configured client, for tests and for
// pointing at an OpenAI-compatible endpoint via openai.ClientConfig.
func NewWithClient(client *openai.Client) *Service {
	return &Service{client: client}
}

// UploadFile uploads r's contents under the "assistants" purpose, the
// purpose Vector Stores require a file to carry before it can be attached.
// CreateFile reads from a path rather than a stream, so r is first spooled
// to a temp file, matching the same download-to-temp idiom the sync and
// extraction stages use before handing content to a library that wants a
// filesystem path.
func (s *Service) UploadFile(ctx context.Context, name string, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "indexstage-upload-*.txt")
	if err != nil {
		return "", ingesterr.Transient("openai: create_temp", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", ingesterr.Transient("openai: spool_upload_body", err)
	}
	if err := tmp.Close(); err != nil {
		return "", ingesterr.Transient("openai: spool_upload_body", err)
	}

	file, err := s.client.CreateFile(ctx, openai.FileRequest{
		FileName: name,
		FilePath: tmp.Name(),
		Purpose:  string(openai.PurposeAssistants),
	})
	if err != nil {
		return "", classifyErr("create_file", err)
	}
	return file.ID, nil
}

// AttachFile attaches a previously uploaded file to vectorStoreID.
func (s *Service) AttachFile(ctx context.Context, vectorStoreID, fileID string) error {
	_, err := s.client.CreateVectorStoreFile(ctx, vectorStoreID, openai.VectorStoreFileRequest{
		FileID: fileID,
	})
	if err != nil {
		return classifyErr("create_vector_store_file", err)
	}
	return nil
}

// classifyErr maps an OpenAI API error to the pipeline's error kinds:
// rate limits (429) and server errors (5xx) are transient and retriable;
// every other 4xx is permanent.
func classifyErr(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return ingesterr.Transient("openai: "+op, err)
		case apiErr.HTTPStatusCode >= 500:
			return ingesterr.Transient("openai: "+op, err)
		case apiErr.HTTPStatusCode >= 400:
			return ingesterr.PermanentErr("openai: "+op, err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ingesterr.Transient("openai: "+op, err)
	}

	return ingesterr.Transient("openai: "+op, err)
}
