package google

import (
	"errors"

	"google.golang.org/api/googleapi"

	"github.com/hasomerhacairhu/ingest-pipeline/pkg/drive"
)

// classifyAPIError maps a Drive API error to the pipeline's error taxonomy.
// Rate limits (429) and server errors (5xx) are transient; anything else
// (404, 403, malformed request) is permanent.
func classifyAPIError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return drive.TransientError(op, err)
		}
		return drive.PermanentError(op, err)
	}
	return drive.TransientError(op, err)
}
