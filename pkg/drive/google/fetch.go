package google

import (
	"context"
	"io"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/drive"
)

// Fetch streams item's bytes: export_media for native formats, get_media
// otherwise.
func (s *Store) Fetch(ctx context.Context, item drive.Item) (io.ReadCloser, error) {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanSyncFetch, "",
		telemetry.OriginID(item.OriginID), telemetry.DriveName(item.Name), telemetry.MimeType(item.MIME))
	defer span.End()

	if exp, ok := drive.IsNativeFormat(item.MIME); ok {
		resp, err := s.svc.Files.Export(item.OriginID, exp.MIME).Context(ctx).Download()
		if err != nil {
			return nil, classifyAPIError("export_media", err)
		}
		return resp.Body, nil
	}

	resp, err := s.svc.Files.Get(item.OriginID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, classifyAPIError("get_media", err)
	}
	return resp.Body, nil
}
