package syncstage

import "net/url"

// contentTypeByExtension mirrors the fixed extension->MIME table the sync
// stage writes as the CAS object's content type. Anything unrecognized
// falls back to application/octet-stream.
var contentTypeByExtension = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
	".rtf":  "application/rtf",
	".epub": "application/epub+zip",
}

func contentTypeFor(ext string) string {
	if ct, ok := contentTypeByExtension[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// percentEncode escapes a metadata value for S3-compatible object
// metadata, which must be a valid header-safe ASCII octet string.
func percentEncode(s string) string {
	return url.QueryEscape(s)
}
