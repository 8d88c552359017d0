// Package drive defines the drive-adapter contract from the component
// design: a lazy, paginated enumeration of a drive subtree and a streamed
// fetch of one item's bytes, with native-format documents (word processor,
// presentation, spreadsheet equivalents) exported to a fixed target format.
package drive

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Item is one leaf entry discovered by Enumerate: a non-folder drive object
// whose extension is in the accepted set, or whose MIME type requires
// export.
type Item struct {
	OriginID   string
	Name       string
	Path       string
	MIME       string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Size       int64
}

// NativeExport describes the fixed target MIME and extension an adapter
// must request when exporting a native-format document. The export is the
// sole channel through which native documents enter the pipeline.
type NativeExport struct {
	MIME string
	Ext  string
}

// NativeFormatExports maps a Google Workspace native MIME type to the
// target format it is exported as. Fixed per the external-interfaces
// contract: one target MIME and one target extension per native format.
var NativeFormatExports = map[string]NativeExport{
	"application/vnd.google-apps.document": {
		MIME: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Ext:  ".docx",
	},
	"application/vnd.google-apps.presentation": {
		MIME: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		Ext:  ".pptx",
	},
	"application/vnd.google-apps.spreadsheet": {
		MIME: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Ext:  ".xlsx",
	},
}

// FolderMIME is the MIME type drives use to mark a folder; Enumerate
// descends into these rather than yielding them.
const FolderMIME = "application/vnd.google-apps.folder"

// IsNativeFormat reports whether mime requires an export and, if so, the
// fixed target format to request.
func IsNativeFormat(mime string) (NativeExport, bool) {
	exp, ok := NativeFormatExports[mime]
	return exp, ok
}

// DisplayName returns the name Item should be known by once fetched: for
// native formats this is the original name with its extension replaced by
// the export's fixed extension, matching the "append the mapped extension"
// rule in the drive-adapter contract. The sync stage derives its CAS
// extension from this name, not from item.Name directly.
func DisplayName(item Item) string {
	exp, ok := IsNativeFormat(item.MIME)
	if !ok {
		return item.Name
	}
	return strings.TrimSuffix(item.Name, filepath.Ext(item.Name)) + exp.Ext
}

// ItemIterator is a pull-style iterator over Item, mirroring
// objectstore.KeyIterator. Next must be called before the first
// Item/Err; it returns false when exhausted or on error.
type ItemIterator interface {
	Next(ctx context.Context) bool
	Item() Item
	Err() error
}

// Store is the drive-adapter contract: recursive enumeration of a subtree
// and streamed download/export of one item.
type Store interface {
	// Enumerate descends root_id recursively and yields leaf items in
	// ascending modified-time order, so checkpoint advancement stays
	// monotonic. If modifiedAfter is non-nil, only items modified strictly
	// after it are yielded. Implementations MUST paginate and MUST follow
	// continuation tokens to completion before returning.
	Enumerate(ctx context.Context, rootID string, modifiedAfter *time.Time) (ItemIterator, error)

	// Fetch streams item's bytes: a direct download for non-native formats,
	// or an export in the fixed target format (see NativeFormatExports)
	// for native formats. The caller must close the returned stream.
	Fetch(ctx context.Context, item Item) (io.ReadCloser, error)
}
