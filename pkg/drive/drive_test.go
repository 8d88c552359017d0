package drive_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hasomerhacairhu/ingest-pipeline/pkg/drive"
)

func TestDisplayName_NativeFormatGetsExportExtension(t *testing.T) {
	item := drive.Item{Name: "Q3 Planning", MIME: "application/vnd.google-apps.document"}
	assert.Equal(t, "Q3 Planning.docx", drive.DisplayName(item))
}

func TestDisplayName_NonNativeFormatUnchanged(t *testing.T) {
	item := drive.Item{Name: "report.pdf", MIME: "application/pdf"}
	assert.Equal(t, "report.pdf", drive.DisplayName(item))
}

func TestDisplayName_NativeFormatStripsExistingExtension(t *testing.T) {
	item := drive.Item{Name: "Budget.xlsx", MIME: "application/vnd.google-apps.spreadsheet"}
	assert.Equal(t, "Budget.xlsx", drive.DisplayName(item))
}

func TestIsNativeFormat(t *testing.T) {
	exp, ok := drive.IsNativeFormat("application/vnd.google-apps.presentation")
	assert.True(t, ok)
	assert.Equal(t, ".pptx", exp.Ext)

	_, ok = drive.IsNativeFormat("application/pdf")
	assert.False(t, ok)
}
