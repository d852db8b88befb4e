package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgraph/pipeline/internal/provenance"
)

func TestDetectByExtension(t *testing.T) {
	cases := map[string]provenance.DocType{
		"report.pdf": provenance.DocTypePDF,
		"report.PDF": provenance.DocTypePDF,
		"memo.docx":  provenance.DocTypeDOCX,
		"deck.pptx":  provenance.DocTypePPTX,
		"sheet.xlsx": provenance.DocTypeXLSX,
		"export.csv": provenance.DocTypeCSV,
		"notes.txt":  provenance.DocTypeTXT,
		"readme.md":  provenance.DocTypeMD,
		"page.html":  provenance.DocTypeHTML,
		"legacy.htm": provenance.DocTypeHTML,
	}

	for filename, want := range cases {
		got, err := Detect(nil, filename, "")
		require.NoError(t, err, filename)
		assert.Equal(t, want, got, filename)
	}
}

func TestDetectExtensionBeatsContentType(t *testing.T) {
	got, err := Detect(nil, "notes.txt", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, provenance.DocTypeTXT, got)
}

func TestDetectLegacyOfficeFormats(t *testing.T) {
	for _, filename := range []string{"old.doc", "slides.ppt", "book.xls"} {
		_, err := Detect(nil, filename, "")
		assert.ErrorIs(t, err, ErrCapabilityUnavailable, filename)
	}
}

func TestDetectUnknownExtension(t *testing.T) {
	_, err := Detect(nil, "archive.tar", "")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDetectByContentType(t *testing.T) {
	cases := []struct {
		contentType string
		want        provenance.DocType
	}{
		{"application/pdf", provenance.DocTypePDF},
		{"application/vnd.openxmlformats-officedocument.presentationml.presentation", provenance.DocTypePPTX},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", provenance.DocTypeXLSX},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", provenance.DocTypeDOCX},
		{"application/msword", provenance.DocTypeDOCX},
		{"text/csv", provenance.DocTypeCSV},
		{"text/html; charset=utf-8", provenance.DocTypeHTML},
		{"text/markdown", provenance.DocTypeMD},
		{"text/plain", provenance.DocTypeTXT},
	}

	for _, tc := range cases {
		got, err := Detect(nil, "", tc.contentType)
		require.NoError(t, err, tc.contentType)
		assert.Equal(t, tc.want, got, tc.contentType)
	}
}

func TestDetectByMagicBytes(t *testing.T) {
	t.Run("pdf header", func(t *testing.T) {
		got, err := Detect([]byte("%PDF-1.7 rest of file"), "", "")
		require.NoError(t, err)
		assert.Equal(t, provenance.DocTypePDF, got)
	})

	t.Run("ooxml containers", func(t *testing.T) {
		cases := map[string]provenance.DocType{
			"word/document.xml":     provenance.DocTypeDOCX,
			"ppt/slides/slide1.xml": provenance.DocTypePPTX,
			"xl/workbook.xml":       provenance.DocTypeXLSX,
		}
		for member, want := range cases {
			raw := zipBytes(t, map[string]string{member: "<x/>"})
			got, err := Detect(raw, "", "")
			require.NoError(t, err, member)
			assert.Equal(t, want, got, member)
		}
	})
}

func TestDetectDefaultsToPDF(t *testing.T) {
	got, err := Detect([]byte("no recognizable structure"), "", "")
	require.NoError(t, err)
	assert.Equal(t, provenance.DocTypePDF, got)
}
