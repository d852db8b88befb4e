package normalize

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/docgraph/pipeline/internal/provenance"
	"github.com/docgraph/pipeline/pkg/logger"
)

var extTypes = map[string]provenance.DocType{
	".pdf":  provenance.DocTypePDF,
	".docx": provenance.DocTypeDOCX,
	".pptx": provenance.DocTypePPTX,
	".xlsx": provenance.DocTypeXLSX,
	".csv":  provenance.DocTypeCSV,
	".txt":  provenance.DocTypeTXT,
	".md":   provenance.DocTypeMD,
	".html": provenance.DocTypeHTML,
	".htm":  provenance.DocTypeHTML,
}

// legacyExts are recognized but not extractable without an external
// conversion service.
var legacyExts = map[string]string{
	".doc": "doc",
	".ppt": "ppt",
	".xls": "xls",
}

// Detect classifies raw bytes. Order: filename extension, then declared
// content type, then magic-byte sniffing, defaulting to PDF. The PDF default
// is a low-confidence classification and is logged as such.
func Detect(raw []byte, filename, contentType string) (provenance.DocType, error) {
	if filename != "" {
		ext := strings.ToLower(filepath.Ext(filename))
		if t, ok := extTypes[ext]; ok {
			return t, nil
		}
		if name, ok := legacyExts[ext]; ok {
			return "", fmt.Errorf("%w: legacy %s files require conversion to the modern Office format", ErrCapabilityUnavailable, name)
		}
		if ext != "" {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
		}
	}

	if t, ok := typeFromContentType(contentType); ok {
		return t, nil
	}

	if t, ok := sniff(raw); ok {
		return t, nil
	}

	logger.Warn("Could not classify document, defaulting to PDF",
		zap.String("filename", filename),
		zap.String("content_type", contentType),
	)
	return provenance.DocTypePDF, nil
}

func typeFromContentType(contentType string) (provenance.DocType, bool) {
	ct := strings.ToLower(contentType)
	if ct == "" {
		return "", false
	}

	switch {
	case strings.Contains(ct, "pdf"):
		return provenance.DocTypePDF, true
	// PowerPoint before the Word/Office-generic tokens: its MIME type also
	// contains "officedocument".
	case strings.Contains(ct, "presentation") || strings.Contains(ct, "powerpoint"):
		return provenance.DocTypePPTX, true
	case strings.Contains(ct, "spreadsheet") || strings.Contains(ct, "excel"):
		return provenance.DocTypeXLSX, true
	case strings.Contains(ct, "wordprocessing") || strings.Contains(ct, "msword") || strings.Contains(ct, "officedocument"):
		return provenance.DocTypeDOCX, true
	case strings.Contains(ct, "csv"):
		return provenance.DocTypeCSV, true
	case strings.Contains(ct, "html"):
		return provenance.DocTypeHTML, true
	case strings.Contains(ct, "markdown"):
		return provenance.DocTypeMD, true
	case strings.Contains(ct, "text/plain"):
		return provenance.DocTypeTXT, true
	}
	return "", false
}

func sniff(raw []byte) (provenance.DocType, bool) {
	if bytes.HasPrefix(raw, []byte("%PDF")) {
		return provenance.DocTypePDF, true
	}
	if bytes.HasPrefix(raw, []byte("PK\x03\x04")) {
		return sniffZip(raw)
	}
	return "", false
}

// sniffZip distinguishes the OOXML container formats by their internal
// directory layout.
func sniffZip(raw []byte) (provenance.DocType, bool) {
	r, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", false
	}
	for _, f := range r.File {
		switch {
		case strings.HasPrefix(f.Name, "word/"):
			return provenance.DocTypeDOCX, true
		case strings.HasPrefix(f.Name, "ppt/"):
			return provenance.DocTypePPTX, true
		case strings.HasPrefix(f.Name, "xl/"):
			return provenance.DocTypeXLSX, true
		}
	}
	return "", false
}
