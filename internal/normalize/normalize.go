// Package normalize turns raw document bytes into provenance-preserving
// spans. It performs no writes; callers persist the result.
package normalize

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/docgraph/pipeline/internal/provenance"
	"github.com/docgraph/pipeline/pkg/logger"
)

var (
	// ErrUnsupportedType marks a classification failure. Terminal, not
	// retryable.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrCapabilityUnavailable marks a recognized format this build cannot
	// extract (legacy Office binaries need an external conversion service).
	// Terminal for the run, but not a classification bug.
	ErrCapabilityUnavailable = errors.New("extraction capability unavailable")
)

type extractor func(raw []byte, docID, tenantID string) ([]provenance.Span, error)

var extractors = map[provenance.DocType]extractor{
	provenance.DocTypePDF:  extractPDF,
	provenance.DocTypeDOCX: extractDOCX,
	provenance.DocTypePPTX: extractPPTX,
	provenance.DocTypeXLSX: extractXLSX,
	provenance.DocTypeCSV:  extractCSV,
	provenance.DocTypeTXT:  extractText(provenance.DocTypeTXT),
	provenance.DocTypeMD:   extractText(provenance.DocTypeMD),
	provenance.DocTypeHTML: extractHTML,
}

// Normalize extracts one Span per addressable text unit from raw document
// bytes. filename and contentType are optional hints; see Detect for the
// classification order. A well-formed empty document yields an empty slice
// and no error.
func Normalize(raw []byte, docID, tenantID, filename, contentType string) ([]provenance.Span, error) {
	docType, err := Detect(raw, filename, contentType)
	if err != nil {
		return nil, err
	}

	extract, ok := extractors[docType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, docType)
	}

	spans, err := extract(raw, docID, tenantID)
	if err != nil {
		if errors.Is(err, ErrCapabilityUnavailable) {
			return nil, err
		}
		// Parser failures may be transient resource exhaustion rather than a
		// bad file; leave the retry decision to the caller.
		return nil, fmt.Errorf("normalizing %s document %s: %w", docType, docID, err)
	}

	logger.Debug("Document normalized",
		zap.String("doc_id", docID),
		zap.String("doc_type", string(docType)),
		zap.Int("spans", len(spans)),
	)

	return spans, nil
}
