package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/vectra-io/vectra/internal/core"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor extracts plain text from uploaded files (PDF, DOCX,
// HTML, plain text, ...) via docconv, keyed by MIME type.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if passthroughType(contentType) {
		return string(data), nil
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", contentType, err)
	}
	return res.Body, nil
}

// passthroughType reports whether the content should be taken as-is.
// docconv has no handler for bare text types, and generic binary types
// (application/octet-stream is the multipart default for unrecognized
// files) come back from it as empty text with no error.
func passthroughType(contentType string) bool {
	switch {
	case contentType == "",
		strings.HasPrefix(contentType, "text/plain"),
		strings.HasPrefix(contentType, "text/markdown"),
		strings.HasPrefix(contentType, "application/octet-stream"):
		return true
	}
	return false
}
