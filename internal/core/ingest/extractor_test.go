package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextPassthrough(t *testing.T) {
	e := NewDocconvExtractor(false)
	data := []byte("line one\nline two")

	// All bare-text and generic binary types skip docconv entirely; in
	// particular application/octet-stream, the multipart default for
	// uploaded files.
	for _, ct := range []string{
		"",
		"text/plain",
		"text/plain; charset=utf-8",
		"text/markdown",
		"application/octet-stream",
	} {
		out, err := e.ExtractText(context.Background(), data, ct)
		require.NoError(t, err, "content type %q", ct)
		assert.Equal(t, string(data), out, "content type %q", ct)
	}
}

func TestExtractTextCancelledContext(t *testing.T) {
	e := NewDocconvExtractor(false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExtractText(ctx, []byte("data"), "text/plain")
	assert.Error(t, err)
}
