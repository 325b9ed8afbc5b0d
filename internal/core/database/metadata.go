package db

import (
	"bytes"
	"encoding/json"

	"github.com/vectra-io/vectra/internal/logger"
)

// parseMetadata normalizes a raw JSONB column value into a plain map.
// NULL, "null" and unparseable payloads all come back as an empty map; a
// decode failure is logged rather than propagated.
func parseMetadata(raw []byte) map[string]any {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		logger.Warn("failed to parse metadata JSON", "raw", string(raw), "error", err)
		return map[string]any{}
	}
	if m == nil {
		return map[string]any{}
	}
	return m
}

// copyMetadata returns a shallow copy so force-setting owner_id never
// mutates caller input.
func copyMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
