package analysis

import (
	"regexp"
	"strings"

	"clara-backend/internal/shared/telemetry"
)

// Model replies are untrusted: JSON may arrive wrapped in prose, fenced
// in markdown, truncated, or not at all. ExtractRecord recovers what it
// can and degrades to sentinel records instead of failing.

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	braceSpanRe  = regexp.MustCompile(`(?s)(\{.*?\})`)
)

const rawResponsePreviewLen = 500

// ExtractRecord recovers a single structured record from a raw model
// reply. Span selection tries, in order: a fenced code block, the first
// brace-delimited span, then the whole trimmed text if brace-delimited.
// No span at all yields the structural sentinel; a span that fails to
// parse yields the parse-failure sentinel with the raw reply preserved
// for diagnosis. The two sentinels are deliberately distinct.
func ExtractRecord(raw string) Record {
	if strings.TrimSpace(raw) == "" {
		return Record{}
	}

	span, ok := selectJSONSpan(raw)
	if !ok {
		return structuralSentinel()
	}

	rec, err := decodeRecord([]byte(span))
	if err != nil {
		telemetry.Error("extract.parse_failed", map[string]any{
			"error":   err.Error(),
			"preview": previewRaw(raw),
		})
		return parseFailureSentinel(raw, err)
	}
	return rec
}

func selectJSONSpan(raw string) (string, bool) {
	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := braceSpanRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed, true
	}
	return "", false
}

func structuralSentinel() Record {
	return Record{
		Title: "Error Processing Document",
		Error: "Could not extract valid JSON from model response",
	}
}

func parseFailureSentinel(raw string, err error) Record {
	return Record{
		Title:       "Error parsing model response",
		Error:       "Could not parse response as JSON: " + err.Error(),
		RawResponse: previewRaw(raw),
	}
}

func previewRaw(raw string) string {
	if len(raw) > rawResponsePreviewLen {
		return raw[:rawResponsePreviewLen] + "..."
	}
	return raw
}
