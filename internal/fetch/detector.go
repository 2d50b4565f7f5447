package fetch

import (
	"bytes"
	"strings"
)

// Heuristic decides when a statically fetched page must be promoted to a
// headless render: SPA root markers, an empty or tiny body, or heavy script
// coverage all mean the probe saw a JS shell rather than content.
type Heuristic struct {
	minHTMLBytes int
}

// NewHeuristic creates a detector; a zero threshold defaults to 2048 bytes.
func NewHeuristic(minHTMLBytes int) *Heuristic {
	if minHTMLBytes <= 0 {
		minHTMLBytes = 2048
	}
	return &Heuristic{minHTMLBytes: minHTMLBytes}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("artdeco"),
}

// NeedsRender reports whether the probe response warrants a browser render.
// Error statuses never promote; they are classified as-is.
func (h *Heuristic) NeedsRender(statusCode int, body []byte) bool {
	if statusCode != 200 {
		return false
	}
	if len(body) == 0 {
		return true
	}
	if len(body) < h.minHTMLBytes && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	pos := 0
	for {
		relStart := strings.Index(lower[pos:], openTag)
		if relStart == -1 {
			break
		}
		start := pos + relStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relEnd := strings.Index(lower[contentStart:], closeTag)
		var next int
		if relEnd == -1 {
			next = total
		} else {
			next = contentStart + relEnd + len(closeTag)
		}
		coverage += next - start
		pos = next
	}

	if coverage == 0 {
		return false
	}
	return coverage*100/total >= 25
}
