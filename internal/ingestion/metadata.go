package ingestion

import (
	"net/url"
	"strings"
)

// InferredMetadata holds the category and doc type inferred from a document
// URL's structure. CLI flags take precedence over inferred values — this is
// the "best-effort" fallback when the user doesn't specify explicit metadata.
type InferredMetadata struct {
	// Category labels the campus topic (admissions, academics, placements,
	// facilities, research, general).
	Category string
	// DocType classifies the document kind (page, faq, brochure, circular).
	DocType string
}

// pathCategoryAliases maps leading URL path segments on the college site to
// our canonical category labels.
var pathCategoryAliases = map[string]string{
	"admission":   "admissions",
	"admissions":  "admissions",
	"academics":   "academics",
	"departments": "academics",
	"department":  "academics",
	"programmes":  "academics",
	"placement":   "placements",
	"placements":  "placements",
	"training":    "placements",
	"facilities":  "facilities",
	"hostel":      "facilities",
	"library":     "facilities",
	"transport":   "facilities",
	"research":    "research",
	"innovation":  "research",
	"about":       "general",
	"contact":     "general",
}

// InferMetadata inspects the document source URL and returns best-effort
// metadata. If the URL doesn't match any known pattern the returned fields
// contain sensible defaults ("general", "page").
//
// Supported URL patterns:
//
//	skcet.ac.in/{section}/...
//	www.skcet.ac.in/{section}/...
//	anything ending in .pdf (brochure)
//	paths containing "faq" (faq) or "circular" (circular)
func InferMetadata(rawURL string) InferredMetadata {
	m := InferredMetadata{
		Category: "general",
		DocType:  "page",
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return m
	}

	host := strings.ToLower(parsed.Hostname())
	path := strings.ToLower(parsed.Path)
	segments := trimSegments(path)

	if host == "skcet.ac.in" || host == "www.skcet.ac.in" {
		inferCollegeSite(segments, &m)
	}

	switch {
	case strings.HasSuffix(path, ".pdf"):
		m.DocType = "brochure"
	case containsSegment(segments, "faq", "faqs"):
		m.DocType = "faq"
	case containsSegment(segments, "circular", "circulars"):
		m.DocType = "circular"
	}

	return m
}

// inferCollegeSite handles skcet.ac.in/{section}/...
func inferCollegeSite(segments []string, m *InferredMetadata) {
	if len(segments) == 0 {
		return
	}
	if cat, ok := pathCategoryAliases[segments[0]]; ok {
		m.Category = cat
	}
}

// containsSegment reports whether any of the given values appears as a path
// segment.
func containsSegment(segments []string, values ...string) bool {
	for _, seg := range segments {
		for _, v := range values {
			if seg == v {
				return true
			}
		}
	}
	return false
}

// trimSegments splits a URL path into non-empty lowercase segments.
func trimSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
