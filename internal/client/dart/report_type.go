package dart

import "strings"

// NormalizeReportType derives the disclosure type from a raw report name by
// stripping a single leading bracketed prefix such as [기재정정] and the
// surrounding whitespace. Empty input yields "".
func NormalizeReportType(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "[") {
		if end := strings.Index(s, "]"); end >= 0 {
			s = s[end+1:]
		}
	}
	return strings.TrimSpace(s)
}
