package chunkextract

import "regexp"

// EvidenceMaxLen bounds how much of a matched line is kept as evidence
// (spec.md §4.3 step 5: evidence = matched[:50]).
const EvidenceMaxLen = 50

// DefaultPatternConfidence is the confidence assigned to every catalog hit.
const DefaultPatternConfidence = 0.5

// DetectedPattern is one catalog hit within a file.
type DetectedPattern struct {
	Name       string
	Category   string
	Evidence   string
	LineNumber int
	Confidence float64
}

type patternRule struct {
	name     string
	category string
	re       *regexp.Regexp
}

// catalog is the fixed pattern list from spec.md §4.3 step 5. Order
// matters only for deterministic scan order; every pattern fires at
// most once per file (first match wins).
var catalog = []patternRule{
	{"singleton", "creational", regexp.MustCompile(`(?i)\bgetInstance\s*\(|\bsync\.Once\b|private\s+static\s+\w+\s+instance`)},
	{"factory", "creational", regexp.MustCompile(`(?i)\bfactory\b|\bcreate[A-Z]\w*\s*\(|\bNew\w+Factory\b`)},
	{"repository", "structural", regexp.MustCompile(`(?i)\brepository\b|\bRepo\b\s*interface|\bFindBy\w+\(`)},
	{"circuit-breaker", "resilience", regexp.MustCompile(`(?i)circuit[\s_-]?breaker|CircuitBreaker`)},
	{"retry", "resilience", regexp.MustCompile(`(?i)\bretry\w*\s*\(|withRetry|RetryWithBackoff`)},
	{"error-boundary", "resilience", regexp.MustCompile(`(?i)ErrorBoundary|componentDidCatch|error[_ ]?boundary`)},
	{"memoization", "performance", regexp.MustCompile(`(?i)\bmemoize\b|\buseMemo\b|\blru[_-]?cache\b`)},
	{"debounce-throttle", "performance", regexp.MustCompile(`(?i)\bdebounce\b|\bthrottle\b`)},
	{"event-emitter", "behavioral", regexp.MustCompile(`(?i)EventEmitter|\bemit\s*\(|\baddEventListener\s*\(|\bon\s*\(\s*["']`)},
	{"middleware", "behavioral", regexp.MustCompile(`(?i)\bmiddleware\b|func\s*\(next\s+http\.Handler\)`)},
	{"state-machine", "behavioral", regexp.MustCompile(`(?i)state[_ ]?machine|\btransition\s*\(|\bFSM\b`)},
	{"builder", "creational", regexp.MustCompile(`(?i)\bBuilder\b|\.with[A-Z]\w*\(.*\)\.with`)},
}

// DetectPatterns scans content line by line for the pattern catalog. The
// first regex hit per pattern records one DetectedPattern; later lines
// matching the same pattern are ignored.
func DetectPatterns(content string) []DetectedPattern {
	lines := splitLines(content)
	found := make([]DetectedPattern, 0, len(catalog))
	seen := make(map[string]bool, len(catalog))

	for lineNo, line := range lines {
		for _, rule := range catalog {
			if seen[rule.name] {
				continue
			}
			if m := rule.re.FindString(line); m != "" {
				seen[rule.name] = true
				found = append(found, DetectedPattern{
					Name:       rule.name,
					Category:   rule.category,
					Evidence:   truncate(m, EvidenceMaxLen),
					LineNumber: lineNo + 1,
					Confidence: DefaultPatternConfidence,
				})
			}
		}
		if len(seen) == len(catalog) {
			break
		}
	}
	return found
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func splitLines(content string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i])
			start = i + 1
		}
	}
	lines = append(lines, content[start:])
	return lines
}
