package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// headerAnalysis reports whether the first CSV row is a header row and the
// column names to use either way.
type headerAnalysis struct {
	names          []string
	firstRowIsData bool
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`),
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`),
	regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}(:\d{2})?`),
}

// analyzeHeader decides whether the first row holds column names or data.
// A row where at least half the fields look like names is taken as a header;
// otherwise names are generated and the row is kept as data.
func analyzeHeader(firstRow []string) *headerAnalysis {
	if len(firstRow) == 0 {
		return nil
	}

	headerLike := 0
	for _, field := range firstRow {
		if isLikelyHeader(field) {
			headerLike++
		}
	}

	out := &headerAnalysis{names: make([]string, len(firstRow))}
	if float64(headerLike)/float64(len(firstRow)) >= 0.5 {
		for i, field := range firstRow {
			out.names[i] = cleanHeaderName(field, i)
		}
	} else {
		out.firstRowIsData = true
		for i := range firstRow {
			out.names[i] = generatedName(i)
		}
	}
	out.names = dedupeNames(out.names)
	return out
}

// isLikelyHeader reports whether a field reads as a column name rather than
// a value: not a number, not a date, and mostly letters.
func isLikelyHeader(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if _, err := strconv.ParseFloat(text, 64); err == nil {
		return false
	}
	for _, p := range datePatterns {
		if p.MatchString(text) {
			return false
		}
	}

	letters, others := 0, 0
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsSpace(r):
		default:
			others++
		}
	}
	if letters+others == 0 {
		return false
	}
	return letters > 0 && float64(letters)/float64(letters+others) >= 0.3
}

func generatedName(index int) string {
	return fmt.Sprintf("column_%d", index+1)
}

var headerCleaner = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func cleanHeaderName(name string, index int) string {
	name = strings.TrimSpace(name)
	if name == "" || !isLikelyHeader(name) {
		return generatedName(index)
	}
	cleaned := headerCleaner.ReplaceAllString(name, "_")
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		return generatedName(index)
	}
	return strings.ToLower(cleaned)
}

// dedupeNames suffixes duplicate names with a counter.
func dedupeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		candidate := name
		for n := 1; seen[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		seen[candidate] = true
		out[i] = candidate
	}
	return out
}
