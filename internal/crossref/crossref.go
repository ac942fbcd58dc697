// Package crossref finds task references of the form #123 in free text.
package crossref

import (
	"fmt"
	"html/template"
	"regexp"
	"strconv"
	"strings"
)

// taskRefPattern matches task references (e.g., #12, #4051).
var taskRefPattern = regexp.MustCompile(`#(\d+)\b`)

// refSpan locates one reference inside the text.
type refSpan struct {
	start, end int
	id         int64
}

// findRefs returns the references in text. A reference must not follow a
// letter, digit or underscore, so "abc#1" and "&#39;" are not references.
func findRefs(text string) []refSpan {
	var spans []refSpan
	for _, m := range taskRefPattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > 0 && isWordByte(text[m[0]-1]) {
			continue
		}
		id, err := strconv.ParseInt(text[m[2]:m[3]], 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		spans = append(spans, refSpan{start: m[0], end: m[1], id: id})
	}
	return spans
}

func isWordByte(b byte) bool {
	return b == '_' || b == '&' ||
		('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// ExtractTaskRefs extracts all task ids referenced in text.
// Returns a deduplicated list preserving the order of first occurrence.
func ExtractTaskRefs(text string) []int64 {
	spans := findRefs(text)
	if len(spans) == 0 {
		return nil
	}

	seen := make(map[int64]bool)
	var result []int64
	for _, s := range spans {
		if seen[s.id] {
			continue
		}
		seen[s.id] = true
		result = append(result, s.id)
	}
	return result
}

// Linkify HTML-escapes text and turns every task reference into a link to
// the task page.
func Linkify(text string) template.HTML {
	spans := findRefs(text)

	var b strings.Builder
	last := 0
	for _, s := range spans {
		b.WriteString(template.HTMLEscapeString(text[last:s.start]))
		fmt.Fprintf(&b, `<a href="/task/%d/">#%d</a>`, s.id, s.id)
		last = s.end
	}
	b.WriteString(template.HTMLEscapeString(text[last:]))
	return template.HTML(b.String())
}
