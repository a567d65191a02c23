// Package sanitize cleans visitor-supplied free text before it is stored and
// echoed into agent notifications.
package sanitize

import (
	"html"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Text strips HTML tags, decodes entities, strips again so encoded tags do
// not survive, and collapses runs of whitespace.
func Text(s string) string {
	out := tagPattern.ReplaceAllString(s, "")
	out = html.UnescapeString(out)
	out = tagPattern.ReplaceAllString(out, "")
	return strings.Join(strings.Fields(out), " ")
}

// Multiline is Text for message bodies: line breaks are kept, blank lines
// squeezed to one.
func Multiline(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = Text(line)
		if line == "" {
			if !blank && len(kept) > 0 {
				kept = append(kept, "")
			}
			blank = true
			continue
		}
		blank = false
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
