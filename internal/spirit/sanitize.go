package spirit

import (
	"regexp"
	"strings"
)

// lineDecoration matches runs of markdown rule/emphasis characters at the
// start or end of a line.
var lineDecoration = regexp.MustCompile(`(?m)^[-*_]+|[-*_]+$`)

// Sanitize trims the reply and strips leading and trailing runs of '-', '*'
// and '_' from every line. It is applied until nothing changes, so
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	for {
		next := strings.TrimSpace(lineDecoration.ReplaceAllString(strings.TrimSpace(s), ""))
		if next == s {
			return s
		}
		s = next
	}
}

// ExtractSentinel removes every occurrence of sentinel from reply. found
// reports whether the spirit asked to hand over to someone new.
func ExtractSentinel(reply, sentinel string) (cleaned string, found bool) {
	if sentinel == "" || !strings.Contains(reply, sentinel) {
		return reply, false
	}
	return Sanitize(strings.ReplaceAll(reply, sentinel, "")), true
}
