package spirit

import (
	"fmt"
	"strings"
)

// Describe renders a one-line summary of a spirit.
func Describe(p Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", p.Name, p.Lifespan())
	if p.Occupation != "" && p.Occupation != "Unknown" {
		fmt.Fprintf(&b, ", %s", p.Occupation)
	}
	if p.Birthplace != "" && p.Birthplace != "Unknown" {
		fmt.Fprintf(&b, " from %s", p.Birthplace)
	}
	return b.String()
}

// FormatList enumerates spirits one per line, marking the current one.
func FormatList(records []*Record, currentID string) string {
	if len(records) == 0 {
		return "No spirits have been summoned yet."
	}
	var b strings.Builder
	for i, rec := range records {
		marker := " "
		if rec.ID == currentID {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %d. %s [%s]\n", marker, i+1, Describe(rec.Profile), rec.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatChoices(query string, matches []*Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Several spirits answer to %q:\n", query)
	for _, rec := range matches {
		fmt.Fprintf(&b, "- %s [%s]\n", Describe(rec.Profile), rec.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSwitch renders the outcome of a switch.
func FormatSwitch(query string, res Resolution) string {
	switch res.Kind {
	case OneMatch:
		return fmt.Sprintf("Now speaking with %s.", res.Record().Profile.Name)
	case ManyMatches:
		return formatChoices(query, res.Matches)
	default:
		return fmt.Sprintf("No spirit named %q.", query)
	}
}

// FormatSearch renders the outcome of a search.
func FormatSearch(query string, res Resolution) string {
	switch res.Kind {
	case OneMatch:
		return "Found " + Describe(res.Record().Profile) + "."
	case ManyMatches:
		return formatChoices(query, res.Matches)
	default:
		return fmt.Sprintf("No spirit named %q.", query)
	}
}

// FormatReset renders the confirmation for a freshly summoned spirit.
func FormatReset(rec *Record) string {
	return fmt.Sprintf("A new spirit has come through: %s.", Describe(rec.Profile))
}
