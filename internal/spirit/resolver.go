package spirit

import "strings"

// MatchKind classifies a name lookup.
type MatchKind int

const (
	NoMatch MatchKind = iota
	OneMatch
	ManyMatches
)

func (k MatchKind) String() string {
	switch k {
	case OneMatch:
		return "one"
	case ManyMatches:
		return "many"
	default:
		return "none"
	}
}

// Resolution is the outcome of Resolve. Matches holds the single hit for
// OneMatch and every partial hit for ManyMatches.
type Resolution struct {
	Kind    MatchKind
	Matches []*Record
}

// Record returns the resolved record for OneMatch, nil otherwise.
func (r Resolution) Record() *Record {
	if r.Kind != OneMatch {
		return nil
	}
	return r.Matches[0]
}

// Resolve finds records by name, case-insensitively. The first exact match in
// records order wins; otherwise names containing the query, or contained in
// it, are partial matches. Callers reject empty queries.
func Resolve(records []*Record, query string) Resolution {
	q := strings.ToLower(strings.TrimSpace(query))

	var partial []*Record
	for _, rec := range records {
		name := strings.ToLower(strings.TrimSpace(rec.Profile.Name))
		if name == "" {
			continue
		}
		if name == q {
			return Resolution{Kind: OneMatch, Matches: []*Record{rec}}
		}
		if strings.Contains(name, q) || strings.Contains(q, name) {
			partial = append(partial, rec)
		}
	}

	switch len(partial) {
	case 0:
		return Resolution{Kind: NoMatch}
	case 1:
		return Resolution{Kind: OneMatch, Matches: partial}
	default:
		return Resolution{Kind: ManyMatches, Matches: partial}
	}
}
