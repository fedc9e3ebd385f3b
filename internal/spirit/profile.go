// Package spirit holds the persona state machine: spirit records, their
// generation and lookup, and the bounded conversation each one keeps.
package spirit

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Profile is the generated identity of a spirit.
type Profile struct {
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	Birthplace string `json:"birthplace"`
	BirthYear  int    `json:"birth_year"`
	DeathYear  int    `json:"death_year"`
	DeathCause string `json:"death_cause"`
	Occupation string `json:"occupation"`
	Children   int    `json:"children"`
	Note       string `json:"note"`
}

// fallbackPrefix names spirits whose generated profile could not be used.
const fallbackPrefix = "Unnamed Spirit"

// now is swapped out by tests that need a fixed clock.
var now = time.Now

var jsonSpan = regexp.MustCompile(`(?s)\{.*\}`)

// profileFromJSON decodes a profile object. Numbers may arrive as numeric
// strings; anything missing is left at its zero value.
func profileFromJSON(obj gjson.Result) Profile {
	return Profile{
		Name:       strings.TrimSpace(obj.Get("name").String()),
		Gender:     obj.Get("gender").String(),
		Birthplace: obj.Get("birthplace").String(),
		BirthYear:  int(obj.Get("birth_year").Int()),
		DeathYear:  int(obj.Get("death_year").Int()),
		DeathCause: obj.Get("death_cause").String(),
		Occupation: obj.Get("occupation").String(),
		Children:   int(obj.Get("children").Int()),
		Note:       obj.Get("note").String(),
	}
}

// ParseProfile extracts a profile from raw model output. The reply may be
// bare JSON or JSON wrapped in prose or code fences. ok is false when no
// object could be decoded or it has no usable name.
func ParseProfile(raw string) (p Profile, ok bool) {
	raw = strings.TrimSpace(raw)
	if !gjson.Valid(raw) {
		raw = jsonSpan.FindString(raw)
		if raw == "" || !gjson.Valid(raw) {
			return Profile{}, false
		}
	}
	obj := gjson.Parse(raw)
	if !obj.IsObject() {
		return Profile{}, false
	}
	p = profileFromJSON(obj)
	if p.Name == "" {
		return Profile{}, false
	}
	return p, true
}

// FallbackProfile is the placeholder used when generation output is unusable.
func FallbackProfile() Profile {
	return Profile{
		Name:       fmt.Sprintf("%s %d", fallbackPrefix, now().Unix()),
		Gender:     "Unknown",
		Birthplace: "Unknown",
		DeathCause: "Unknown",
		Occupation: "Unknown",
	}
}

// ParseOrFallback always returns a profile with a name. fellBack reports
// whether the placeholder was used.
func ParseOrFallback(raw string) (p Profile, fellBack bool) {
	if p, ok := ParseProfile(raw); ok {
		return p, false
	}
	return FallbackProfile(), true
}

// Lifespan renders "1850-1921", leaving out unknown years.
func (p Profile) Lifespan() string {
	switch {
	case p.BirthYear == 0 && p.DeathYear == 0:
		return "dates unknown"
	case p.DeathYear == 0:
		return fmt.Sprintf("born %d", p.BirthYear)
	case p.BirthYear == 0:
		return fmt.Sprintf("died %d", p.DeathYear)
	default:
		return fmt.Sprintf("%d-%d", p.BirthYear, p.DeathYear)
	}
}
