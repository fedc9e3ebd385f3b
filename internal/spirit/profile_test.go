package spirit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseProfile(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Profile
		ok   bool
	}{
		{
			name: "bare json",
			raw:  `{"name":"Ida Bell","gender":"female","birthplace":"Paris","birth_year":1850,"death_year":1921,"death_cause":"influenza","occupation":"seamstress","children":3,"note":"kept a diary"}`,
			want: Profile{Name: "Ida Bell", Gender: "female", Birthplace: "Paris", BirthYear: 1850, DeathYear: 1921, DeathCause: "influenza", Occupation: "seamstress", Children: 3, Note: "kept a diary"},
			ok:   true,
		},
		{
			name: "wrapped in prose and fences",
			raw:  "Here you go:\n```json\n{\"name\": \"Tomas Veld\",\n \"birth_year\": 1777}\n```\nEnjoy!",
			want: Profile{Name: "Tomas Veld", BirthYear: 1777},
			ok:   true,
		},
		{
			name: "numeric strings",
			raw:  `{"name":"Abel","birth_year":"1801","death_year":"1860","children":"4"}`,
			want: Profile{Name: "Abel", BirthYear: 1801, DeathYear: 1860, Children: 4},
			ok:   true,
		},
		{name: "missing name", raw: `{"gender":"male","birth_year":1800}`},
		{name: "blank name", raw: `{"name":"   "}`},
		{name: "not json", raw: "The spirits are silent."},
		{name: "broken json", raw: `{"name":"Ida"`},
		{name: "array", raw: `[{"name":"Ida"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseProfile(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOrFallback(t *testing.T) {
	fixedClock(t, time.Unix(1700000000, 0))

	p, fellBack := ParseOrFallback("no json here")
	assert.True(t, fellBack)
	assert.Equal(t, Profile{
		Name:       "Unnamed Spirit 1700000000",
		Gender:     "Unknown",
		Birthplace: "Unknown",
		DeathCause: "Unknown",
		Occupation: "Unknown",
	}, p)

	p, fellBack = ParseOrFallback(`{"name":"Ida"}`)
	assert.False(t, fellBack)
	assert.Equal(t, "Ida", p.Name)
}

func TestLifespan(t *testing.T) {
	assert.Equal(t, "1850-1921", Profile{BirthYear: 1850, DeathYear: 1921}.Lifespan())
	assert.Equal(t, "born 1850", Profile{BirthYear: 1850}.Lifespan())
	assert.Equal(t, "died 1921", Profile{DeathYear: 1921}.Lifespan())
	assert.Equal(t, "dates unknown", Profile{}.Lifespan())
}
