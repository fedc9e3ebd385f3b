package spirit

import (
	"encoding/json"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisrobison/ouija/internal/inference"
)

func TestSlugify(t *testing.T) {
	fixedClock(t, time.Unix(1700000000, 0))

	tests := []struct {
		in   string
		want string
	}{
		{"Ida Bell_1850", "ida_bell_1850"},
		{"  Élodie   d'Arcy_1799 ", "lodie_d_arcy_1799"},
		{"__Mary-Anne__", "mary-anne"},
		{"O'Brien, Seamus_0", "o_brien_seamus_0"},
		{"!!!", "spirit_1700000000"},
		{"", "spirit_1700000000"},
		{"___", "spirit_1700000000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestSlugifyAlphabet(t *testing.T) {
	valid := regexp.MustCompile(`^[a-z0-9_-]*$`)
	inputs := []string{
		"Ida Bell", "ÅSA Ñandú 1888", "a\tb\nc", "--x--", "_x_", "日本語 name", "name_with__double", "A.B.C", "%%%a%%%",
	}
	for _, in := range inputs {
		got := Slugify(in)
		assert.NotEmpty(t, got, in)
		assert.Regexp(t, valid, got, in)
		assert.NotEqual(t, byte('_'), got[0], in)
		assert.NotEqual(t, byte('_'), got[len(got)-1], in)
		assert.Equal(t, got, Slugify(in), "deterministic for %q", in)
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(Profile{Name: "Ida Bell", BirthYear: 1850})
	assert.Equal(t, "ida_bell_1850", rec.ID)
	assert.NotNil(t, rec.Conversation)
	assert.Empty(t, rec.Conversation)

	rec = NewRecord(Profile{Name: "Abel"})
	assert.Equal(t, "abel_0", rec.ID)
}

func TestAppendKeepsMostRecentTurns(t *testing.T) {
	rec := NewRecord(Profile{Name: "Ida"})
	const depth = 3
	for i := 0; i < 10; i++ {
		rec.Append(inference.RoleUser, fmt.Sprintf("q%d", i), depth)
		rec.Append(inference.RoleAssistant, fmt.Sprintf("a%d", i), depth)
		assert.LessOrEqual(t, len(rec.Conversation), 2*depth)
	}

	want := []Turn{
		{Role: "user", Content: "q7"}, {Role: "assistant", Content: "a7"},
		{Role: "user", Content: "q8"}, {Role: "assistant", Content: "a8"},
		{Role: "user", Content: "q9"}, {Role: "assistant", Content: "a9"},
	}
	if diff := cmp.Diff(want, rec.Conversation); diff != "" {
		t.Errorf("conversation mismatch (-want +got):\n%s", diff)
	}
}

func TestLast(t *testing.T) {
	rec := NewRecord(Profile{Name: "Ida"})
	rec.Append("user", "one", 20)
	rec.Append("assistant", "two", 20)
	rec.Append("user", "three", 20)

	assert.Len(t, rec.Last(5), 3)
	assert.Equal(t, []Turn{{Role: "assistant", Content: "two"}, {Role: "user", Content: "three"}}, rec.Last(2))
	assert.Empty(t, rec.Last(0))
}

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		valid bool
	}{
		{"valid", `{"_id":"ida_1850","profile":{"name":"Ida"},"conversation":[]}`, true},
		{"valid with turns", `{"_id":"ida_1850","profile":{"name":"Ida"},"conversation":[{"role":"user","content":"hi"}]}`, true},
		{"missing conversation", `{"_id":"ida_1850","profile":{"name":"Ida"}}`, false},
		{"conversation not list", `{"_id":"ida_1850","profile":{"name":"Ida"},"conversation":"hi"}`, false},
		{"null conversation", `{"_id":"ida_1850","profile":{"name":"Ida"},"conversation":null}`, false},
		{"empty id", `{"_id":"","profile":{"name":"Ida"},"conversation":[]}`, false},
		{"numeric id", `{"_id":12,"profile":{"name":"Ida"},"conversation":[]}`, false},
		{"profile not object", `{"_id":"ida_1850","profile":"Ida","conversation":[]}`, false},
		{"garbage", `{"_id":"ida`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := decodeRecord([]byte(tt.data))
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, "ida_1850", rec.ID)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestEncodeUsesOriginalLayout(t *testing.T) {
	rec := &Record{ID: "ida_1850", Profile: Profile{Name: "Ida", BirthYear: 1850}}
	data, err := rec.encode()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"ida_1850"`, string(raw["_id"]))
	assert.JSONEq(t, `[]`, string(raw["conversation"]))

	back, err := decodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec.Profile, back.Profile)
}

func TestMessagesRoleMapping(t *testing.T) {
	rec := &Record{Conversation: []Turn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "boo"},
		{Role: "ghost", Content: "??"},
	}}
	msgs := rec.messages()
	assert.Equal(t, []inference.Message{
		{Role: inference.RoleUser, Content: "hi"},
		{Role: inference.RoleAssistant, Content: "boo"},
		{Role: inference.RoleUser, Content: "??"},
	}, msgs)
}
