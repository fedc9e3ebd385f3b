package spirit

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/chrisrobison/ouija/internal/inference"
)

// Turn is one message of a spirit's conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Record is a spirit as persisted: identity, profile and conversation.
// ID is derived once at creation and never recomputed.
type Record struct {
	ID           string  `json:"_id"`
	Profile      Profile `json:"profile"`
	Conversation []Turn  `json:"conversation"`
}

// NewRecord builds a record with an empty conversation for p.
func NewRecord(p Profile) *Record {
	return &Record{
		ID:           Slugify(fmt.Sprintf("%s_%d", p.Name, p.BirthYear)),
		Profile:      p,
		Conversation: []Turn{},
	}
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9_-]+`)

// Slugify lowercases s, collapses every run of characters outside
// [a-z0-9_-] into one underscore and trims underscores from both ends.
// Input that reduces to nothing yields a time-based id.
func Slugify(s string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(s), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return fmt.Sprintf("spirit_%d", now().Unix())
	}
	return slug
}

// Append adds a turn and keeps only the newest 2*depth turns.
func (r *Record) Append(role, content string, depth int) {
	r.Conversation = append(r.Conversation, Turn{Role: role, Content: content})
	r.Conversation = bound(r.Conversation, depth)
}

func bound(turns []Turn, depth int) []Turn {
	limit := 2 * depth
	if limit <= 0 || len(turns) <= limit {
		return turns
	}
	kept := make([]Turn, limit)
	copy(kept, turns[len(turns)-limit:])
	return kept
}

// Last returns up to n of the most recent turns, oldest first.
func (r *Record) Last(n int) []Turn {
	if n <= 0 {
		return []Turn{}
	}
	if n > len(r.Conversation) {
		n = len(r.Conversation)
	}
	out := make([]Turn, n)
	copy(out, r.Conversation[len(r.Conversation)-n:])
	return out
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (r *Record) Clone() *Record {
	c := *r
	c.Conversation = append([]Turn{}, r.Conversation...)
	return &c
}

func (r *Record) encode() ([]byte, error) {
	out := r
	if r.Conversation == nil {
		out = r.Clone()
	}
	return json.MarshalIndent(out, "", "  ")
}

// decodeRecord checks the validity invariant and decodes data. A record is
// valid when _id is a non-empty string, profile is an object and
// conversation is an array.
func decodeRecord(data []byte) (*Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: record is not valid JSON", ErrValidation)
	}
	doc := gjson.ParseBytes(data)
	id := doc.Get("_id")
	if id.Type != gjson.String || id.String() == "" {
		return nil, fmt.Errorf("%w: missing _id", ErrValidation)
	}
	profile := doc.Get("profile")
	if !profile.IsObject() {
		return nil, fmt.Errorf("%w: profile is not an object", ErrValidation)
	}
	conversation := doc.Get("conversation")
	if !conversation.IsArray() {
		return nil, fmt.Errorf("%w: conversation is not a list", ErrValidation)
	}

	rec := &Record{
		ID:           id.String(),
		Profile:      profileFromJSON(profile),
		Conversation: []Turn{},
	}
	conversation.ForEach(func(_, turn gjson.Result) bool {
		rec.Conversation = append(rec.Conversation, Turn{
			Role:    turn.Get("role").String(),
			Content: turn.Get("content").String(),
		})
		return true
	})
	return rec, nil
}

// messages replays the conversation for the model. Any role other than
// assistant is sent as user.
func (r *Record) messages() []inference.Message {
	msgs := make([]inference.Message, 0, len(r.Conversation))
	for _, t := range r.Conversation {
		role := inference.RoleUser
		if t.Role == inference.RoleAssistant {
			role = inference.RoleAssistant
		}
		msgs = append(msgs, inference.Message{Role: role, Content: t.Content})
	}
	return msgs
}
