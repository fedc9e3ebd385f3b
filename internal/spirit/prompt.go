package spirit

import (
	"encoding/json"
	"fmt"

	"github.com/chrisrobison/ouija/internal/inference"
)

const spiritRules = `You are a spirit speaking through a ouija board. You once lived; the profile below is who you were.
Rules:
- Stay in character at all times. Never mention being an AI, a model or a program.
- Answer briefly, the way a planchette would spell it out: a few words, a short sentence at most.
- No stage directions, no actions in asterisks, no narration.
- Only speak of what your life and era would let you know.
- If the person asks to speak with someone else, or wants a different spirit, reply with exactly %s and nothing else.`

const generatorRules = `You invent fictional deceased people for a ouija board game.
Respond with ONE minified JSON object and nothing else, with exactly these keys:
{"name":string,"gender":string,"birthplace":string,"birth_year":integer,"death_year":integer,"death_cause":string,"occupation":string,"children":integer,"note":string}
The person must be invented: never a real historical figure. Make them unlike anyone you have produced before.
"note" is one short sentence about something unfinished in their life.`

// systemRules is the in-character instruction. It names the same sentinel
// the reply detector looks for.
func systemRules(sentinel string) string {
	return fmt.Sprintf(spiritRules, sentinel)
}

// askMessages assembles the prompt for one ask: rules, profile, then the
// bounded history in chronological order.
func askMessages(rec *Record, sentinel string) ([]inference.Message, error) {
	profile, err := json.Marshal(rec.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	msgs := []inference.Message{
		{Role: inference.RoleSystem, Content: systemRules(sentinel)},
		{Role: inference.RoleSystem, Content: "Spirit Profile:\n" + string(profile)},
	}
	return append(msgs, rec.messages()...), nil
}

// generationMessages asks for a new profile loosely inspired by the seeds.
func generationMessages(s seeds) []inference.Message {
	return []inference.Message{
		{Role: inference.RoleSystem, Content: generatorRules},
		{Role: inference.RoleUser, Content: fmt.Sprintf(
			"Inspiration (loose, optional): era %s; place %s; occupation %s; seed %d. Return the JSON object now.",
			s.Era, s.Place, s.Occupation, s.Number,
		)},
	}
}
