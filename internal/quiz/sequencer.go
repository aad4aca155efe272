package quiz

import "math/rand"

// Sequence computes the ordered question ids to present for one attempt.
// Content-only questions are locked: they keep their original absolute
// index in the result for all values of randomize. Everything else is
// flexible and, when randomize is true, shuffled with a uniform
// permutation. Invoked exactly once, at attempt creation; the result is
// frozen into Attempt.QuestionOrder.
func Sequence(defs []QuestionDefinition, randomize bool) []string {
	out := make([]string, len(defs))
	if !randomize {
		for i, d := range defs {
			out[i] = d.ID
		}
		return out
	}

	flexible := make([]string, 0, len(defs))
	for i, d := range defs {
		if d.ContentOnly {
			out[i] = d.ID
			continue
		}
		flexible = append(flexible, d.ID)
	}
	rand.Shuffle(len(flexible), func(i, j int) {
		flexible[i], flexible[j] = flexible[j], flexible[i]
	})

	k := 0
	for i := range out {
		if out[i] == "" {
			out[i] = flexible[k]
			k++
		}
	}
	return out
}
