// Package grading decides correctness and point awards for submitted answers.
// Everything here is pure: no clocks, no I/O, no shared state.
package grading

import (
	"encoding/json"
	"strings"

	"live-quiz-service/internal/domain"
)

// Result is the outcome of grading one submission.
type Result struct {
	Correct    bool
	Multiplier float64
	// Err is domain.ErrMalformedAnswer when the submission shape did not fit the question kind.
	// A malformed answer still grades to zero credit; callers must not treat it as a failure.
	Err error
}

// Partial reports whether the submission earned some but not all of the credit.
func (r Result) Partial() bool {
	return r.Multiplier > 0 && r.Multiplier < 1
}

// Grade compares a raw submitted answer with the question's canonical answer.
func Grade(q domain.Question, raw json.RawMessage) Result {
	var submitted any
	if len(raw) == 0 || json.Unmarshal(raw, &submitted) != nil {
		return malformed()
	}

	switch key := q.Key().(type) {
	case domain.SingleChoiceKey:
		idx, ok := domain.AsIndex(submitted)
		if !ok {
			return malformed()
		}
		return binary(key.Index >= 0 && idx == key.Index)

	case domain.MultipleChoiceKey:
		items, ok := submitted.([]any)
		if !ok {
			return malformed()
		}
		for _, item := range items {
			if _, ok := domain.AsIndex(item); !ok {
				return malformed()
			}
		}
		return binary(sameSet(domain.IndexSet(items), key.Indices))

	case domain.TrueFalseKey:
		flag, ok := asFlag(submitted)
		if !ok {
			return malformed()
		}
		return binary(flag == key.Value)

	case domain.ShortAnswerKey:
		text, ok := asText(submitted)
		if !ok {
			return malformed()
		}
		return binary(matchesAny(text, key.Accepted))

	case domain.FillBlankKey:
		if key.BlankCount > 1 {
			return gradeBlanks(key, submitted)
		}
		if items, ok := submitted.([]any); ok {
			if len(items) == 0 {
				return malformed()
			}
			submitted = items[0]
		}
		text, ok := asText(submitted)
		if !ok {
			return malformed()
		}
		return binary(matchesAny(text, key.Blanks))
	}
	return binary(false)
}

// gradeBlanks awards one share of credit per matching position.
func gradeBlanks(key domain.FillBlankKey, submitted any) Result {
	items, ok := submitted.([]any)
	if !ok || len(items) != len(key.Blanks) {
		return malformed()
	}
	matched := 0
	for i, item := range items {
		if normalize(domain.Text(item)) == normalize(key.Blanks[i]) {
			matched++
		}
	}
	multiplier := float64(matched) / float64(key.BlankCount)
	if multiplier > 1 {
		multiplier = 1
	}
	return Result{Correct: multiplier == 1, Multiplier: multiplier}
}

func binary(correct bool) Result {
	if correct {
		return Result{Correct: true, Multiplier: 1}
	}
	return Result{}
}

func malformed() Result {
	return Result{Err: domain.ErrMalformedAnswer}
}

// asFlag reads a true/false submission. The first displayed option (index 0) stands for "true".
func asFlag(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t == 0, true
	}
	return false, false
}

func asText(v any) (string, bool) {
	switch v.(type) {
	case string, float64, bool:
		return domain.Text(v), true
	}
	return "", false
}

func matchesAny(text string, accepted []string) bool {
	want := normalize(text)
	for _, a := range accepted {
		if normalize(a) == want {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sameSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
