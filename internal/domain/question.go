package domain

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind is the question type tag as stored by the question bank.
type Kind string

const (
	KindSingleChoice   Kind = "single"
	KindMultipleChoice Kind = "multiple"
	KindTrueFalse      Kind = "truefalse"
	KindShortAnswer    Kind = "short"
	KindFillBlank      Kind = "fillblank"
)

// BlankMarker is the placeholder that marks one blank in a fill-in question text.
const BlankMarker = "[blank]"

// DefaultTimeLimit applies to questions stored without an explicit time allowance.
const DefaultTimeLimit = 75 * time.Second

// Valid reports whether k is one of the five known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSingleChoice, KindMultipleChoice, KindTrueFalse, KindShortAnswer, KindFillBlank:
		return true
	}
	return false
}

// Question is a read-only question definition supplied by the quiz store or the instructor.
type Question struct {
	ID          string       `json:"id"`
	Kind        Kind         `json:"question_type"`
	Text        string       `json:"question_text"`
	Options     []string     `json:"options,omitempty"`
	Answer      StoredAnswer `json:"correct_answer"`
	Explanation string       `json:"explanation,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	TimeLimit   int          `json:"time_limit,omitempty"` // seconds, defaults to 75 if zero
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Limit returns the question's time allowance.
func (q Question) Limit() time.Duration {
	if q.TimeLimit <= 0 {
		return DefaultTimeLimit
	}
	return time.Duration(q.TimeLimit) * time.Second
}

// BlankCount is the number of blank markers in the question text.
func (q Question) BlankCount() int {
	return strings.Count(q.Text, BlankMarker)
}

// Public formats the question for delivery to clients. The canonical answer is never included.
func (q Question) Public(index, total int) NewQuestion {
	options := q.Options
	if options == nil {
		options = []string{}
	}
	return NewQuestion{
		QuestionNumber: index + 1,
		TotalQuestions: total,
		ID:             q.ID,
		Text:           q.Text,
		Kind:           q.Kind,
		Options:        options,
		ImageURL:       q.ImageURL,
		TimeLimit:      int(q.Limit() / time.Second),
	}
}

// StoredAnswer is the canonical answer exactly as stored, normally JSON text.
// Values that are not valid JSON are kept verbatim and read back as a plain string.
type StoredAnswer string

// MarshalJSON emits the stored JSON value, or a JSON string when the stored text is not JSON.
func (a StoredAnswer) MarshalJSON() ([]byte, error) {
	if a == "" {
		return []byte("null"), nil
	}
	if json.Valid([]byte(a)) {
		return []byte(a), nil
	}
	return json.Marshal(string(a))
}

// UnmarshalJSON keeps the raw JSON value.
func (a *StoredAnswer) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = ""
		return nil
	}
	*a = StoredAnswer(data)
	return nil
}

// Value decodes the stored text. It never fails: undecodable text is returned as a string.
// A JSON string holding JSON, such as "[0,2]" sent back by clients, is decoded once more.
func (a StoredAnswer) Value() any {
	var v any
	if err := json.Unmarshal([]byte(a), &v); err != nil {
		return string(a)
	}
	if text, ok := v.(string); ok {
		var inner any
		if err := json.Unmarshal([]byte(text), &inner); err == nil {
			return inner
		}
	}
	return v
}

// AnswerKey is the decoded canonical answer of a question, one variant per Kind.
type AnswerKey interface {
	Kind() Kind
}

// SingleChoiceKey holds the index of the only correct option. Index is -1 when the stored value is not an index.
type SingleChoiceKey struct{ Index int }

// MultipleChoiceKey holds the sorted, de-duplicated set of correct option indices.
type MultipleChoiceKey struct{ Indices []int }

// TrueFalseKey holds the correct boolean.
type TrueFalseKey struct{ Value bool }

// ShortAnswerKey holds every accepted spelling.
type ShortAnswerKey struct{ Accepted []string }

// FillBlankKey holds the accepted fillers, one per blank when BlankCount > 1,
// or the synonyms of the single blank otherwise.
type FillBlankKey struct {
	Blanks     []string
	BlankCount int
}

func (SingleChoiceKey) Kind() Kind   { return KindSingleChoice }
func (MultipleChoiceKey) Kind() Kind { return KindMultipleChoice }
func (TrueFalseKey) Kind() Kind      { return KindTrueFalse }
func (ShortAnswerKey) Kind() Kind    { return KindShortAnswer }
func (FillBlankKey) Kind() Kind      { return KindFillBlank }

// Key decodes the canonical answer into the variant matching the question kind.
// Unknown kinds decode as a single-choice key that matches nothing.
func (q Question) Key() AnswerKey {
	v := q.Answer.Value()
	switch q.Kind {
	case KindMultipleChoice:
		return MultipleChoiceKey{Indices: IndexSet(v)}
	case KindTrueFalse:
		return TrueFalseKey{Value: truthy(v)}
	case KindShortAnswer:
		return ShortAnswerKey{Accepted: TextList(v)}
	case KindFillBlank:
		return FillBlankKey{Blanks: TextList(v), BlankCount: q.BlankCount()}
	case KindSingleChoice:
		if idx, ok := AsIndex(v); ok {
			return SingleChoiceKey{Index: idx}
		}
	}
	return SingleChoiceKey{Index: -1}
}

// AsIndex converts a decoded JSON number to an option index.
func AsIndex(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// IndexSet returns the sorted distinct indices of a decoded JSON array. Non-arrays yield an empty set.
func IndexSet(v any) []int {
	items, ok := v.([]any)
	if !ok {
		return []int{}
	}
	seen := make(map[int]struct{}, len(items))
	out := make([]int, 0, len(items))
	for _, item := range items {
		idx, ok := AsIndex(item)
		if !ok {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// TextList returns a decoded value as a list of strings; a scalar becomes a one-element list.
func TextList(v any) []string {
	if items, ok := v.([]any); ok {
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = Text(item)
		}
		return out
	}
	return []string{Text(v)}
}

// Text renders a decoded JSON scalar the way it would be typed.
func Text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return "null"
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	case float64:
		return t == 1
	}
	return false
}
