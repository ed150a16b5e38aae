package grading

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

func question(kind domain.Kind, text, answer string) domain.Question {
	return domain.Question{ID: "q", Kind: kind, Text: text, Answer: domain.StoredAnswer(answer)}
}

func TestGradeSingleChoice(t *testing.T) {
	q := question(domain.KindSingleChoice, "Pick one", "1")
	for idx := 0; idx < 4; idx++ {
		res := Grade(q, json.RawMessage(strconv.Itoa(idx)))
		require.NoError(t, res.Err)
		require.Equal(t, idx == 1, res.Correct, "index %d", idx)
		if res.Correct {
			require.Equal(t, 1.0, res.Multiplier)
		} else {
			require.Zero(t, res.Multiplier)
		}
	}
}

func TestGradeSingleChoiceMalformed(t *testing.T) {
	q := question(domain.KindSingleChoice, "Pick one", "1")
	res := Grade(q, json.RawMessage(`"1"`))
	require.ErrorIs(t, res.Err, domain.ErrMalformedAnswer)
	require.False(t, res.Correct)
	require.Zero(t, res.Multiplier)
}

func TestGradeMultipleChoice(t *testing.T) {
	q := question(domain.KindMultipleChoice, "Pick all", "[0, 2]")
	cases := []struct {
		name    string
		answer  string
		correct bool
	}{
		{"exact", `[0,2]`, true},
		{"reordered", `[2,0]`, true},
		{"duplicates ignored", `[2,0,2]`, true},
		{"subset", `[0]`, false},
		{"superset", `[0,1,2]`, false},
		{"empty", `[]`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Grade(q, json.RawMessage(tc.answer))
			require.NoError(t, res.Err)
			require.Equal(t, tc.correct, res.Correct)
			require.False(t, res.Partial())
		})
	}

	res := Grade(q, json.RawMessage(`0`))
	require.ErrorIs(t, res.Err, domain.ErrMalformedAnswer)
}

func TestGradeTrueFalseEncodings(t *testing.T) {
	cases := []struct {
		name    string
		stored  string
		answer  string
		correct bool
	}{
		{"bool true, first option", `true`, `0`, true},
		{"bool true, second option", `true`, `1`, false},
		{"string true", `"true"`, `0`, true},
		{"string false", `"false"`, `1`, true},
		{"numeric one is true", `1`, `0`, true},
		{"numeric zero is false", `0`, `1`, true},
		{"boolean submission", `false`, `false`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Grade(question(domain.KindTrueFalse, "T/F", tc.stored), json.RawMessage(tc.answer))
			require.NoError(t, res.Err)
			require.Equal(t, tc.correct, res.Correct)
		})
	}
}

func TestGradeShortAnswer(t *testing.T) {
	q := question(domain.KindShortAnswer, "Name it", `["Pitot tube", "pitot"]`)
	require.True(t, Grade(q, json.RawMessage(`"  PITOT TUBE "`)).Correct)
	require.True(t, Grade(q, json.RawMessage(`"pitot"`)).Correct)
	require.False(t, Grade(q, json.RawMessage(`"static port"`)).Correct)

	single := question(domain.KindShortAnswer, "Number", `"42"`)
	require.True(t, Grade(single, json.RawMessage(`42`)).Correct)
}

func TestGradeSingleBlankAcceptsSynonyms(t *testing.T) {
	q := question(domain.KindFillBlank, "The [blank] controls pitch.", `["elevator", "stabilator"]`)
	require.True(t, Grade(q, json.RawMessage(`"Stabilator"`)).Correct)
	require.True(t, Grade(q, json.RawMessage(`["elevator"]`)).Correct)
	res := Grade(q, json.RawMessage(`"aileron"`))
	require.False(t, res.Correct)
	require.Zero(t, res.Multiplier)
}

func TestGradeMultiBlankPartialCredit(t *testing.T) {
	q := question(domain.KindFillBlank, "[blank], [blank] and [blank]", `["lift", "drag", "thrust"]`)

	res := Grade(q, json.RawMessage(`["Lift", "drag", "weight"]`))
	require.NoError(t, res.Err)
	require.False(t, res.Correct)
	require.InDelta(t, 2.0/3.0, res.Multiplier, 1e-9)
	require.True(t, res.Partial())

	res = Grade(q, json.RawMessage(`[" lift", "DRAG", "thrust "]`))
	require.True(t, res.Correct)
	require.Equal(t, 1.0, res.Multiplier)
}

func TestGradeMultiBlankShapeMismatch(t *testing.T) {
	q := question(domain.KindFillBlank, "[blank] and [blank]", `["lift", "drag"]`)
	for _, answer := range []string{`"lift"`, `["lift"]`, `["lift","drag","thrust"]`} {
		res := Grade(q, json.RawMessage(answer))
		require.ErrorIs(t, res.Err, domain.ErrMalformedAnswer, answer)
		require.False(t, res.Correct)
		require.Zero(t, res.Multiplier)
	}
}

func TestGradeUndecodableStoredAnswer(t *testing.T) {
	// Stored text that is not JSON is compared as-is.
	q := question(domain.KindShortAnswer, "Name it", `altimeter`)
	require.True(t, Grade(q, json.RawMessage(`"Altimeter"`)).Correct)

	broken := question(domain.KindSingleChoice, "Pick", `{oops`)
	res := Grade(broken, json.RawMessage(`0`))
	require.NoError(t, res.Err)
	require.False(t, res.Correct)
}

func TestGradeEmptySubmission(t *testing.T) {
	res := Grade(question(domain.KindSingleChoice, "Pick", "0"), nil)
	require.ErrorIs(t, res.Err, domain.ErrMalformedAnswer)
}

func TestGradeStringEncodedKeys(t *testing.T) {
	// Clients echo the stored text back as a JSON string when they supply the questions.
	var qs []domain.Question
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id":"s","question_type":"single","question_text":"Pick","correct_answer":"1"},
		{"id":"m","question_type":"multiple","question_text":"Pick all","correct_answer":"[0,2]"},
		{"id":"f","question_type":"fillblank","question_text":"[blank] and [blank]","correct_answer":"[\"red\",\"blue\"]"},
		{"id":"t","question_type":"truefalse","question_text":"T/F","correct_answer":"false"},
		{"id":"w","question_type":"short","question_text":"Word","correct_answer":"pitot"}
	]`), &qs))

	require.Equal(t, domain.SingleChoiceKey{Index: 1}, qs[0].Key())
	require.True(t, Grade(qs[0], json.RawMessage(`1`)).Correct)

	require.Equal(t, domain.MultipleChoiceKey{Indices: []int{0, 2}}, qs[1].Key())
	require.True(t, Grade(qs[1], json.RawMessage(`[2,0]`)).Correct)

	res := Grade(qs[2], json.RawMessage(`["Red","blue"]`))
	require.NoError(t, res.Err)
	require.True(t, res.Correct)

	require.True(t, Grade(qs[3], json.RawMessage(`1`)).Correct)

	// Plain words are not JSON and stay as typed.
	require.Equal(t, domain.ShortAnswerKey{Accepted: []string{"pitot"}}, qs[4].Key())
}
