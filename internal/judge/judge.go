package judge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Evaluator rule set. Mirrors classic quiz-show judging: phrasing does not
// matter, small spelling slips are forgiven, and the correct answer is
// never echoed back to the player.
const systemPrompt = `You are a Jeopardy game judge. Evaluate answers based on what you know about Jeopardy rules. We SHOULD NOT care about the phrasing of the answer (ie. answers do not need to be in form of a question).
Spelling or capitalization shouldn't matter if the answer is close enough to being correct (unless the category requires it).
Only provide feedback on incorrect answers.
NEVER DISCLOSE THE CORRECT ANSWER IN THE FEEDBACK.
Respond with a single JSON object of the form {"correct": <bool>, "feedback": <string>} and nothing else.`

var (
	// ErrUnavailable covers transport failures, timeouts, and non-2xx
	// responses from the evaluator backend.
	ErrUnavailable = errors.New("judge unavailable")
	// ErrMalformedOutput means the evaluator responded but the payload did
	// not satisfy the structured output contract.
	ErrMalformedOutput = errors.New("judge returned malformed output")
)

// Context fully parameterizes one evaluation. It is never persisted.
type Context struct {
	Category      string
	Clue          string
	Comments      string
	Notes         string
	CorrectAnswer string
	UserAnswer    string
}

// Judgement is the structured verdict. Feedback is populated only for
// incorrect answers and never contains the correct answer.
type Judgement struct {
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback"`
}

// Judge evaluates a user's free-text answer against the stored one.
// Implementations hold a single long-lived client and are safe for
// concurrent use; all per-call state lives in Context.
type Judge interface {
	Evaluate(ctx context.Context, jc Context) (Judgement, error)
}

// contextLines renders the ordered evaluation layers. Notes ride along only
// when the clue carries comments, matching how the dataset flags clues that
// need extra context.
func contextLines(jc Context) []string {
	lines := []string{
		"The category is: " + jc.Category,
		"The clue is: " + jc.Clue,
		"The correct answer is: " + jc.CorrectAnswer,
		"The user answered: " + jc.UserAnswer,
	}
	if jc.Comments != "" && jc.Notes != "" {
		lines = append(lines, "Additional context: "+jc.Notes)
	}
	return lines
}

// parseJudgement enforces the output contract: a JSON object with a boolean
// "correct". Anything else is ErrMalformedOutput.
func parseJudgement(raw string) (Judgement, error) {
	trimmed := stripFences(raw)
	var out struct {
		Correct  *bool  `json:"correct"`
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return Judgement{}, ErrMalformedOutput
	}
	if out.Correct == nil {
		return Judgement{}, ErrMalformedOutput
	}
	return Judgement{Correct: *out.Correct, Feedback: out.Feedback}, nil
}

// stripFences removes a markdown code fence some models insist on wrapping
// JSON in.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// finalize enforces the feedback invariants regardless of what the model
// produced: no feedback on correct answers, and the correct answer never
// leaks through feedback text.
func finalize(j Judgement, jc Context) Judgement {
	if j.Correct {
		j.Feedback = ""
		return j
	}
	answer := strings.TrimSpace(jc.CorrectAnswer)
	if answer != "" && strings.Contains(strings.ToLower(j.Feedback), strings.ToLower(answer)) {
		j.Feedback = "Not quite. Think about the clue again and try a different answer."
	}
	return j
}
