package platform

import (
	"context"
	"net/http"
	"strings"
)

// Answer is one questionnaire response as the AI endpoint expects it.
type Answer struct {
	QuestionID     string `json:"questionId" yaml:"questionId"`
	Section        string `json:"section" yaml:"section"`
	Question       string `json:"question" yaml:"question"`
	SelectedAnswer string `json:"selectedAnswer" yaml:"selectedAnswer"`
}

// Submission is the body of POST /user/askai.
type Submission struct {
	Responses []Answer `json:"responses"`
}

// NewSubmission builds a submission, dropping unanswered questions.
func NewSubmission(answers []Answer) Submission {
	out := make([]Answer, 0, len(answers))
	for _, a := range answers {
		if strings.TrimSpace(a.SelectedAnswer) == "" {
			continue
		}
		out = append(out, a)
	}
	return Submission{Responses: out}
}

// Result is the AI compatibility analysis. Its content is produced by the
// server and treated as opaque.
type Result map[string]any

// Empty reports whether the result carries no analysis.
func (r Result) Empty() bool {
	return len(r) == 0
}

// unwrapResult accepts both the bare analysis and one nested under a
// "response" property.
func unwrapResult(raw Result) Result {
	if inner, ok := raw["response"].(map[string]any); ok {
		return Result(inner)
	}
	if raw == nil {
		return Result{}
	}
	return raw
}

// AskAI submits questionnaire answers and returns the analysis.
func (c *Client) AskAI(ctx context.Context, s Submission) (Result, error) {
	var raw Result
	if err := c.call(ctx, Request{Method: http.MethodPost, Path: AskAIPath, Body: s}, &raw); err != nil {
		return nil, err
	}
	return unwrapResult(raw), nil
}

// LatestResult fetches the most recent analysis stored for the user.
func (c *Client) LatestResult(ctx context.Context) (Result, error) {
	var raw Result
	if err := c.call(ctx, Request{Method: http.MethodGet, Path: ResultPath}, &raw); err != nil {
		return nil, err
	}
	return unwrapResult(raw), nil
}
