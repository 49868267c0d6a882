package questionnaire

import (
	"fmt"
	"slices"

	"github.com/felixgeelhaar/truematch/internal/platform"
)

// Engine tracks progress through a questionnaire
type Engine struct {
	questionnaire Questionnaire
	selected      map[string]string
	current       int
}

// NewEngine creates an engine positioned on the first question
func NewEngine(q Questionnaire) (*Engine, error) {
	if err := Validate(q); err != nil {
		return nil, err
	}
	return &Engine{
		questionnaire: q,
		selected:      make(map[string]string),
	}, nil
}

// Validate checks that question ids are unique and every question has
// options to choose from
func Validate(q Questionnaire) error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("questionnaire has no questions")
	}
	seen := make(map[string]bool, len(q.Questions))
	for i, question := range q.Questions {
		if question.ID == "" {
			return fmt.Errorf("question %d has no id", i+1)
		}
		if seen[question.ID] {
			return fmt.Errorf("duplicate question id %q", question.ID)
		}
		seen[question.ID] = true
		if len(question.Options) == 0 {
			return fmt.Errorf("question %q has no options", question.ID)
		}
	}
	return nil
}

// Questions returns the questions in order
func (e *Engine) Questions() []Question {
	return e.questionnaire.Questions
}

// CurrentQuestion returns the question the user is on
func (e *Engine) CurrentQuestion() (*Question, error) {
	if e.IsComplete() {
		return nil, fmt.Errorf("questionnaire is complete")
	}
	return &e.questionnaire.Questions[e.current], nil
}

// Answer records option for the current question and advances
func (e *Engine) Answer(option string) (*Question, error) {
	q, err := e.CurrentQuestion()
	if err != nil {
		return nil, err
	}
	if err := e.Select(q.ID, option); err != nil {
		return nil, err
	}
	e.current++
	if e.IsComplete() {
		return nil, nil
	}
	return &e.questionnaire.Questions[e.current], nil
}

// Back moves to the previous question, keeping its answer
func (e *Engine) Back() {
	if e.current > 0 {
		e.current--
	}
}

// Select records option for the question with id without moving
func (e *Engine) Select(id, option string) error {
	q := e.find(id)
	if q == nil {
		return fmt.Errorf("unknown question %q", id)
	}
	if !slices.Contains(q.Options, option) {
		return fmt.Errorf("%q is not an option for question %q", option, id)
	}
	e.selected[id] = option
	return nil
}

// Apply records every answer in sheet
func (e *Engine) Apply(sheet AnswerSheet) error {
	for id, option := range sheet.Answers {
		if err := e.Select(id, option); err != nil {
			return err
		}
	}
	return nil
}

// Progress returns the fraction of questions answered
func (e *Engine) Progress() float64 {
	return float64(len(e.selected)) / float64(len(e.questionnaire.Questions))
}

// IsComplete reports whether the user has moved past the last question
func (e *Engine) IsComplete() bool {
	return e.current >= len(e.questionnaire.Questions)
}

// Answered returns the number of answered questions
func (e *Engine) Answered() int {
	return len(e.selected)
}

// Submission builds the request body for the analysis endpoint. Unanswered
// questions are left out.
func (e *Engine) Submission() platform.Submission {
	answers := make([]platform.Answer, 0, len(e.questionnaire.Questions))
	for _, q := range e.questionnaire.Questions {
		answers = append(answers, platform.Answer{
			QuestionID:     q.ID,
			Section:        q.Section,
			Question:       q.Question,
			SelectedAnswer: e.selected[q.ID],
		})
	}
	return platform.NewSubmission(answers)
}

func (e *Engine) find(id string) *Question {
	for i := range e.questionnaire.Questions {
		if e.questionnaire.Questions[i].ID == id {
			return &e.questionnaire.Questions[i]
		}
	}
	return nil
}
