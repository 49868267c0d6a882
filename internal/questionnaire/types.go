// Package questionnaire loads compatibility questions and walks a user
// through answering them. Question content is supplied by the caller and is
// not interpreted beyond the fields needed to build a submission.
package questionnaire

// Question is one multiple-choice question
type Question struct {
	ID       string   `json:"id" yaml:"id"`
	Section  string   `json:"section" yaml:"section"`
	Question string   `json:"question" yaml:"question"`
	Options  []string `json:"options" yaml:"options"`
}

// Questionnaire is an ordered set of questions
type Questionnaire struct {
	Title     string     `json:"title,omitempty" yaml:"title,omitempty"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// AnswerSheet maps question ids to the selected option
type AnswerSheet struct {
	Answers map[string]string `json:"answers" yaml:"answers"`
}
