package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	tmerrors "github.com/felixgeelhaar/truematch/internal/errors"
	"github.com/felixgeelhaar/truematch/internal/questionnaire"
	"github.com/felixgeelhaar/truematch/internal/tui"
)

var questionnaireCmd = &cobra.Command{
	Use:     "questionnaire",
	Aliases: []string{"q"},
	Short:   "Answer the compatibility questionnaire",
}

var questionnaireSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit your answers for analysis",
	Long: `Answer the questions in --questions and submit them for a
compatibility analysis. Answers are read from --answers or asked for
interactively. Unanswered questions are left out of the submission.

A questions file looks like:

  title: Compatibility
  questions:
    - id: q1
      section: Lifestyle
      question: How do you spend a free evening?
      options: [Out with friends, A quiet night in]

An answers file maps question ids to the chosen option:

  answers:
    q1: A quiet night in

Requires a signed-in session.`,
	RunE: withRuntime(runQuestionnaireSubmit),
}

func init() {
	questionnaireSubmitCmd.Flags().String("questions", "", "questions file (YAML or JSON)")
	questionnaireSubmitCmd.Flags().String("answers", "", "answers file (YAML or JSON); prompts when omitted")
	_ = questionnaireSubmitCmd.MarkFlagRequired("questions")

	questionnaireCmd.AddCommand(questionnaireSubmitCmd)
	rootCmd.AddCommand(questionnaireCmd)
}

func runQuestionnaireSubmit(ctx context.Context, rt *runtime, args []string) error {
	q, err := questionnaire.LoadQuestions(rt.flagString("questions"))
	if err != nil {
		return err
	}
	engine, err := questionnaire.NewEngine(q)
	if err != nil {
		return err
	}

	session, err := rt.requireSession(ctx)
	if err != nil {
		return err
	}

	if err := collectAnswers(rt, engine); err != nil {
		return err
	}
	if engine.Answered() == 0 {
		return tmerrors.New(tmerrors.ErrCodeConfigInvalid, "no questions were answered").
			WithSuggestion("Answer at least one question before submitting")
	}

	rt.logger.Info("submitting questionnaire", "answered", engine.Answered(), "total", len(engine.Questions()))
	result, err := rt.client.AskAI(ctx, engine.Submission())
	if err != nil {
		return err
	}

	if !result.Empty() {
		if err := rt.results.Save(session.User.ID(), result); err != nil {
			rt.logger.Warn("failed to cache result", "error", err)
		}
	}

	return rt.render(resultOutput{Source: "server", Result: result, styles: rt.styles})
}

func collectAnswers(rt *runtime, engine *questionnaire.Engine) error {
	if path := rt.flagString("answers"); path != "" {
		sheet, err := questionnaire.LoadAnswers(path)
		if err != nil {
			return err
		}
		if err := engine.Apply(sheet); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	}

	if !tui.ShouldPrompt() {
		return missingInputError("answers")
	}
	return tui.PromptAnswers(engine)
}
