package tui

import (
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/truematch/internal/platform"
	"github.com/felixgeelhaar/truematch/internal/questionnaire"
)

// Credentials are the login form values
type Credentials struct {
	Email    string
	Password string
}

// PromptCredentials asks for email and password. A non-empty email is used
// as the default and the password is masked.
func PromptCredentials(email string) (Credentials, error) {
	c := Credentials{Email: email}

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Email").
			Value(&c.Email).
			Validate(ValidateEmail),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&c.Password).
			Validate(required("password")),
	))

	if err := form.Run(); err != nil {
		return Credentials{}, fmt.Errorf("prompt failed: %w", err)
	}
	c.Email = strings.TrimSpace(c.Email)
	return c, nil
}

// PromptRegistration asks for the account details, confirming the password.
func PromptRegistration() (platform.Registration, error) {
	var r platform.Registration
	var confirm string

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Name").
			Value(&r.Name).
			Validate(required("name")),
		huh.NewInput().
			Title("Email").
			Value(&r.Email).
			Validate(ValidateEmail),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&r.Password).
			Validate(required("password")),
		huh.NewInput().
			Title("Confirm password").
			EchoMode(huh.EchoModePassword).
			Value(&confirm).
			Validate(func(s string) error {
				if s != r.Password {
					return fmt.Errorf("passwords do not match")
				}
				return nil
			}),
	))

	if err := form.Run(); err != nil {
		return platform.Registration{}, fmt.Errorf("prompt failed: %w", err)
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	return r, nil
}

// PromptAnswers asks every question of the engine, one page per question.
// Questions already answered start with that option selected.
func PromptAnswers(e *questionnaire.Engine) error {
	questions := e.Questions()
	selected := make([]string, len(questions))
	groups := make([]*huh.Group, 0, len(questions))

	for i, q := range questions {
		field := huh.NewSelect[string]().
			Title(q.Question).
			Description(fmt.Sprintf("%s · %d of %d", q.Section, i+1, len(questions))).
			Options(huh.NewOptions(q.Options...)...).
			Value(&selected[i])
		groups = append(groups, huh.NewGroup(field))
	}

	if err := huh.NewForm(groups...).Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}

	for i, q := range questions {
		if selected[i] == "" {
			continue
		}
		if err := e.Select(q.ID, selected[i]); err != nil {
			return err
		}
	}
	return nil
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}

	return confirmed, nil
}

// ValidateEmail accepts a single RFC 5322 address
func ValidateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("enter a valid email address")
	}
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment.
// Prompts are disabled in CI, when TRUEMATCH_NO_PROMPT is set, or when stdin
// is not a terminal.
func ShouldPrompt() bool {
	for _, envVar := range []string{
		"TRUEMATCH_NO_PROMPT",
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	} {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
