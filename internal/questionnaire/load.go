package questionnaire

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/truematch/internal/errors"
)

// LoadQuestions reads a questionnaire from a YAML or JSON file
func LoadQuestions(path string) (Questionnaire, error) {
	var q Questionnaire
	if err := decodeFile(path, &q); err != nil {
		return Questionnaire{}, err
	}
	if err := Validate(q); err != nil {
		return Questionnaire{}, fmt.Errorf("%s: %w", path, err)
	}
	return q, nil
}

// LoadAnswers reads an answer sheet from a YAML or JSON file
func LoadAnswers(path string) (AnswerSheet, error) {
	var sheet AnswerSheet
	if err := decodeFile(path, &sheet); err != nil {
		return AnswerSheet{}, err
	}
	if len(sheet.Answers) == 0 {
		return AnswerSheet{}, fmt.Errorf("%s: no answers found", path)
	}
	return sheet, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFoundError(path)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, v); err != nil {
			return errors.NewFileUnmarshalError(path, "JSON", err)
		}
	default:
		if err := yaml.Unmarshal(data, v); err != nil {
			return errors.NewFileUnmarshalError(path, "YAML", err)
		}
	}
	return nil
}
