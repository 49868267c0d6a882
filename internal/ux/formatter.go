// Package ux renders command results as text, JSON or YAML.
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formatter writes one command result.
type Formatter interface {
	Format(data any) error
}

// TextRenderer is implemented by results that know how to draw themselves
// for a terminal. The JSON and YAML formatters ignore it.
type TextRenderer interface {
	RenderText() string
}

// FormatterOptions contains configuration for formatters
type FormatterOptions struct {
	// Writer defaults to os.Stdout
	Writer io.Writer
	// Compact drops indentation from JSON and YAML
	Compact bool
}

// NewFormatter creates a formatter for format. An empty format means text.
func NewFormatter(format string, opts *FormatterOptions) (Formatter, error) {
	o := FormatterOptions{Writer: os.Stdout}
	if opts != nil {
		o = *opts
		if o.Writer == nil {
			o.Writer = os.Stdout
		}
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return &JSONFormatter{opts: o}, nil
	case FormatYAML:
		return &YAMLFormatter{opts: o}, nil
	case FormatText, "":
		return &TextFormatter{opts: o}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s (supported: text, json, yaml)", format)
	}
}

// ValidFormat reports whether format is accepted by NewFormatter
func ValidFormat(format string) bool {
	_, err := NewFormatter(format, &FormatterOptions{Writer: io.Discard})
	return err == nil
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	opts FormatterOptions
}

// Format writes data as JSON
func (f *JSONFormatter) Format(data any) error {
	enc := json.NewEncoder(f.opts.Writer)
	if !f.opts.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	opts FormatterOptions
}

// Format writes data as YAML
func (f *YAMLFormatter) Format(data any) error {
	enc := yaml.NewEncoder(f.opts.Writer)
	if !f.opts.Compact {
		enc.SetIndent(2)
	}
	if err := enc.Encode(data); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// TextFormatter writes human-readable text
type TextFormatter struct {
	opts FormatterOptions
}

// Format writes data as text. data must be a string, a TextRenderer or a
// fmt.Stringer.
func (f *TextFormatter) Format(data any) error {
	var text string
	switch v := data.(type) {
	case string:
		text = v
	case TextRenderer:
		text = v.RenderText()
	case fmt.Stringer:
		text = v.String()
	default:
		return fmt.Errorf("text output is not available for %T; use --format json or yaml", data)
	}

	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(f.opts.Writer, text)
	return err
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*YAMLFormatter)(nil)
	_ Formatter = (*TextFormatter)(nil)
)
