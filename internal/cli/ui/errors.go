package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel is the severity of a formatted message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures FormatError
type ErrorOptions struct {
	Level   ErrorLevel
	Context string
	Problem string
	// Details are indented lines under the problem, e.g. one per failing field
	Details      []string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError renders an error message with optional details, suggestions and
// help commands.
//
// Example output:
//
//	❌ UNKNOWN CLASS: Usr
//
//	   Did you mean: User?
//
//	   → List classes: docmodel schema
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var header, body *color.Color
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		header = newColor(opts.NoColor, color.FgYellow, color.Bold)
		body = newColor(opts.NoColor, color.FgYellow)
		symbol = "⚠️"
	case ErrorLevelInfo:
		header = newColor(opts.NoColor, color.FgCyan, color.Bold)
		body = newColor(opts.NoColor, color.FgCyan)
		symbol = "ℹ️"
	default:
		header = newColor(opts.NoColor, color.FgRed, color.Bold)
		body = newColor(opts.NoColor, color.FgRed)
		symbol = "❌"
	}

	if opts.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	for _, d := range opts.Details {
		body.Fprintf(&b, "   %s\n", d)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		newColor(opts.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := newColor(opts.NoColor, color.FgCyan)
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted error message
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess renders a success line
func FormatSuccess(message string, noColor bool) string {
	return newColor(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}

// WriteSuccess writes a success line
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// UnknownClassError formats a lookup failure for a class name, suggesting the
// closest registered names
func UnknownClassError(name string, known []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:     "unknown class",
		Problem:     name,
		Suggestions: FindSimilar(name, known, nil),
		HelpCommands: []string{
			"List classes: docmodel schema",
		},
		NoColor: noColor,
	})
}

// ValidationError formats per-field validation messages
func ValidationError(class string, fields map[string][]string, order []string, noColor bool) string {
	var details []string
	for _, f := range order {
		for _, msg := range fields[f] {
			details = append(details, fmt.Sprintf("%s: %s", f, msg))
		}
	}
	return FormatError(ErrorOptions{
		Context: "validation failed",
		Problem: class,
		Details: details,
		HelpCommands: []string{
			fmt.Sprintf("Show fields: docmodel schema %s", class),
		},
		NoColor: noColor,
	})
}
