package report

import (
	"fmt"
	"strings"

	"discord-code-runner/internal/compiler"
	"discord-code-runner/internal/parser"
)

// UnsupportedLanguage is the compile reply for an unknown language tag.
const UnsupportedLanguage = "not a supported language"

// Format wraps text in ``` when it spans more than one line, else in `.
// Backticks inside text are not escaped.
func Format(text string) string {
	fence := "`"
	if lineCount(text) > 1 {
		fence = "```"
	}
	return fence + text + fence
}

// FormatLabeled wraps text in a ``` block tagged with label.
func FormatLabeled(label, text string) string {
	return "```" + label + "\n" + text + "\n```"
}

// Parsed renders each top-level item on its own line.
func Parsed[T fmt.Stringer](items []T) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(it.String())
		b.WriteByte('\n')
	}
	return Format(b.String())
}

func ParseFailed(code string, why error) string {
	return Format(fmt.Sprintf("Error parsing '%s' %v", code, why))
}

func Eval(code string) string {
	return Format("Not working at the moment as you can see\n[EVAL]: " + code)
}

// Compiled renders a compile run as a block labeled with the language tag.
// Stage failures are appended as a diagnostic line.
func Compiled(res compiler.Result) string {
	text := truncateLines(res.Output(), 60)
	if res.Err != nil {
		text += "\n[" + res.Lang.DisplayName() + " error] " + res.Err.Error()
	}
	return FormatLabeled(res.Lang.String(), text)
}

// Rejected renders a compile request refused before running, e.g. an
// oversize source.
func Rejected(lang parser.Lang, why error) string {
	return FormatLabeled(lang.String(), "rejected: "+why.Error())
}

func Unsupported() string {
	return FormatLabeled(parser.LangNone.String(), UnsupportedLanguage)
}

func Denied() string {
	return "⛔ not allowed to use this bot"
}

// lineCount counts lines the way a line iterator does: a trailing newline
// does not start another line.
func lineCount(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func truncateLines(s string, max int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return s
	}
	return strings.Join(lines[:max], "\n") + "\n... (truncated)"
}
