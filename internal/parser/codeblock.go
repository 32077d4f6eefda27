package parser

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrMissingCodeBlock is matched by every MissingCodeBlockError.
var ErrMissingCodeBlock = errors.New("missing code block")

// MissingCodeBlockError is returned when a command carries no payload.
type MissingCodeBlockError struct {
	Command Command
}

func (e *MissingCodeBlockError) Error() string {
	return "No code block was given to " + e.Command.Prefix()
}

func (e *MissingCodeBlockError) Is(target error) bool {
	return target == ErrMissingCodeBlock
}

// Lang is the language tag that opens a compile payload.
type Lang int

const (
	LangNone Lang = iota
	LangRust
	LangJava
	LangSnow
)

// ParseLang maps a tag line to a Lang. Matching is case-sensitive.
func ParseLang(tag string) Lang {
	switch tag {
	case "rust":
		return LangRust
	case "java":
		return LangJava
	case "snow":
		return LangSnow
	}
	return LangNone
}

// String returns the lowercase tag, also used as the reply fence label.
func (l Lang) String() string {
	switch l {
	case LangRust:
		return "rust"
	case LangJava:
		return "java"
	case LangSnow:
		return "snow"
	}
	return "none"
}

var titleCaser = cases.Title(language.English)

// DisplayName returns the capitalized language name, e.g. "Rust".
func (l Lang) DisplayName() string {
	return titleCaser.String(l.String())
}

// CodeBlock is a compile payload split into its language tag and source.
type CodeBlock struct {
	Lang Lang
	Body string
}

// ExtractCode returns the fence-stripped code carried by payload. Only an
// empty payload is missing; whitespace after the prefix strips to "".
func ExtractCode(payload string, cmd Command) (string, error) {
	if payload == "" {
		return "", &MissingCodeBlockError{Command: cmd}
	}
	return StripFence(payload), nil
}

// StripFence trims text and removes a surrounding ``` or ` pair. Text
// without a complete pair is returned trimmed but otherwise unchanged.
func StripFence(text string) string {
	text = strings.TrimSpace(text)
	for _, fence := range []string{"```", "`"} {
		if inner, ok := strings.CutPrefix(text, fence); ok {
			if inner, ok := strings.CutSuffix(inner, fence); ok {
				return inner
			}
		}
	}
	return text
}

// SplitLanguage reads the first line of code as the language tag and the
// rest, trimmed, as the body. Trailing blanks on the tag line are ignored.
func SplitLanguage(code string) CodeBlock {
	tag, body, _ := strings.Cut(code, "\n")
	return CodeBlock{
		Lang: ParseLang(strings.TrimRight(tag, " \t\r")),
		Body: strings.TrimSpace(body),
	}
}
