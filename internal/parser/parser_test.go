package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterMatch(t *testing.T) {
	r := NewRouter(CommandParse, CommandEval)

	cmd, payload, ok := r.Match("@parse ```add 1 2```")
	require.True(t, ok)
	assert.Equal(t, CommandParse, cmd)
	assert.Equal(t, " ```add 1 2```", payload)

	cmd, payload, ok = r.Match("@eval`x`")
	require.True(t, ok)
	assert.Equal(t, CommandEval, cmd)
	assert.Equal(t, "`x`", payload)
}

func TestRouterIgnoresUnknownMessages(t *testing.T) {
	r := NewRouter(CommandParse, CommandEval)
	for _, text := range []string{"", "hello", " @parse x", "@PARSE x", "|compile rust\nfn main(){}"} {
		_, _, ok := r.Match(text)
		assert.False(t, ok, "text %q", text)
	}
}

func TestVariantCommands(t *testing.T) {
	cmds, err := VariantCompiler.Commands()
	require.NoError(t, err)
	assert.Equal(t, []Command{CommandCompile}, cmds)

	cmds, err = VariantParser.Commands()
	require.NoError(t, err)
	assert.Equal(t, []Command{CommandParse, CommandEval}, cmds)

	_, err = Variant("python").Commands()
	assert.Error(t, err)
}

func TestExtractCodeMissing(t *testing.T) {
	r := NewRouter(CommandParse)
	cmd, payload, ok := r.Match("@parse")
	require.True(t, ok)

	_, err := ExtractCode(payload, cmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCodeBlock))
	assert.Equal(t, "No code block was given to @parse", err.Error())
}

func TestExtractCodeWhitespaceIsNotMissing(t *testing.T) {
	code, err := ExtractCode(" \n ", CommandParse)
	require.NoError(t, err)
	assert.Equal(t, "", code)
}

func TestStripFence(t *testing.T) {
	cases := map[string]string{
		"```add 1 2```":         "add 1 2",
		"  `add 1 2`  ":         "add 1 2",
		"add 1 2":               "add 1 2",
		"```open only":          "```open only",
		"```rust\nfn x() {}```": "rust\nfn x() {}",
	}
	for in, want := range cases {
		got := StripFence(in)
		assert.Equal(t, want, got, "input %q", in)
		assert.Equal(t, StripFence(want), StripFence(got), "idempotence for %q", in)
	}
}

func TestExtractCodeStripsFence(t *testing.T) {
	code, err := ExtractCode(" ```add 1 2```", CommandParse)
	require.NoError(t, err)
	assert.Equal(t, "add 1 2", code)
}

func TestSplitLanguage(t *testing.T) {
	block := SplitLanguage(StripFence(" java\npublic class Main{}"))
	assert.Equal(t, LangJava, block.Lang)
	assert.Equal(t, "public class Main{}", block.Body)

	block = SplitLanguage("python\nprint(1)")
	assert.Equal(t, LangNone, block.Lang)
	assert.Equal(t, "print(1)", block.Body)

	block = SplitLanguage("rust  \r\nfn main() {}\n")
	assert.Equal(t, LangRust, block.Lang)
	assert.Equal(t, "fn main() {}", block.Body)

	block = SplitLanguage("Rust\nfn main() {}")
	assert.Equal(t, LangNone, block.Lang)

	block = SplitLanguage("snow")
	assert.Equal(t, LangSnow, block.Lang)
	assert.Empty(t, block.Body)
}

func TestLangNames(t *testing.T) {
	assert.Equal(t, "none", LangNone.String())
	assert.Equal(t, "Java", LangJava.DisplayName())
	assert.Equal(t, "Snow", LangSnow.DisplayName())
}
