package syntax

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownGrammar(t *testing.T) {
	_, err := New("snow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rust")
}

func TestParseRustItems(t *testing.T) {
	p, err := New("rust")
	require.NoError(t, err)

	items, err := p.Parse(context.Background(), "fn main() {}\nstruct Point { x: i32 }")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "function_item", items[0].Kind)
	assert.True(t, strings.HasPrefix(items[0].String(), "(function_item"))
	assert.Equal(t, "struct_item", items[1].Kind)
}

func TestParseGoItems(t *testing.T) {
	p, err := New("Go")
	require.NoError(t, err)
	assert.Equal(t, "go", p.Language())

	items, err := p.Parse(context.Background(), "package main\n\nfunc add(a, b int) int { return a + b }\n")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "package_clause", items[0].Kind)
	assert.Equal(t, "function_declaration", items[1].Kind)
}

func TestParseError(t *testing.T) {
	p, err := New("rust")
	require.NoError(t, err)

	_, err = p.Parse(context.Background(), "fn main( {")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Row)
}

func TestLanguages(t *testing.T) {
	assert.Equal(t, []string{"go", "javascript", "python", "rust"}, Languages())
}
