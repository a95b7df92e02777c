package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWhitespaceCount(t *testing.T) {
	w := Whitespace{}
	require.Equal(t, 0, w.Count(""))
	require.Equal(t, 2, w.Count("hello world"))
	// "Hi!" -> "Hi" + "!" = 2 tokens
	require.Equal(t, 2, w.Count("Hi!"))
}

func TestWhitespaceDeterministic(t *testing.T) {
	w := Whitespace{}
	text := "The quick brown fox jumps over the lazy dog."
	a := w.Count(text)
	b := w.Count(text)
	require.Equal(t, a, b)
}
