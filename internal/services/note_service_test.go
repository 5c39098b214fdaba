package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveNoteTitle(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"first line", "Shopping list\nmilk\neggs", "Shopping list"},
		{"skips leading blank lines", "\n\n  \nMeeting notes", "Meeting notes"},
		{"trims whitespace", "  Plans for tomorrow  \nmore", "Plans for tomorrow"},
		{"empty content", "", "Untitled"},
		{"only whitespace", " \n\t\n ", "Untitled"},
		{"single line", "Just one line", "Just one line"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, deriveNoteTitle(tc.content))
		})
	}
}

func TestDeriveNoteTitle_TruncatesLongLines(t *testing.T) {
	long := strings.Repeat("a", 200)
	title := deriveNoteTitle(long)
	require.Len(t, []rune(title), noteTitleMaxLength)
	require.True(t, strings.HasPrefix(long, title))
}
