package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

func TestModerator_Censor(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	mod, err := NewModerator([]string{"idiot", "loser", "shut up"}, replacementChar, log)
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Single word",
			input:    "You are an idiot",
			expected: "You are an *****",
			words:    []string{"idiot"},
		},
		{
			name:     "Repeated word keeps spacing",
			input:    "idiot idiot",
			expected: "***** *****",
			words:    []string{"idiot", "idiot"},
		},
		{
			name:     "Leet speak with inner punctuation",
			input:    "Such an 1d.10t today",
			expected: "Such an ****** today",
			words:    []string{"idiot"},
		},
		{
			name:     "Spelled out word and a two word entry",
			input:    "L-O-S-E-R, shut up",
			expected: "*********, *******",
			words:    []string{"loser", "shutup"},
		},
		{
			name:     "Trailing punctuation is kept",
			input:    "What a loser!",
			expected: "What a *****!",
			words:    []string{"loser"},
		},
		{
			name:     "Accents around a match",
			input:    "Un été avec un idiot",
			expected: "Un été avec un *****",
			words:    []string{"idiot"},
		},
		{
			name:     "Word inside a longer word",
			input:    "A closer look at the offer",
			expected: "A closer look at the offer",
		},
		{
			name:     "Match spanning two words",
			input:    "Stupid iot devices",
			expected: "Stupid iot devices",
		},
		{
			name:     "Nothing to censor",
			input:    "Thanks for applying to the backend position",
			expected: "Thanks for applying to the backend position",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content)
			req.Equal(tt.words, words)
		})
	}
}

func TestModerator_Ignores_Noise_Entries(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given a dictionary polluted with punctuation only entries
	mod, err := NewModerator([]string{"...", ",,,", "", "jerk"}, replacementChar, log)
	req.NoError(err)

	// Then real words are still censored
	content, words := mod.Censor("Don't be a jerk...")
	req.Equal("Don't be a ****...", content)
	req.Equal([]string{"jerk"}, words)

	// And punctuation alone is left untouched
	content, words = mod.Censor("Hello ...")
	req.Equal("Hello ...", content)
	req.Nil(words)
}
