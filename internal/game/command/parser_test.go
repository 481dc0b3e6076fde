package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTokenize_QuotesAndPunctuation(t *testing.T) {
	got := Tokenize(`One, TWO thrEE! 'four five' "six 'Seven"`)
	assert.Equal(t, []string{"One", "TWO", "thrEE", "four five", "six 'Seven"}, got)
}

func TestTokenize_UnterminatedQuote(t *testing.T) {
	assert.Equal(t, []string{"take", "rusty lantern"}, Tokenize(`take "rusty lantern`))
}

func TestTokenize_Empty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("   \t "))
	assert.Empty(t, Tokenize("!?,"))
}

func TestParse_Empty(t *testing.T) {
	_, ok := Parse("hero", "")
	assert.False(t, ok)
	_, ok = Parse("hero", "  ...  ")
	assert.False(t, ok)
}

func TestParse_SingleWord(t *testing.T) {
	cmd, ok := Parse("hero", "look")
	assert.True(t, ok)
	assert.Equal(t, VerbLook, cmd.Verb)
	assert.Nil(t, cmd.Args)
	assert.Equal(t, "hero", string(cmd.From))
}

func TestParse_CaseInsensitiveVerb(t *testing.T) {
	cmd, _ := Parse("hero", "TaKe lantern")
	assert.Equal(t, VerbTake, cmd.Verb)
	assert.Equal(t, []string{"lantern"}, cmd.Args)
}

func TestParse_Alias(t *testing.T) {
	cmd, _ := Parse("hero", "get 'old lantern'")
	assert.Equal(t, VerbTake, cmd.Verb)
	assert.Equal(t, []string{"old lantern"}, cmd.Args)
}

func TestParse_DirectionShortcut(t *testing.T) {
	cmd, _ := Parse("hero", "n")
	assert.Equal(t, VerbGo, cmd.Verb)
	assert.Equal(t, []string{"NORTH"}, cmd.Args)

	cmd, _ = Parse("hero", "go west")
	assert.Equal(t, VerbGo, cmd.Verb)
	assert.Equal(t, []string{"west"}, cmd.Args)
}

func TestParse_UnknownVerbKeptUppercase(t *testing.T) {
	cmd, ok := Parse("hero", "dance wildly")
	assert.True(t, ok)
	assert.Equal(t, Verb("DANCE"), cmd.Verb)
	assert.Equal(t, []string{"wildly"}, cmd.Args)
}

func TestCommand_Arg(t *testing.T) {
	cmd := Command{Args: []string{"a"}}
	assert.Equal(t, "a", cmd.Arg(0))
	assert.Equal(t, "", cmd.Arg(1))
	assert.Equal(t, "", cmd.Arg(-1))
}

func TestPropertyTokenizeUnquotedWordsAreAlphanumeric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := rapid.StringMatching(`[A-Za-z0-9 ,.!?]{0,40}`).Draw(t, "input")
		for _, w := range Tokenize(input) {
			if w == "" {
				t.Fatalf("empty word from unquoted input %q", input)
			}
			if strings.ContainsAny(w, " ,.!?") {
				t.Fatalf("word %q from %q contains separators", w, input)
			}
		}
	})
}

func TestPropertyParseNonEmptyInputHasVerb(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[a-z]{1,10}`).Draw(t, "word")
		cmd, ok := Parse("hero", word)
		if !ok || cmd.Verb == "" {
			t.Fatalf("non-empty input %q produced no verb", word)
		}
		if string(cmd.Verb) != strings.ToUpper(string(cmd.Verb)) {
			t.Fatalf("verb %q is not uppercase", cmd.Verb)
		}
	})
}
