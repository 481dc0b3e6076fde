package command

import (
	"strings"
	"unicode"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
)

// Tokenize splits a line of input into words.
//
// Whitespace separates words. A single or double quote starts a quoted
// word that runs, verbatim, to the matching quote or the end of input.
// Outside quotes only letters and digits are kept.
func Tokenize(input string) []string {
	var (
		out    []string
		buf    strings.Builder
		quoted rune
	)
	for _, c := range input {
		if quoted != 0 {
			if c == quoted {
				out = append(out, buf.String())
				buf.Reset()
				quoted = 0
				continue
			}
			buf.WriteRune(c)
			continue
		}
		switch {
		case unicode.IsSpace(c):
			if buf.Len() > 0 {
				out = append(out, buf.String())
				buf.Reset()
			}
		case c == '\'' || c == '"':
			quoted = c
		case unicode.IsLetter(c) || unicode.IsDigit(c):
			buf.WriteRune(c)
		}
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}

// Parse turns a line of input from a character into a Command.
//
// The first word selects the verb through the default registry; direction
// shortcuts expand to GO. An unrecognised first word becomes the verb
// verbatim, uppercased, and is rejected at dispatch.
//
// Postcondition: ok is false only when the input holds no words.
func Parse(from entity.Identifier, line string) (cmd Command, ok bool) {
	words := Tokenize(line)
	if len(words) == 0 {
		return Command{}, false
	}
	cmd = Command{From: from, Args: words[1:]}
	def, found := DefaultRegistry().Resolve(words[0])
	if !found {
		cmd.Verb = Verb(strings.ToUpper(words[0]))
		return cmd, true
	}
	cmd.Verb = def.Verb
	if len(def.Implied) > 0 {
		cmd.Args = append(append([]string(nil), def.Implied...), cmd.Args...)
	}
	if len(cmd.Args) == 0 {
		cmd.Args = nil
	}
	return cmd, true
}
