package config

import (
	"fmt"
	"strings"
	"unicode"
)

// parseArgv splits a command string the way a POSIX shell would for simple
// words: single quotes are literal, double quotes honor backslash escapes, and
// a bare backslash escapes the next rune. A line starting with # is empty.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || input[0] == '#' {
		return nil, nil
	}

	var (
		argv   []string
		word   strings.Builder
		inWord bool
	)
	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			if inWord {
				argv = append(argv, word.String())
				word.Reset()
				inWord = false
			}
		case r == '\\':
			if i+1 >= len(runes) {
				return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
			}
			i++
			word.WriteRune(runes[i])
			inWord = true
		case r == '\'' || r == '"':
			end, err := readQuoted(runes, i, &word)
			if err != nil {
				return nil, fmt.Errorf("%w in command: %q", err, input)
			}
			i = end
			inWord = true
		default:
			word.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		argv = append(argv, word.String())
	}
	return argv, nil
}

// readQuoted copies the quoted section opening at runes[start] into word and
// returns the index of the closing quote.
func readQuoted(runes []rune, start int, word *strings.Builder) (int, error) {
	quote := runes[start]
	for i := start + 1; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == quote:
			return i, nil
		case quote == '"' && r == '\\' && i+1 < len(runes):
			i++
			word.WriteRune(runes[i])
		default:
			word.WriteRune(r)
		}
	}
	return 0, fmt.Errorf("unterminated quote")
}

func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(err)
	}
	return argv
}
