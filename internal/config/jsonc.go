package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// normalizeJSONC blanks out comments and trailing commas so the result is
// plain JSON. Every replaced byte becomes a space and newlines are kept, so
// decoder offsets still point at the right line and column of the source.
func normalizeJSONC(src string) (string, error) {
	out := []byte(src)

	const (
		code = iota
		str
		strEscape
		lineComment
		blockComment
	)
	state := code
	lastComma := -1

	for i := 0; i < len(out); i++ {
		ch := out[i]
		switch state {
		case str:
			switch ch {
			case '\\':
				state = strEscape
			case '"':
				state = code
			}
		case strEscape:
			state = str
		case lineComment:
			if ch == '\n' || ch == '\r' {
				state = code
				continue
			}
			out[i] = ' '
		case blockComment:
			if ch == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				state = code
				continue
			}
			if ch != '\n' && ch != '\r' && ch != '\t' {
				out[i] = ' '
			}
		default:
			switch {
			case ch == '/' && i+1 < len(out) && out[i+1] == '/':
				out[i], out[i+1] = ' ', ' '
				i++
				state = lineComment
			case ch == '/' && i+1 < len(out) && out[i+1] == '*':
				out[i], out[i+1] = ' ', ' '
				i++
				state = blockComment
			case ch == ',':
				lastComma = i
			case ch == '}' || ch == ']':
				if lastComma >= 0 {
					out[lastComma] = ' '
				}
				lastComma = -1
			case ch == '"':
				state = str
				lastComma = -1
			case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			default:
				lastComma = -1
			}
		}
	}

	if state == blockComment {
		return "", errors.New("unterminated block comment in JSONC")
	}
	return string(out), nil
}

// ensureSingleJSONValue fails when anything but whitespace follows the
// decoded document.
func ensureSingleJSONValue(decoder *json.Decoder) error {
	if _, err := decoder.Token(); errors.Is(err, io.EOF) {
		return nil
	}
	return errors.New("multiple JSON values are not allowed")
}

// wrapJSONDecodeError prefixes positional decode errors with line and column.
func wrapJSONDecodeError(content string, err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		offset    int64
	)
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// offsetToLineCol maps a decoder offset, which points just past the
// offending byte, to a 1-based line and column.
func offsetToLineCol(content string, offset int64) (int, int) {
	end := max(min(int(offset), len(content))-1, 0)
	before := content[:end]
	line := strings.Count(before, "\n") + 1
	col := end - strings.LastIndexByte(before, '\n')
	return line, col
}
