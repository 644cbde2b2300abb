package classifier

import (
	"errors"
	"strings"
)

var ErrNoJSONObject = errors.New("classifier: no JSON object in response")

// ExtractJSONObject returns the first balanced {...} substring of s. Braces
// inside JSON strings are ignored, so prose or markdown fences around the
// object do not matter.
func ExtractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end := matchObject(s, start); end > start {
			return s[start : end+1], nil
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

// matchObject returns the index of the brace closing the object opened at
// s[start], or -1 when the object is never closed.
func matchObject(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
