package lbx

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingField     = errors.New("missing substitution field")
	ErrUnbalancedBrace  = errors.New("single brace in format string")
	ErrEmptyField       = errors.New("positional placeholder {} has no value")
	ErrUnsupportedField = errors.New("unsupported placeholder syntax")
)

// Format substitutes {name} placeholders in pattern with values from fields.
// Doubled braces ({{ and }}) produce a literal brace. Only plain field names
// are understood; conversions, format specs, attribute and index access are
// rejected with ErrUnsupportedField.
func Format(pattern string, fields map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(pattern))

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '{':
			if i+1 < len(pattern) && pattern[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(pattern[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed '{' at offset %d", ErrUnbalancedBrace, i)
			}
			name := pattern[i+1 : i+1+end]
			value, err := lookupField(name, fields)
			if err != nil {
				return "", err
			}
			b.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(pattern) && pattern[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: unmatched '}' at offset %d", ErrUnbalancedBrace, i)
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}

func lookupField(name string, fields map[string]string) (string, error) {
	if name == "" {
		return "", ErrEmptyField
	}
	if strings.ContainsAny(name, "{!:.[]") {
		return "", fmt.Errorf("%w: {%s}", ErrUnsupportedField, name)
	}
	value, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingField, name)
	}
	return value, nil
}
