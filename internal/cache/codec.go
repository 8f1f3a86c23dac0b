package cache

import (
	"encoding/json"
	"strings"
)

// encode stores strings verbatim and everything else as JSON, so string
// caches hold exactly what callers wrote.
func encode[T any](value T) (string, error) {
	if s, ok := any(value).(string); ok {
		return s, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode[T any](raw string) (T, error) {
	var value T
	if p, ok := any(&value).(*string); ok {
		*p = raw
		return value, nil
	}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// escapeGlob quotes the characters Redis MATCH patterns treat specially.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
