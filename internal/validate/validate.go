// Package validate turns untrusted decoded JSON values into bounded, trimmed
// strings. Values arrive as produced by encoding/json into an any: strings,
// float64, bool, nil, []any or map[string]any.
package validate

import (
	"strings"
	"unicode/utf8"

	"birthday-rsvp/internal/models"
)

// RequiredString returns the trimmed value when v is a string whose trimmed
// form is non-empty and at most maxLen characters long.
func RequiredString(v any, maxLen int) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxLen {
		return "", false
	}
	return s, true
}

// OptionalString is RequiredString for fields that may be omitted. Missing,
// null and malformed values all come back as nil; invalid input is dropped
// rather than rejected.
func OptionalString(v any, maxLen int) *string {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	s, ok := RequiredString(v, maxLen)
	if !ok {
		return nil
	}
	return &s
}

// GuestList keeps the valid guest names of v in input order, capped at
// models.MaxGuests. Anything that is not a list yields an empty list.
func GuestList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	guests := make([]string, 0, min(len(items), models.MaxGuests))
	for _, item := range items {
		if len(guests) == models.MaxGuests {
			break
		}
		if name, ok := RequiredString(item, models.MaxGuestNameLen); ok {
			guests = append(guests, name)
		}
	}
	return guests
}
