package models

import "strings"

// NormalizeKey lowercases s, trims it and collapses every internal run of
// whitespace into a single hyphen. It is idempotent and accepts any input.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

// KeyOf returns the identity of a status: its key when one is given, its name otherwise.
func KeyOf(key, name string) string {
	if strings.TrimSpace(key) != "" {
		return NormalizeKey(key)
	}

	return NormalizeKey(name)
}
