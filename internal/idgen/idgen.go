// Package idgen generates short, URL-safe identifiers for fetch-log entries.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the character set for the random portion of an ID.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters (excluding the prefix).
const Length = 12

// GenerateWithPrefix returns a new random ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
