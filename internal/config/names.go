package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIdentifierRequired = errors.New("identifier is required")
	ErrInvalidIdentifier  = errors.New("invalid identifier")
)

// SanitizeTable accepts "table" or "schema.table" made of letters, digits
// and underscores.
func SanitizeTable(name string) (string, error) {
	if name == "" {
		return "", ErrIdentifierRequired
	}
	for _, part := range strings.Split(name, ".") {
		if err := SanitizeColumn(part); err != nil {
			return "", fmt.Errorf("%w: %s", ErrInvalidIdentifier, name)
		}
	}
	return name, nil
}

// SanitizeColumn accepts a single identifier made of letters, digits and
// underscores.
func SanitizeColumn(name string) error {
	if name == "" {
		return ErrIdentifierRequired
	}
	for _, r := range name {
		if r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		return fmt.Errorf("%w: %s", ErrInvalidIdentifier, name)
	}
	return nil
}
