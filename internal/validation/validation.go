// Package validation normalizes and validates task input.
package validation

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bcnelson/tareas-api/internal/domain"
)

// MinTitleLength is the minimum length of a normalized title, in characters.
const MinTitleLength = 5

// isNum returns true if the byte is an ASCII digit.
func isNum(b byte) bool {
	return b >= '0' && b <= '9'
}

// NormalizeTitle trims, lowercases and collapses every whitespace run to a
// single space. " Estudiar   Node " becomes "estudiar node".
func NormalizeTitle(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// ValidateTitle normalizes raw and checks the minimum length.
func ValidateTitle(raw string) (string, error) {
	title := NormalizeTitle(raw)
	if utf8.RuneCountInString(title) < MinTitleLength {
		return "", NewValidationError("titulo", raw, domain.MsgTitleTooShort)
	}
	return title, nil
}

// ParseID parses a path id. Only plain decimal literals are accepted: no
// sign, no whitespace, no empty string. Values that overflow int are
// rejected as well since no task can carry them.
func ParseID(raw string) (int, error) {
	if raw == "" {
		return 0, NewValidationError("id", raw, domain.MsgInvalidID)
	}
	for i := 0; i < len(raw); i++ {
		if !isNum(raw[i]) {
			return 0, NewValidationError("id", raw, domain.MsgInvalidID)
		}
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewValidationError("id", raw, domain.MsgInvalidID)
	}
	return id, nil
}
