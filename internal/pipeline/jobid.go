package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// NewJobID returns a fresh random job identifier.
func NewJobID() string {
	return uuid.NewString()
}

// NormalizeJobID turns a user supplied name into a job id usable as a store
// prefix and lock file name: lower case letters and digits separated by
// single dashes.
func NormalizeJobID(s string) string {
	return normalizePathSegment(s)
}

// ValidateJobID rejects ids that NormalizeJobID would change.
func ValidateJobID(id string) error {
	if id == "" {
		return fmt.Errorf("job id is empty")
	}
	if normalizePathSegment(id) != id {
		return fmt.Errorf("invalid job id %q: use lower case letters, digits and dashes (e.g. %q)", id, normalizePathSegment(id))
	}
	return nil
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
