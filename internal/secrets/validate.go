package secrets

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a validation failure for required settings.
type ValidationError struct {
	Missing []string
	Empty   []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Empty) > 0 {
		parts = append(parts, fmt.Sprintf("empty values for required environment variables: %s", strings.Join(e.Empty, ", ")))
	}
	return strings.Join(parts, "; ")
}

// ValidateRequired checks that every key resolves through lookup (usually
// os.LookupEnv) to a non-blank value. Names in the error are sorted.
func ValidateRequired(lookup func(string) (string, bool), keys ...string) error {
	var missing, empty []string
	for _, key := range keys {
		v, ok := lookup(key)
		switch {
		case !ok:
			missing = append(missing, key)
		case strings.TrimSpace(v) == "":
			empty = append(empty, key)
		}
	}
	if len(missing) == 0 && len(empty) == 0 {
		return nil
	}
	slices.Sort(missing)
	slices.Sort(empty)
	return &ValidationError{Missing: missing, Empty: empty}
}
