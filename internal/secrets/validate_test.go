package secrets

import (
	"errors"
	"strings"
	"testing"
)

func lookupIn(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		keys        []string
		wantMissing []string
		wantEmpty   []string
	}{
		{
			name: "all present",
			env:  map[string]string{"DATABASE_URL": "postgres://db", "COLLECTIONS_FILE": "c.yaml"},
			keys: []string{"DATABASE_URL", "COLLECTIONS_FILE"},
		},
		{
			name:      "blank value",
			env:       map[string]string{"DATABASE_URL": "  "},
			keys:      []string{"DATABASE_URL"},
			wantEmpty: []string{"DATABASE_URL"},
		},
		{
			name:        "missing and empty",
			env:         map[string]string{"COLLECTIONS_FILE": ""},
			keys:        []string{"DATABASE_URL", "COLLECTIONS_FILE", "ALPHA"},
			wantMissing: []string{"ALPHA", "DATABASE_URL"},
			wantEmpty:   []string{"COLLECTIONS_FILE"},
		},
		{
			name: "no keys",
			env:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequired(lookupIn(tt.env), tt.keys...)
			if tt.wantMissing == nil && tt.wantEmpty == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if strings.Join(verr.Missing, ",") != strings.Join(tt.wantMissing, ",") {
				t.Errorf("Missing = %v, want %v", verr.Missing, tt.wantMissing)
			}
			if strings.Join(verr.Empty, ",") != strings.Join(tt.wantEmpty, ",") {
				t.Errorf("Empty = %v, want %v", verr.Empty, tt.wantEmpty)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Missing: []string{"A"}, Empty: []string{"B"}}
	want := "missing required environment variables: A; empty values for required environment variables: B"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
