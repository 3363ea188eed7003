// Package uuid includes tests for the UUID generator wrapper.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewID ensures generated IDs are unique, valid and version 7.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	parsed, err := goUUID.Parse(id1)
	if err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
	if err := Validate(id2); err != nil {
		t.Fatalf("Validate(%s) error = %v", id2, err)
	}
}

// TestValidateRejectsGarbage covers malformed IDs.
func TestValidateRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"", "job-1", "1234"} {
		if err := Validate(id); err == nil {
			t.Fatalf("Validate(%q) expected error", id)
		}
	}
}
