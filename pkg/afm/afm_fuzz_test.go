//go:build go1.18

package afm

import (
	"errors"
	"testing"
)

// FuzzCompact checks that compaction is idempotent on arbitrary input.
func FuzzCompact(f *testing.F) {
	f.Add("GR 23456783")
	f.Add("EL 094259216")
	f.Add("elel12345678")
	f.Add("")
	f.Add("\x00\xff")

	f.Fuzz(func(t *testing.T, input string) {
		once := Compact(input)
		if twice := Compact(once); twice != once {
			t.Errorf("Compact not idempotent: %q -> %q -> %q", input, once, twice)
		}
	})
}

// FuzzValidate checks that validation never panics and that accepted numbers
// are canonical.
func FuzzValidate(f *testing.F) {
	f.Add("EL 094259216")
	f.Add("EL 123456781")
	f.Add("EL 12A456781")
	f.Add("94259216")

	f.Fuzz(func(t *testing.T, input string) {
		number, err := Validate(input)
		if IsValid(input) != (err == nil) {
			t.Fatalf("IsValid disagrees with Validate for %q", input)
		}
		if err != nil {
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("unexpected error type %T", err)
			}
			return
		}
		if len(number) != Length {
			t.Errorf("accepted %q with length %d", number, len(number))
		}
		again, err := Validate(number)
		if err != nil || again != number {
			t.Errorf("accepted number %q does not round-trip: %q, %v", number, again, err)
		}
	})
}
