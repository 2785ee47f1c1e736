package afm

// AFM is a validated, compact tax registration number.
// Invariant: the value is 9 digits with a matching check digit.
//
// Usage: construct via Parse at trust boundaries; direct casting bypasses
// validation.
type AFM string

// Parse validates raw and returns it as an AFM.
func Parse(raw string) (AFM, error) {
	number, err := Validate(raw)
	if err != nil {
		return "", err
	}
	return AFM(number), nil
}

// MustParse is like Parse but panics on invalid input. Intended for tests and
// package-level fixtures.
func MustParse(raw string) AFM {
	a, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return a
}

func (a AFM) String() string {
	return string(a)
}

// IsZero reports whether a is the zero value.
func (a AFM) IsZero() bool {
	return a == ""
}

// VAT returns the number with the EU VAT prefix used for Greece.
func (a AFM) VAT() string {
	return "EL" + string(a)
}
