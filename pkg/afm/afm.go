// Package afm handles Greek tax registration numbers (AFM, also quoted as FPA
// when used as a VAT number).
//
// An AFM is 9 digits long; the last digit is a check digit derived from the
// first 8. Numbers issued under the older scheme had 8 digits and are
// canonicalized by left-padding with a single zero.
//
// Usage:
//
//	afm.Compact("GR 23456783")   // "023456783"
//	afm.Validate("EL 094259216") // "094259216", nil
//	afm.IsValid("EL 123456781")  // false (checksum)
//
// Everything in this package is pure and safe for concurrent use.
package afm

import (
	"strings"
	"unicode/utf8"
)

// Length is the number of digits in a compact AFM.
const Length = 9

const legacyLength = 8

// separators are stripped anywhere in the input.
var separators = strings.NewReplacer(" ", "", "-", "", ".", "", "/", "", ":", "")

// countryPrefixes are the two-letter VAT prefixes used for Greece. EL is the
// EU VAT prefix, GR the ISO 3166 code.
var countryPrefixes = []string{"EL", "GR"}

// Compact converts a number to its minimal representation: separators and
// surrounding whitespace are removed, the country prefix is dropped and legacy
// 8 character numbers are padded to 9.
//
// Compact never fails. Input that is not a number is returned in its cleaned
// form and rejected later by Validate.
func Compact(raw string) string {
	number := strings.TrimSpace(strings.ToUpper(separators.Replace(raw)))
	// Repeated prefixes are stripped too so that Compact(Compact(x)) == Compact(x).
	for stripped := true; stripped; {
		stripped = false
		for _, prefix := range countryPrefixes {
			if strings.HasPrefix(number, prefix) {
				number = strings.TrimSpace(number[len(prefix):])
				stripped = true
			}
		}
	}
	if utf8.RuneCountInString(number) == legacyLength {
		number = "0" + number
	}
	return number
}

// CalcCheckDigit computes the check digit for the 8 leading digits of an AFM.
//
// It panics when number is not exactly 8 ASCII digits; callers are expected to
// have checked format and length already.
func CalcCheckDigit(number string) string {
	if len(number) != legacyLength || !isDigits(number) {
		panic("afm: CalcCheckDigit requires exactly 8 digits, got " + quote(number))
	}
	checksum := 0
	for i := 0; i < len(number); i++ {
		checksum = checksum*2 + int(number[i]-'0')
	}
	return string(rune('0' + checksum*2%11%10))
}

// Validate checks the length, format and check digit of a number and returns
// its compact form. Errors are *ValidationError values; use errors.Is with
// ErrInvalidFormat, ErrInvalidLength, ErrInvalidChecksum or ErrValidation to
// discriminate.
func Validate(raw string) (string, error) {
	number := Compact(raw)
	if !isDigits(number) {
		return "", newValidationError(KindInvalidFormat, number)
	}
	if len(number) != Length {
		return "", newValidationError(KindInvalidLength, number)
	}
	if CalcCheckDigit(number[:Length-1]) != number[Length-1:] {
		return "", newValidationError(KindInvalidChecksum, number)
	}
	return number, nil
}

// IsValid reports whether Validate accepts raw.
func IsValid(raw string) bool {
	_, err := Validate(raw)
	return err == nil
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func quote(s string) string {
	return "\"" + s + "\""
}
