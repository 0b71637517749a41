package login

import (
	"fmt"
	"strings"
	"unicode"

	"clamflow/frontend/shared/apperr"
)

const minPasswordLength = 12

// passwordClasses are the character classes an operator password must mix.
var passwordClasses = []struct {
	name string
	is   func(rune) bool
}{
	{"an uppercase letter", unicode.IsUpper},
	{"a lowercase letter", unicode.IsLower},
	{"a digit", unicode.IsDigit},
	{"a symbol", func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }},
}

// ValidatePasswordPolicy returns a validation error on the password field
// naming every rule the password breaks.
func ValidatePasswordPolicy(password string) error {
	var problems []string
	if n := len([]rune(password)); n < minPasswordLength {
		problems = append(problems, fmt.Sprintf("at least %d characters (got %d)", minPasswordLength, n))
	}
	for _, class := range passwordClasses {
		if !strings.ContainsFunc(password, class.is) {
			problems = append(problems, class.name)
		}
	}
	if len(problems) > 0 {
		return apperr.Invalid("password needs "+strings.Join(problems, ", "), "password")
	}
	return nil
}
