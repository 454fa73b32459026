// Package validation holds the credential rules applied before any account
// is created or changed.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

// DefaultEmailPattern accepts local-part@domain.tld with a 2 to 5 letter TLD.
const DefaultEmailPattern = `^[\w.+-]+@[\w-]+(\.[\w-]+)*\.[A-Za-z]{2,5}$`

// CodeLength is the length of mailed one-time codes.
const CodeLength = 6

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Censor flags text containing banned words.
type Censor interface {
	HasCensoredWord(text string) bool
}

type Rules struct {
	UsernameMin  int
	UsernameMax  int
	PasswordMin  int
	EmailPattern string
}

func DefaultRules() Rules {
	return Rules{
		UsernameMin:  4,
		UsernameMax:  12,
		PasswordMin:  8,
		EmailPattern: DefaultEmailPattern,
	}
}

type Validator struct {
	rules  Rules
	email  *regexp.Regexp
	censor Censor
}

// New compiles the email pattern. censor may be nil.
func New(rules Rules, censor Censor) (*Validator, error) {
	pattern := rules.EmailPattern
	if pattern == "" {
		pattern = DefaultEmailPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Validator{rules: rules, email: re, censor: censor}, nil
}

func (v *Validator) ValidateUsername(username string) error {
	return validation.Validate(username,
		validation.Required,
		validation.By(noWhitespace),
		validation.RuneLength(v.rules.UsernameMin, v.rules.UsernameMax),
		validation.By(v.notCensored),
	)
}

func (v *Validator) ValidateEmail(email string) error {
	return validation.Validate(strings.TrimSpace(email),
		validation.Required,
		validation.Match(v.email),
	)
}

func (v *Validator) ValidatePassword(password string) error {
	return validation.Validate(strings.TrimSpace(password),
		validation.Required,
		validation.RuneLength(v.rules.PasswordMin, 0),
	)
}

// ValidateCode checks the shape of a mailed one-time code.
func (v *Validator) ValidateCode(code string) error {
	return validation.Validate(strings.TrimSpace(code),
		validation.Required,
		validation.Length(CodeLength, CodeLength),
		validation.Match(codePattern),
	)
}

func (v *Validator) IsCodeValid(code string) bool {
	return v.ValidateCode(code) == nil
}

func (v *Validator) IsUsernameValid(username string) bool {
	return v.ValidateUsername(username) == nil
}

func (v *Validator) IsEmailValid(email string) bool {
	return v.ValidateEmail(email) == nil
}

func (v *Validator) IsPasswordValid(password string) bool {
	return v.ValidatePassword(password) == nil
}

func noWhitespace(value interface{}) error {
	s, _ := value.(string)
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return errors.New("must not contain whitespace")
	}
	return nil
}

func (v *Validator) notCensored(value interface{}) error {
	s, _ := value.(string)
	if v.censor != nil && v.censor.HasCensoredWord(s) {
		return errors.New("contains a banned word")
	}
	return nil
}
