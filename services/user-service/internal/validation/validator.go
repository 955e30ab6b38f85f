// Package validation checks the shape of user supplied fields.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	emailPattern       = regexp.MustCompile(`^\w+@[a-zA-Z_]+?\.[a-zA-Z]{2,3}$`)
	usernameCharset    = regexp.MustCompile(`^[a-zA-Z0-9._]{4,20}$`)
	usernameDoubledSep = regexp.MustCompile(`[_.]{2}`)
	passwordCharset    = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]{8,100}$`)
	passwordLower      = regexp.MustCompile(`[a-z]`)
	passwordUpper      = regexp.MustCompile(`[A-Z]`)
	passwordDigit      = regexp.MustCompile(`\d`)
	passwordSpecial    = regexp.MustCompile(`[@$!%*?&]`)
)

// FieldErrors maps a field name to a human readable message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

// Validator validates structs tagged with `validate`.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New creates a Validator with the user field rules registered.
func New() (*Validator, error) {
	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}

	rules := []struct {
		tag     string
		fn      validator.Func
		message string
	}{
		{"useremail", isEmail, "{0} is not a valid email"},
		{"username", isUsername, "{0} must be 4-20 letters, digits, '.' or '_' without leading, trailing or doubled separators"},
		{"password", isPassword, "{0} must be 8-100 characters with a lowercase letter, an uppercase letter, a digit and one of @$!%*?&"},
	}
	for _, r := range rules {
		if err := v.RegisterValidation(r.tag, r.fn); err != nil {
			return nil, err
		}
		if err := v.RegisterTranslation(r.tag, trans, registerMessage(r.tag, r.message), translateField); err != nil {
			return nil, err
		}
	}

	return &Validator{validate: v, trans: trans}, nil
}

// Struct validates s and returns FieldErrors for every failing field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(v.trans)
	}
	return fields
}

func registerMessage(tag, message string) validator.RegisterTranslationsFunc {
	return func(trans ut.Translator) error {
		return trans.Add(tag, message, true)
	}
}

func translateField(trans ut.Translator, fe validator.FieldError) string {
	msg, err := trans.T(fe.Tag(), fe.Field())
	if err != nil {
		return fe.Error()
	}
	return msg
}

func isEmail(fl validator.FieldLevel) bool {
	return emailPattern.MatchString(strings.ToLower(strings.TrimSpace(fl.Field().String())))
}

func isUsername(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !usernameCharset.MatchString(s) || usernameDoubledSep.MatchString(s) {
		return false
	}
	return !isSeparator(s[0]) && !isSeparator(s[len(s)-1])
}

func isPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return passwordCharset.MatchString(s) &&
		passwordLower.MatchString(s) &&
		passwordUpper.MatchString(s) &&
		passwordDigit.MatchString(s) &&
		passwordSpecial.MatchString(s)
}

func isSeparator(c byte) bool {
	return c == '.' || c == '_'
}
