// Package validatex wraps go-playground/validator with English messages and
// the identifier rules used by the OTP endpoints.
package validatex

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var rePhone10 = regexp.MustCompile(`^[0-9]{10}$`)

// ErrTranslatorNotFound indicates the English translator could not be loaded.
var ErrTranslatorNotFound = errors.New("validatex: translator not found")

// ValidationError maps snake_case field names to human readable messages.
type ValidationError map[string]string

func (ve ValidationError) Error() string {
	if len(ve) == 0 {
		return "validation error"
	}
	b, err := json.Marshal(map[string]string(ve))
	if err != nil {
		return fmt.Sprintf("validation error (%v)", err)
	}
	return string(b)
}

// Validator validates structs and single values.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New builds a Validator with English translations and the phone10 rule.
func New() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	trans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("validatex: register translations: %w", err)
	}

	if err := registerRules(validate, trans); err != nil {
		return nil, err
	}

	return &Validator{validate: validate, translator: trans}, nil
}

// MustNew is New for package-level initialisation.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Struct validates s and returns a ValidationError on failure.
func (v *Validator) Struct(s any) error {
	return v.translate(v.validate.Struct(s))
}

// Var validates a single value against tag, e.g. Var(target, "email").
func (v *Validator) Var(field any, tag string) error {
	return v.translate(v.validate.Var(field, tag))
}

func (v *Validator) translate(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := snake(fe.Field())
		if key == "" {
			key = "value"
		}
		out[key] = strings.TrimSpace(fe.Translate(v.translator))
	}
	return out
}

func registerRules(validate *validator.Validate, trans ut.Translator) error {
	err := validate.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && rePhone10.MatchString(s)
	})
	if err != nil {
		return fmt.Errorf("validatex: register phone10: %w", err)
	}

	err = validate.RegisterTranslation("phone10", trans,
		func(ut ut.Translator) error {
			return ut.Add("phone10", "{0} must be exactly 10 digits", false)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, err := ut.T(fe.Tag(), fe.Field())
			if err != nil {
				return fe.Error()
			}
			return t
		},
	)
	if err != nil {
		return fmt.Errorf("validatex: translate phone10: %w", err)
	}

	return nil
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
