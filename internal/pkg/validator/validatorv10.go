package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	netmail "net/mail"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// AMQP queue names are limited to 255 bytes; the broker reserves "amq." prefixes.
var reQueueName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:\-]{0,254}$`)

// ErrTranslatorNotFound is returned when the English translator is missing.
var ErrTranslatorNotFound = errors.New("translator not found")

// Validator checks a struct against its `validate` tags.
type Validator interface {
	Validate(data any) error
}

// V10ValidationError maps a JSON field name to its failure message.
type V10ValidationError map[string]string

func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	b, err := json.Marshal(vs)
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// Values returns the field error map.
func (vs V10ValidationError) Values() map[string]string {
	return vs
}

// V10Validator implements Validator.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewV10Validator builds a validator with English messages and the
// "queuename" and "mailaddr" rules registered.
func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}

	if err := registerQueueName(validate, enTrans); err != nil {
		return nil, err
	}

	if err := registerMailAddress(validate, enTrans); err != nil {
		return nil, err
	}

	return &V10Validator{validate: validate, translator: enTrans}, nil
}

// Validate returns a V10ValidationError when data violates its tags.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		return err
	}

	errV10 := make(V10ValidationError, len(validateErrs))
	for _, fe := range validateErrs {
		errV10[fieldPath(fe)] = fe.Translate(v.translator)
	}

	return errV10
}

// fieldPath drops the root struct name from the namespace so nested and
// slice fields read as "to[1]" or "template.name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	default:
		return name
	}
}

func registerQueueName(validate *validator.Validate, enTrans ut.Translator) error {
	err := validate.RegisterValidation("queuename", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return reQueueName.MatchString(name) && !strings.HasPrefix(name, "amq.")
	})
	if err != nil {
		return err
	}

	return validate.RegisterTranslation("queuename", enTrans,
		func(trans ut.Translator) error {
			return trans.Add("queuename", "{0} must be a valid queue name", false)
		},
		func(trans ut.Translator, fe validator.FieldError) string {
			t, err := trans.T(fe.Tag(), fe.Field())
			if err != nil {
				return fe.Error()
			}
			return t
		},
	)
}

// registerMailAddress adds "mailaddr", which accepts RFC 5322 addresses with
// or without a display name.
func registerMailAddress(validate *validator.Validate, enTrans ut.Translator) error {
	err := validate.RegisterValidation("mailaddr", func(fl validator.FieldLevel) bool {
		_, err := netmail.ParseAddress(fl.Field().String())
		return err == nil
	})
	if err != nil {
		return err
	}

	return validate.RegisterTranslation("mailaddr", enTrans,
		func(trans ut.Translator) error {
			return trans.Add("mailaddr", "{0} must be a valid email address", false)
		},
		func(trans ut.Translator, fe validator.FieldError) string {
			t, err := trans.T(fe.Tag(), fe.Field())
			if err != nil {
				return fe.Error()
			}
			return t
		},
	)
}
