package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("positive_duration", isPositiveDuration); err != nil {
		return nil, nil, fmt.Errorf("failed to register positive_duration validation: %w", err)
	}
	if err := validate.RegisterTranslation("positive_duration", trans, func(ut ut.Translator) error {
		return ut.Add("positive_duration", "{0} must be a positive duration such as 10s", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("positive_duration", strings.TrimPrefix(fe.Namespace(), "Config."))
		return t
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register positive_duration translation: %w", err)
	}

	return validate, trans, nil
}

func isPositiveDuration(fl validator.FieldLevel) bool {
	d, ok := fl.Field().Interface().(time.Duration)
	return ok && d > 0
}

// translateWithPath replaces the leading leaf field name of a translated
// message with its full key, e.g. "sync.workers must be 5 or less".
func translateWithPath(fe validator.FieldError, trans ut.Translator) string {
	msg := fe.Translate(trans)
	path := strings.TrimPrefix(fe.Namespace(), "Config.")
	if rest, ok := strings.CutPrefix(msg, fe.Field()); ok {
		return path + rest
	}
	return msg
}
