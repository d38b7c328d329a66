// Package mvalidate wraps go-playground/validator with the English
// translator, matching the validate:"…" struct tags used on every request
// DTO in internal/domain.
package mvalidate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	once      sync.Once
	validate  *validator.Validate
	translate ut.Translator
)

func instance() (*validator.Validate, ut.Translator) {
	once.Do(func() {
		validate = validator.New()

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		translate, _ = uni.GetTranslator("en")

		_ = entranslations.RegisterDefaultTranslations(validate, translate)
	})

	return validate, translate
}

// Struct validates s against its validate:"…" tags and returns a single
// deterministic human-readable message joining every failing field, or nil.
func Struct(s any) error {
	v, t := instance()

	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !asValidationErrors(err, &fieldErrs) {
		return err
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fe.Translate(t))
	}

	return fmt.Errorf("%s", strings.Join(messages, "; "))
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}

	*target = ve

	return true
}
