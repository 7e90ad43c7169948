package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dimfeld/httptreemux/v5"
	en "github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	translation := en.New()
	uni := ut.New(translation, translation)
	translator, _ = uni.GetTranslator("en")

	_ = entranslations.RegisterDefaultTranslations(validate, translator)
}

// Decode reads the body of an HTTP request looking for a JSON document
// and unmarshals it into data. If data carries `validate` struct tags,
// the decoded value is additionally checked against them.
func Decode(r *http.Request, data any) error {
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return fmt.Errorf("web: decode request body: %w", err)
	}

	if err := validate.Struct(data); err != nil {
		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("web: validate request body: %w", err)
		}

		fields := make(map[string]string, len(verrors))
		for _, ve := range verrors {
			fields[ve.Field()] = ve.Translate(translator)
		}

		return &ValidationError{Fields: fields}
	}

	return nil
}

// ValidationError reports the field-level messages produced when a
// decoded request body fails struct validation.
type ValidationError struct {
	Fields map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "web: request body failed validation"
}

// Param returns the web call parameters from the request context.
func Param(r *http.Request, key string) string {
	m := httptreemux.ContextParams(r.Context())
	return m[key]
}
