package agentdef

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
)

var (
	v     *validator.Validate
	vOnce sync.Once
)

func V() *validator.Validate {
	vOnce.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterValidation("voice", voiceValidator)
		v.RegisterValidation("supportedLanguage", languageValidator)
	})
	return v
}

func voiceValidator(fl validator.FieldLevel) bool {
	return slices.Contains(Voices, fl.Field().String())
}

// languageValidator accepts any spelling of a supported tag that parses to
// it, e.g. "en-us" for en-US.
func languageValidator(fl validator.FieldLevel) bool {
	tag, err := language.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return slices.ContainsFunc(Languages, func(l language.Tag) bool {
		return l.String() == tag.String()
	})
}

// validationErrors turns validator output into one readable error per
// failing field, named by its json path.
func validationErrors(d *Definition) []error {
	err := V().Struct(d)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []error{err}
	}
	var errs []error
	for _, e := range verrs {
		field := strings.TrimPrefix(e.Namespace(), "Definition.")
		switch e.Tag() {
		case "required":
			errs = append(errs, fmt.Errorf("%s is required", field))
		case "voice":
			errs = append(errs, fmt.Errorf("%s: unsupported voice %q, expected one of %s", field, e.Value(), strings.Join(Voices, ", ")))
		case "supportedLanguage":
			errs = append(errs, fmt.Errorf("%s: unsupported language %q", field, e.Value()))
		case "oneof":
			errs = append(errs, fmt.Errorf("%s: %q is not one of %s", field, e.Value(), e.Param()))
		case "len", "hexcolor":
			errs = append(errs, fmt.Errorf("%s: %q is not a #rrggbb color", field, e.Value()))
		case "max":
			errs = append(errs, fmt.Errorf("%s: longer than %s characters", field, e.Param()))
		case "uuid":
			errs = append(errs, fmt.Errorf("%s: %q is not a uuid", field, e.Value()))
		default:
			errs = append(errs, fmt.Errorf("%s: failed %s validation", field, e.Tag()))
		}
	}
	return errs
}
