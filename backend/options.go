package backend

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/mwantia/folders/data"
	"github.com/mwantia/folders/log"
)

// Options holds the raw, unvalidated configuration of one backend instance.
type Options map[string]any

// Settings carries per-instance collaborators injected by the caller.
type Settings struct {
	// Kind is the registry tag the backend was created with.
	Kind    string
	Logger  *log.Logger
	Metrics Metrics
	// EnrichConcurrency bounds parallel summary calls during listing enrichment.
	EnrichConcurrency int
}

// WithDefaults returns a copy with every unset collaborator filled in.
func (s *Settings) WithDefaults(kind string) *Settings {
	out := &Settings{}
	if s != nil {
		*out = *s
	}

	if out.Kind == "" {
		out.Kind = kind
	}
	if out.Logger == nil {
		out.Logger = log.Discard()
	}
	if out.Metrics == nil {
		out.Metrics = NopMetrics
	}
	if out.EnrichConcurrency <= 0 {
		out.EnrichConcurrency = 8
	}
	return out
}

// OptionsValidator is implemented by option structs with cross-field rules.
type OptionsValidator interface {
	Validate() error
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("option"), ",")
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

// DecodeOptions decodes raw into out and validates it.
// out must be a pointer to a struct using `option` tags for names and
// `validate` tags for rules; preset field values act as defaults.
// Every failure is a config-kind error naming the backend kind.
func DecodeOptions(kind string, raw Options, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "option",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return data.ConfigError(kind, err)
	}

	if err := decoder.Decode(map[string]any(raw)); err != nil {
		return data.ConfigError(kind, err)
	}

	if err := structValidator().Struct(out); err != nil {
		return data.ConfigError(kind, describeValidation(err))
	}

	if v, ok := out.(OptionsValidator); ok {
		if err := v.Validate(); err != nil {
			return data.ConfigError(kind, err)
		}
	}
	return nil
}

func describeValidation(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("option '%s' is required", fe.Field()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("option '%s' must be one of [%s]", fe.Field(), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("option '%s' failed rule '%s=%s'", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return fmt.Errorf("%s", strings.Join(messages, "; "))
}
