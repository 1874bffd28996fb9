package enrich

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/goliatone/go-enrich/internal/hydrate"
)

var (
	structValidatorOnce sync.Once
	structValidator     *validator.Validate
)

func optionValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return structValidator
}

// ResolveOptions checks values against the declared collection and returns a
// complete varname to value mapping. Undeclared keys and values that do not
// fit their option are rejected; missing keys take the declared default.
// A nil values argument resolves to the defaults.
func ResolveOptions(owner string, c *OptionCollection, values any) (map[string]any, error) {
	if c != nil {
		if err := c.Err(); err != nil {
			return nil, err
		}
	}
	var raw map[string]any
	switch v := values.(type) {
	case nil:
	case map[string]any:
		raw = v
	default:
		return nil, &OptionsTypeError{Plugin: owner, Got: values}
	}

	resolved := c.Defaults()
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		opt, ok := c.Lookup(key)
		if !ok {
			return nil, &UnknownOptionError{Plugin: owner, Key: key}
		}
		value, err := opt.Coerce(raw[key])
		if err != nil {
			return nil, &OptionValueError{Plugin: owner, Varname: key, Value: raw[key], Reason: err.Error()}
		}
		resolved[key] = value
	}
	return resolved, nil
}

// BindOptions resolves values and decodes them into T, matching varnames to
// json tags. The result is checked with its validate tags and, when T has
// one, its Validate method.
func BindOptions[T any](owner string, c *OptionCollection, values any) (T, error) {
	var zero T
	resolved, err := ResolveOptions(owner, c, values)
	if err != nil {
		return zero, err
	}
	decoder := hydrate.NewDecoder[T]()
	bound, err := decoder.Decode(hydrate.Context{Name: owner, Kind: "options"}, resolved)
	if err != nil {
		return zero, fmt.Errorf("enrich: bind options [%s]: %w", owner, err)
	}
	if isStruct(bound) {
		if err := optionValidator().Struct(bound); err != nil {
			return zero, fmt.Errorf("enrich: options [%s]: %w", owner, err)
		}
	}
	if err := validateValue(bound); err != nil {
		return zero, fmt.Errorf("enrich: options [%s]: %w", owner, err)
	}
	return bound, nil
}

func validateValue[T any](value T) error {
	if v, ok := any(value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	if v, ok := any(&value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

func isStruct(value any) bool {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct
}
