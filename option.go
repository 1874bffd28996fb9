package enrich

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goliatone/go-enrich/store"
)

// DType is the closed set of value kinds an Option may declare.
type DType int

const (
	DTypeInvalid DType = iota
	DTypeInt
	DTypeFloat
	DTypeString
	DTypeBool
	// DTypeChoice accepts exactly one of the declared choices.
	DTypeChoice
)

func (d DType) String() string {
	switch d {
	case DTypeInt:
		return "int"
	case DTypeFloat:
		return "float"
	case DTypeString:
		return "string"
	case DTypeBool:
		return "bool"
	case DTypeChoice:
		return "choice"
	default:
		return "invalid"
	}
}

// ParseDType converts a dtype name such as "int" or "float" into a DType.
func ParseDType(value string) DType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "int", "integer":
		return DTypeInt
	case "float", "number":
		return DTypeFloat
	case "string", "str":
		return DTypeString
	case "bool", "boolean":
		return DTypeBool
	case "choice", "categorical":
		return DTypeChoice
	default:
		return DTypeInvalid
	}
}

// DefaultTooltip is used when an option is declared without a hint.
const DefaultTooltip = "No information"

var varnamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Option describes one configurable parameter of a scoring plugin. Values are
// immutable once built by NewOption.
type Option struct {
	Name    string
	Varname string
	DType   DType
	Default any
	Choices []any
	Tooltip string
}

// NewOption validates and builds an Option. Default and every choice are
// coerced to dtype, and a non-empty Choices list must contain Default.
func NewOption(name, varname string, dtype DType, def any, choices []any, tooltip string) (Option, error) {
	invalid := func(reason string, args ...any) error {
		return &InvalidOptionError{Name: name, Varname: varname, Reason: fmt.Sprintf(reason, args...)}
	}
	if strings.TrimSpace(name) == "" {
		return Option{}, invalid("name must not be empty")
	}
	if !varnamePattern.MatchString(varname) {
		return Option{}, invalid("varname is not an identifier")
	}
	if dtype <= DTypeInvalid || dtype > DTypeChoice {
		return Option{}, invalid("unsupported dtype %d", int(dtype))
	}
	if dtype == DTypeChoice && len(choices) == 0 {
		return Option{}, invalid("choice option requires choices")
	}

	opt := Option{
		Name:    name,
		Varname: varname,
		DType:   dtype,
		Tooltip: tooltip,
	}
	if opt.Tooltip == "" {
		opt.Tooltip = DefaultTooltip
	}
	for _, choice := range choices {
		coerced, err := coerceValue(dtype, choice)
		if err != nil {
			return Option{}, invalid("choice %v: %v", choice, err)
		}
		opt.Choices = append(opt.Choices, coerced)
	}
	coerced, err := coerceValue(dtype, def)
	if err != nil {
		return Option{}, invalid("default %v: %v", def, err)
	}
	if len(opt.Choices) > 0 && !slices.Contains(opt.Choices, coerced) {
		return Option{}, invalid("default %v is not one of %v", def, opt.Choices)
	}
	opt.Default = coerced
	return opt, nil
}

// Coerce converts value to the option's dtype and checks it against Choices.
func (o Option) Coerce(value any) (any, error) {
	coerced, err := coerceValue(o.DType, value)
	if err != nil {
		return nil, err
	}
	if len(o.Choices) > 0 && !slices.Contains(o.Choices, coerced) {
		return nil, fmt.Errorf("not one of %v", o.Choices)
	}
	return coerced, nil
}

func coerceValue(dtype DType, value any) (any, error) {
	switch dtype {
	case DTypeInt:
		if s, ok := value.(string); ok {
			i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("want int, got %q", s)
			}
			return i, nil
		}
		if i, ok := store.ToInt(value); ok {
			return i, nil
		}
		return nil, fmt.Errorf("want int, got %T", value)
	case DTypeFloat:
		if s, ok := value.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("want float, got %q", s)
			}
			return f, nil
		}
		if f, ok := store.ToFloat(value); ok {
			return f, nil
		}
		return nil, fmt.Errorf("want float, got %T", value)
	case DTypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("want string, got %T", value)
	case DTypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("want bool, got %q", v)
			}
			return b, nil
		}
		return nil, fmt.Errorf("want bool, got %T", value)
	case DTypeChoice:
		switch value.(type) {
		case nil, map[string]any, []any:
			return nil, fmt.Errorf("want a scalar choice, got %T", value)
		}
		return store.Normalize(value), nil
	default:
		return nil, fmt.Errorf("unsupported dtype %s", dtype)
	}
}

// OptionCollection is the ordered, append-only set of options a plugin
// declares. Insertion order is presentation order.
type OptionCollection struct {
	options []Option
	errs    []error
}

// NewOptionCollection returns an empty collection.
func NewOptionCollection() *OptionCollection {
	return &OptionCollection{}
}

// AddOption validates and appends an option, returning the collection so
// declarations can be chained. A rejected declaration is not appended and is
// reported by Err. Repeated names are allowed; repeated varnames are not.
func (c *OptionCollection) AddOption(name, varname string, dtype DType, def any, choices []any, tooltip string) *OptionCollection {
	opt, err := NewOption(name, varname, dtype, def, choices, tooltip)
	if err != nil {
		c.errs = append(c.errs, err)
		return c
	}
	if _, exists := c.Lookup(varname); exists {
		c.errs = append(c.errs, &InvalidOptionError{Name: name, Varname: varname, Reason: "varname already declared"})
		return c
	}
	c.options = append(c.options, opt)
	return c
}

// Options returns the declared options in insertion order.
func (c *OptionCollection) Options() []Option {
	if c == nil {
		return nil
	}
	return slices.Clone(c.options)
}

// Len returns the number of accepted options.
func (c *OptionCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.options)
}

// Lookup finds an option by varname.
func (c *OptionCollection) Lookup(varname string) (Option, bool) {
	if c == nil {
		return Option{}, false
	}
	for _, opt := range c.options {
		if opt.Varname == varname {
			return opt, true
		}
	}
	return Option{}, false
}

// Defaults maps every varname to its default value.
func (c *OptionCollection) Defaults() map[string]any {
	out := make(map[string]any, c.Len())
	if c == nil {
		return out
	}
	for _, opt := range c.options {
		out[opt.Varname] = opt.Default
	}
	return out
}

// Err joins every rejected declaration, or returns nil.
func (c *OptionCollection) Err() error {
	if c == nil || len(c.errs) == 0 {
		return nil
	}
	return errors.Join(c.errs...)
}
