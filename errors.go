package enrich

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigType marks a configure call given a settings value of the wrong kind.
	ErrConfigType = errors.New("enrich: configuration type mismatch")
	// ErrMissingSource marks a calculate call with no counts source and no stored table.
	ErrMissingSource = errors.New("enrich: missing counts source")
	// ErrKeyNotFound marks mediated store access addressed at an absent key.
	ErrKeyNotFound = errors.New("enrich: store key not found")
	// ErrStoreHandleType marks a plugin handle without the store-manager capability.
	ErrStoreHandleType = errors.New("enrich: store handle is not a store manager")
	// ErrOptionsType marks plugin options that are not a mapping.
	ErrOptionsType = errors.New("enrich: options must be a mapping")
	// ErrUnknownOption marks an option key the plugin never declared.
	ErrUnknownOption = errors.New("enrich: unknown option")
	// ErrOptionValue marks an option value that does not fit its declaration.
	ErrOptionValue = errors.New("enrich: invalid option value")
	// ErrInvalidOption marks a malformed option declaration.
	ErrInvalidOption = errors.New("enrich: invalid option declaration")
	// ErrUnknownPlugin marks a registry lookup for a name never registered.
	ErrUnknownPlugin = errors.New("enrich: unknown scoring plugin")
)

// ConfigTypeError is returned by Configure when the settings value is neither
// a raw mapping nor the library's settings type.
type ConfigTypeError struct {
	Library  string
	Got      any
	Expected []string
}

func (e *ConfigTypeError) Error() string {
	return fmt.Sprintf("enrich: configuration was %T, want one of %s [%s]",
		e.Got, strings.Join(e.Expected, ", "), e.Library)
}

func (e *ConfigTypeError) Unwrap() error { return ErrConfigType }

// MissingSourceError is returned by Calculate when the library has neither a
// stored count table nor a counts file.
type MissingSourceError struct {
	Library string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("enrich: missing counts file [%s]", e.Library)
}

func (e *MissingSourceError) Unwrap() error { return ErrMissingSource }

// StoreKeyNotFound is returned by mediated reads and removals of absent keys.
type StoreKeyNotFound struct {
	Key   string
	Owner string
	Err   error
}

func (e *StoreKeyNotFound) Error() string {
	return fmt.Sprintf("enrich: store %s does not exist [%s]", e.Key, e.Owner)
}

func (e *StoreKeyNotFound) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrKeyNotFound}
	}
	return []error{ErrKeyNotFound, e.Err}
}

// StoreHandleTypeError is returned when a plugin is built on a handle that
// does not implement StoreManager.
type StoreHandleTypeError struct {
	Plugin string
	Got    any
}

func (e *StoreHandleTypeError) Error() string {
	return fmt.Sprintf("enrich: store handle must be a StoreManager, got %T [%s]", e.Got, e.Plugin)
}

func (e *StoreHandleTypeError) Unwrap() error { return ErrStoreHandleType }

// OptionsTypeError is returned when plugin options are not map[string]any.
type OptionsTypeError struct {
	Plugin string
	Got    any
}

func (e *OptionsTypeError) Error() string {
	return fmt.Sprintf("enrich: options must be a map[string]any, got %T [%s]", e.Got, e.Plugin)
}

func (e *OptionsTypeError) Unwrap() error { return ErrOptionsType }

// UnknownOptionError names an option key absent from the declared collection.
type UnknownOptionError struct {
	Plugin string
	Key    string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("enrich: unknown option %q [%s]", e.Key, e.Plugin)
}

func (e *UnknownOptionError) Unwrap() error { return ErrUnknownOption }

// OptionValueError reports a value that cannot be bound to its option.
type OptionValueError struct {
	Plugin  string
	Varname string
	Value   any
	Reason  string
}

func (e *OptionValueError) Error() string {
	return fmt.Sprintf("enrich: option %s=%v: %s [%s]", e.Varname, e.Value, e.Reason, e.Plugin)
}

func (e *OptionValueError) Unwrap() error { return ErrOptionValue }

// InvalidOptionError reports a declaration rejected at registration time.
type InvalidOptionError struct {
	Name    string
	Varname string
	Reason  string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("enrich: option %q (%s): %s", e.Name, e.Varname, e.Reason)
}

func (e *InvalidOptionError) Unwrap() error { return ErrInvalidOption }
