// Package config holds the settings types of sequencing libraries and the
// helpers that decode them from raw mappings and files.
package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/goliatone/go-enrich/internal/hydrate"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func settingsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// SeqLibConfiguration holds the settings shared by every sequencing library.
type SeqLibConfiguration struct {
	Name                string `json:"name" yaml:"name" validate:"required"`
	Timepoint           int    `json:"timepoint" yaml:"timepoint" validate:"gte=0"`
	CountsFile          string `json:"counts file,omitempty" yaml:"counts file,omitempty"`
	ReportFilteredReads bool   `json:"report filtered reads" yaml:"report filtered reads"`
	OutputDir           string `json:"output directory,omitempty" yaml:"output directory,omitempty"`
}

// Validate checks the struct tags.
func (c SeqLibConfiguration) Validate() error {
	if err := settingsValidator().Struct(c); err != nil {
		return fmt.Errorf("config: library %q: %w", c.Name, err)
	}
	return nil
}

// IdentifiersConfiguration holds the identifier filtering settings.
type IdentifiersConfiguration struct {
	MinCount int `json:"min count" yaml:"min count" validate:"gte=0"`
}

// IdOnlySeqLibConfiguration configures a library built from an identifier
// counts file.
type IdOnlySeqLibConfiguration struct {
	SeqLibConfiguration `yaml:",inline"`
	Identifiers         IdentifiersConfiguration `json:"identifiers" yaml:"identifiers"`
}

// Validate checks the struct tags, including the embedded base settings.
func (c IdOnlySeqLibConfiguration) Validate() error {
	if err := settingsValidator().Struct(c); err != nil {
		return fmt.Errorf("config: library %q: %w", c.Name, err)
	}
	return nil
}

// DecodeSeqLib decodes and validates base library settings from raw.
func DecodeSeqLib(raw map[string]any) (SeqLibConfiguration, error) {
	return decode[SeqLibConfiguration](raw, "SeqLib")
}

// DecodeIdOnlySeqLib decodes and validates identifier-only library settings.
func DecodeIdOnlySeqLib(raw map[string]any) (IdOnlySeqLibConfiguration, error) {
	return decode[IdOnlySeqLibConfiguration](raw, "IdOnlySeqLib")
}

func decode[T interface{ Validate() error }](raw map[string]any, kind string) (T, error) {
	name, _ := raw["name"].(string)
	decoder := hydrate.NewDecoder[T](
		hydrate.WithPreHook[T](normalizeKeys),
		hydrate.WithPostHook[T](func(_ hydrate.Context, cfg *T) error {
			return (*cfg).Validate()
		}),
	)
	cfg, err := decoder.Decode(hydrate.Context{Name: name, Kind: kind}, raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
