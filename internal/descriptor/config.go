package descriptor

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
)

// OverrideConfig is the explicit generation configuration merged over the
// auto-discovered facts. It is loaded once per generation run and never
// mutated afterwards; every pipeline stage receives it by value.
type OverrideConfig struct {
	Discovery struct {
		IncludeControllers []string `yaml:"include_controllers" validate:"dive,min=1"`
		ExcludeControllers []string `yaml:"exclude_controllers" validate:"dive,min=1"`
	} `yaml:"discovery"`
	ReadOnlyFields []string                  `yaml:"read_only_fields" validate:"dive,min=1"`
	Modules        map[string]ModuleOverride `yaml:"module_overrides" validate:"dive"`
}

// ModuleOverride tunes one generated module. Read-only additions are strictly
// additive; the description, lookup field, and id parameter replace the
// discovered values when present.
type ModuleOverride struct {
	ReadOnlyFields  []string `yaml:"read_only_fields" validate:"dive,min=1"`
	Description     string   `yaml:"description"`
	LookupField     string   `yaml:"lookup_field"`
	IDParam         string   `yaml:"id_param"`
	ListFilter      string   `yaml:"list_filter"`
	ReplaceOnUpdate bool     `yaml:"replace_on_update"`
}

func LoadConfig(path string) (OverrideConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return OverrideConfig{}, faults.New(faults.ValidationError, "cannot read override config", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (OverrideConfig, error) {
	var cfg OverrideConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return OverrideConfig{}, faults.New(faults.ValidationError, "override config is not valid YAML", err)
	}
	if err := cfg.Validate(); err != nil {
		return OverrideConfig{}, err
	}
	return cfg, nil
}

func (c OverrideConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return faults.New(faults.ValidationError, "override config failed validation", err)
	}
	for name, module := range c.Modules {
		if module.ListFilter == "" {
			continue
		}
		if _, err := gojq.Parse(module.ListFilter); err != nil {
			return &faults.Error{
				Category: faults.ValidationError,
				Resource: name,
				Message:  "list_filter is not a valid jq expression",
				Cause:    err,
			}
		}
	}
	return nil
}

// Includes reports whether the controller tag survives the include/exclude
// filters. Exclusion wins over inclusion.
func (c OverrideConfig) Includes(tag string) bool {
	for _, excluded := range c.Discovery.ExcludeControllers {
		if excluded == tag {
			return false
		}
	}
	if len(c.Discovery.IncludeControllers) == 0 {
		return true
	}
	for _, included := range c.Discovery.IncludeControllers {
		if included == tag {
			return true
		}
	}
	return false
}
