package descriptor

import (
	"sort"

	"github.com/IlyaGulya/remnawave-modulegen/internal/discovery"
)

// ModuleDescriptor is the generation-time artifact handed to the renderer:
// everything a module template needs to manage one resource declaratively.
// Immutable once produced; regeneration replaces the whole set.
type ModuleDescriptor struct {
	Name            string                        `yaml:"name" json:"name"`
	ResourceName    string                        `yaml:"resource_name" json:"resourceName"`
	ControllerTag   string                        `yaml:"controller_tag" json:"controllerTag"`
	Description     string                        `yaml:"description" json:"description"`
	BasePath        string                        `yaml:"base_path" json:"basePath"`
	IDParam         string                        `yaml:"id_param" json:"idParam"`
	LookupField     string                        `yaml:"lookup_field,omitempty" json:"lookupField,omitempty"`
	ItemsKey        string                        `yaml:"items_key,omitempty" json:"itemsKey,omitempty"`
	ListFilter      string                        `yaml:"list_filter,omitempty" json:"listFilter,omitempty"`
	ReplaceOnUpdate bool                          `yaml:"replace_on_update,omitempty" json:"replaceOnUpdate,omitempty"`
	Endpoints       map[string]discovery.Endpoint `yaml:"endpoints" json:"endpoints"`
	Fields          []discovery.FieldSpec         `yaml:"fields" json:"fields"`
	ReadOnlyFields  []string                      `yaml:"read_only_fields" json:"readOnlyFields"`
}

// Resolve merges the auto-discovered analyses with the override configuration.
// Pure and deterministic: identical inputs produce an identical descriptor
// set, which the build pipeline relies on for its freshness check.
func Resolve(analyses []*discovery.Analysis, cfg OverrideConfig) []ModuleDescriptor {
	var descriptors []ModuleDescriptor
	for _, analysis := range analyses {
		if !cfg.Includes(analysis.Tag) {
			continue
		}
		descriptors = append(descriptors, resolveOne(analysis, cfg))
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

func resolveOne(analysis *discovery.Analysis, cfg OverrideConfig) ModuleDescriptor {
	desc := ModuleDescriptor{
		Name:          analysis.ModuleName,
		ResourceName:  analysis.ResourceName,
		ControllerTag: analysis.Tag,
		Description:   analysis.Description,
		BasePath:      analysis.BasePath,
		IDParam:       analysis.IDParam,
		LookupField:   analysis.LookupField,
		ItemsKey:      analysis.ItemsKey,
		Endpoints:     analysis.Endpoints,
		Fields:        analysis.Fields,
	}

	override := cfg.Modules[analysis.ModuleName]
	if override.Description != "" {
		desc.Description = override.Description
	}
	if override.LookupField != "" {
		desc.LookupField = override.LookupField
	}
	if override.IDParam != "" {
		desc.IDParam = override.IDParam
	}
	if override.ListFilter != "" {
		desc.ListFilter = override.ListFilter
	}
	desc.ReplaceOnUpdate = override.ReplaceOnUpdate

	desc.ReadOnlyFields = mergeReadOnly(analysis, cfg.ReadOnlyFields, override.ReadOnlyFields)
	return desc
}

// mergeReadOnly unions the discovered read-only set with the global and
// per-module configured names. Names that are not fields of the resource are
// dropped so the emitted contract keeps readOnlyFields a subset of fields.
func mergeReadOnly(analysis *discovery.Analysis, global, extra []string) []string {
	known := make(map[string]bool, len(analysis.Fields))
	for _, field := range analysis.Fields {
		known[field.Name] = true
	}

	set := make(map[string]bool)
	for _, name := range analysis.ReadOnlyFields {
		set[name] = true
	}
	for _, name := range global {
		if known[name] {
			set[name] = true
		}
	}
	for _, name := range extra {
		if known[name] {
			set[name] = true
		}
	}

	merged := make([]string, 0, len(set))
	for name := range set {
		merged = append(merged, name)
	}
	sort.Strings(merged)
	return merged
}
