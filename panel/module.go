package panel

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
)

// Endpoint is one operation of a managed resource, as emitted by the
// generator.
type Endpoint struct {
	Method string `yaml:"method" json:"method"`
	Path   string `yaml:"path" json:"path"`
}

// Module is the runtime view of a generated module descriptor: the facts a
// convergence needs to locate, compare, and mutate one resource kind.
type Module struct {
	Name            string              `yaml:"name" json:"name"`
	ResourceName    string              `yaml:"resource_name" json:"resourceName"`
	ControllerTag   string              `yaml:"controller_tag" json:"controllerTag"`
	BasePath        string              `yaml:"base_path" json:"basePath"`
	IDParam         string              `yaml:"id_param" json:"idParam"`
	LookupField     string              `yaml:"lookup_field" json:"lookupField"`
	ItemsKey        string              `yaml:"items_key" json:"itemsKey"`
	ListFilter      string              `yaml:"list_filter" json:"listFilter"`
	ReplaceOnUpdate bool                `yaml:"replace_on_update" json:"replaceOnUpdate"`
	Endpoints       map[string]Endpoint `yaml:"endpoints" json:"endpoints"`
	ReadOnlyFields  []string            `yaml:"read_only_fields" json:"readOnlyFields"`
}

func (m Module) Endpoint(role string) (Endpoint, bool) {
	ep, ok := m.Endpoints[role]
	return ep, ok
}

func (m Module) ReadOnlySet() map[string]struct{} {
	set := make(map[string]struct{}, len(m.ReadOnlyFields))
	for _, name := range m.ReadOnlyFields {
		set[name] = struct{}{}
	}
	return set
}

// LoadModules reads a descriptor file produced by the generator.
func LoadModules(path string) ([]Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, faults.New(faults.ValidationError, "cannot read module descriptors", err)
	}
	var modules []Module
	if err := yaml.Unmarshal(data, &modules); err != nil {
		return nil, faults.New(faults.ValidationError, "module descriptors are not valid YAML", err)
	}
	return modules, nil
}

// FindModule returns the named module from a loaded descriptor set.
func FindModule(modules []Module, name string) (Module, error) {
	for _, module := range modules {
		if module.Name == name {
			return module, nil
		}
	}
	return Module{}, faults.Newf(faults.ValidationError, "unknown module %q", name)
}
