package descriptor

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Validate checks the structural requirements of the renderer contract. It
// carries no business logic; a descriptor that passes here is complete and
// internally consistent.
func (d ModuleDescriptor) Validate() error {
	if d.ControllerTag == "" {
		return faults.Newf(faults.ValidationError, "descriptor has an empty controller tag")
	}
	if d.Name == "" {
		return &faults.Error{
			Category: faults.ValidationError,
			Resource: d.ControllerTag,
			Message:  "descriptor has an empty module name",
		}
	}
	if _, ok := d.Endpoints["create"]; !ok {
		return &faults.Error{
			Category: faults.ValidationError,
			Resource: d.ControllerTag,
			Message:  "descriptor has no create endpoint",
		}
	}

	known := make(map[string]bool, len(d.Fields))
	for _, field := range d.Fields {
		known[field.Name] = true
	}
	if d.IDParam != "" && !known[d.IDParam] {
		return &faults.Error{
			Category: faults.ValidationError,
			Resource: d.ControllerTag,
			Message:  "id param " + d.IDParam + " is not a field of the resource",
		}
	}
	for _, name := range d.ReadOnlyFields {
		if !known[name] {
			return &faults.Error{
				Category: faults.ValidationError,
				Resource: d.ControllerTag,
				Message:  "read-only field " + name + " is not a field of the resource",
			}
		}
	}
	return nil
}

// Emit serializes the descriptor set for the external renderer. Output is
// deterministic: descriptors are already sorted by the resolver and both
// encoders keep struct-field order.
func Emit(w io.Writer, descriptors []ModuleDescriptor, format string) error {
	for _, desc := range descriptors {
		if err := desc.Validate(); err != nil {
			return err
		}
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(descriptors)
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(descriptors); err != nil {
			return err
		}
		return enc.Close()
	default:
		return faults.Newf(faults.ValidationError, "unsupported output format %q", format)
	}
}
