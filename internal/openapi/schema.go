package openapi

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
)

type Kind uint8

const (
	KindScalar Kind = iota
	KindObject
	KindArray
)

// Schema is the resolved form of an OpenAPI schema node. References are
// resolved before a Schema is handed to callers, so field analysis never has
// to inspect raw document shape.
type Schema struct {
	Kind       Kind
	Type       string
	Format     string
	Nullable   bool
	Unique     bool
	Pattern    string
	MinLength  *int
	MaxLength  *int
	Default    any
	Properties []Property
	Items      *Schema
}

// Property keeps the declaration order of the source document, which drives
// the order of emitted field specs.
type Property struct {
	Name     string
	Required bool
	Schema   *Schema
}

func (s *Schema) Property(name string) *Property {
	if s == nil {
		return nil
	}
	for i := range s.Properties {
		if s.Properties[i].Name == name {
			return &s.Properties[i]
		}
	}
	return nil
}

func (s *Schema) HasProperty(name string) bool {
	return s.Property(name) != nil
}

func (s *Schema) PropertyNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Properties))
	for _, prop := range s.Properties {
		names = append(names, prop.Name)
	}
	return names
}

// Constrained reports whether the schema declares a value constraint that
// marks a string field as practically unique (length bounds or a pattern).
func (s *Schema) Constrained() bool {
	if s == nil {
		return false
	}
	return s.MinLength != nil || s.MaxLength != nil || s.Pattern != ""
}

const schemaRefPrefix = "#/components/schemas/"

type resolver struct {
	schemas map[string]*yaml.Node
}

func (r *resolver) resolve(node *yaml.Node) (*Schema, error) {
	return r.resolveNode(node, map[string]bool{})
}

func (r *resolver) resolveNode(node *yaml.Node, stack map[string]bool) (*Schema, error) {
	node = deref(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, nil
	}

	if ref := scalarString(mappingValue(node, "$ref")); ref != "" {
		if !strings.HasPrefix(ref, schemaRefPrefix) {
			return nil, faults.Newf(faults.SpecParseError, "unsupported schema reference %q", ref)
		}
		name := strings.TrimSpace(strings.TrimPrefix(ref, schemaRefPrefix))
		target, ok := r.schemas[name]
		if !ok {
			return nil, faults.Newf(faults.SpecParseError, "unresolved schema reference %q", ref)
		}
		if stack[name] {
			// Break reference cycles with an opaque object node.
			return &Schema{Kind: KindObject, Type: "object"}, nil
		}
		stack[name] = true
		resolved, err := r.resolveNode(target, stack)
		delete(stack, name)
		return resolved, err
	}

	schema := &Schema{
		Type:     typeName(node),
		Format:   scalarString(mappingValue(node, "format")),
		Nullable: scalarBool(mappingValue(node, "nullable")),
		Unique:   scalarBool(mappingValue(node, "x-unique")),
		Pattern:  scalarString(mappingValue(node, "pattern")),
	}
	schema.MinLength = scalarInt(mappingValue(node, "minLength"))
	schema.MaxLength = scalarInt(mappingValue(node, "maxLength"))
	if def := mappingValue(node, "default"); def != nil {
		var value any
		if err := def.Decode(&value); err == nil {
			schema.Default = value
		}
	}

	if err := r.resolveComposition(node, schema, stack); err != nil {
		return nil, err
	}

	required := stringSet(mappingValue(node, "required"))
	if props := deref(mappingValue(node, "properties")); props != nil && props.Kind == yaml.MappingNode {
		for _, pair := range mappingPairs(props) {
			resolved, err := r.resolveNode(pair.Value, stack)
			if err != nil {
				return nil, err
			}
			if resolved == nil {
				continue
			}
			schema.Properties = append(schema.Properties, Property{
				Name:     pair.Key,
				Required: required[pair.Key],
				Schema:   resolved,
			})
		}
	}

	if items := mappingValue(node, "items"); items != nil {
		resolved, err := r.resolveNode(items, stack)
		if err != nil {
			return nil, err
		}
		schema.Items = resolved
	}

	switch {
	case schema.Type == "object" || len(schema.Properties) > 0:
		schema.Kind = KindObject
		schema.Type = "object"
	case schema.Type == "array" || schema.Items != nil:
		schema.Kind = KindArray
		schema.Type = "array"
	default:
		schema.Kind = KindScalar
		if schema.Type == "" {
			schema.Type = "string"
		}
	}

	return schema, nil
}

// resolveComposition folds allOf members into the schema and takes the first
// resolvable oneOf/anyOf alternative as the representative shape.
func (r *resolver) resolveComposition(node *yaml.Node, schema *Schema, stack map[string]bool) error {
	if all := deref(mappingValue(node, "allOf")); all != nil && all.Kind == yaml.SequenceNode {
		for _, member := range all.Content {
			resolved, err := r.resolveNode(member, stack)
			if err != nil {
				return err
			}
			if resolved == nil {
				continue
			}
			for _, prop := range resolved.Properties {
				if schema.Property(prop.Name) == nil {
					schema.Properties = append(schema.Properties, prop)
				}
			}
			if schema.Type == "" {
				schema.Type = resolved.Type
			}
		}
	}

	for _, key := range []string{"oneOf", "anyOf"} {
		choices := deref(mappingValue(node, key))
		if choices == nil || choices.Kind != yaml.SequenceNode {
			continue
		}
		for _, choice := range choices.Content {
			resolved, err := r.resolveNode(choice, stack)
			if err != nil {
				return err
			}
			if resolved == nil {
				continue
			}
			if schema.Type == "" {
				schema.Type = resolved.Type
			}
			if len(schema.Properties) == 0 {
				schema.Properties = resolved.Properties
			}
			if schema.Items == nil {
				schema.Items = resolved.Items
			}
			break
		}
	}

	return nil
}

func typeName(node *yaml.Node) string {
	value := deref(mappingValue(node, "type"))
	if value == nil {
		return ""
	}
	if value.Kind == yaml.ScalarNode {
		return strings.TrimSpace(value.Value)
	}
	// OpenAPI 3.1 allows a type list; take the first non-null entry.
	if value.Kind == yaml.SequenceNode {
		for _, entry := range value.Content {
			entry = deref(entry)
			if entry == nil || entry.Kind != yaml.ScalarNode {
				continue
			}
			name := strings.TrimSpace(entry.Value)
			if name != "" && name != "null" {
				return name
			}
		}
	}
	return ""
}
