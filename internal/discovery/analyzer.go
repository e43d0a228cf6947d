package discovery

import (
	"sort"
	"strings"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
	"github.com/IlyaGulya/remnawave-modulegen/internal/openapi"
	"github.com/IlyaGulya/remnawave-modulegen/panel"
)

// Analyze derives the managed-resource facts for one classified group: the
// identifying path parameter, the human lookup field, the ordered field set,
// the server-owned read-only fields, and the list-response items key.
func Analyze(group *ResourceGroup) (*Analysis, error) {
	create := group.Operation(RoleCreate)
	if create == nil {
		return nil, &faults.Error{
			Category: faults.MissingIdParamError,
			Resource: group.Tag,
			Message:  "group has no create operation",
		}
	}

	idParam, err := detectIdParam(group)
	if err != nil {
		return nil, err
	}

	createSchema := create.RequestSchema
	responseSchema := unwrapEnvelope(create.ResponseSchema)

	fields := collectFields(createSchema, responseSchema, idParam)
	if idParam == "" {
		idParam = fallbackIdParam(fields)
	}

	itemsKey, err := detectItemsKey(group)
	if err != nil {
		return nil, err
	}

	resourceName := deriveResourceName(group.Tag)
	analysis := &Analysis{
		Tag:            group.Tag,
		ResourceName:   resourceName,
		ModuleName:     panel.ToSnakeCase(strings.ReplaceAll(resourceName, " ", "")),
		Description:    defaultDescription(resourceName),
		BasePath:       create.Path,
		IDParam:        idParam,
		LookupField:    detectLookupField(createSchema),
		ItemsKey:       itemsKey,
		Endpoints:      collectEndpoints(group),
		Fields:         fields,
		ReadOnlyFields: readOnlyFields(fields),
	}
	return analysis, nil
}

// detectIdParam returns the single path parameter shared by the instance
// operations. The instance operations disagreeing on the parameter means the
// spec cannot be derived automatically.
func detectIdParam(group *ResourceGroup) (string, error) {
	param := ""
	paramRole := Role("")
	for _, role := range []Role{RoleGetOne, RoleUpdate, RoleDelete} {
		op := group.Operation(role)
		if op == nil || len(op.PathParams) != 1 {
			continue
		}
		name := op.PathParams[0]
		if param == "" {
			param = name
			paramRole = role
			continue
		}
		if name != param {
			return "", &faults.Error{
				Category: faults.MissingIdParamError,
				Resource: group.Tag,
				Message: "operations " + string(paramRole) + " and " + string(role) +
					" disagree on the identifying parameter (" + param + " vs " + name + ")",
			}
		}
	}
	return param, nil
}

// fallbackIdParam covers resources whose instance operations address the
// collection path: the identifier then lives in the payload, not the path.
func fallbackIdParam(fields []FieldSpec) string {
	for _, candidate := range []string{"uuid", "id"} {
		for _, field := range fields {
			if field.Name == candidate {
				return candidate
			}
		}
	}
	return ""
}

// detectLookupField scans the create schema for a required, string-typed,
// uniqueness-constrained field. A required "name" wins outright. No qualifying
// field simply disables lookup-by-name for the resource.
func detectLookupField(schema *openapi.Schema) string {
	if schema == nil {
		return ""
	}

	if prop := schema.Property("name"); prop != nil && prop.Required && prop.Schema.Type == "string" {
		return "name"
	}

	for _, prop := range schema.Properties {
		if !prop.Required || prop.Schema.Type != "string" {
			continue
		}
		if prop.Schema.Unique || prop.Schema.Constrained() {
			return prop.Name
		}
	}
	return ""
}

// detectItemsKey derives, at generation time, the name of the array field
// inside the get_all response wrapper. The declared key removes the run-time
// scan ambiguity entirely; more than one candidate array is surfaced here
// rather than guessed at apply time.
func detectItemsKey(group *ResourceGroup) (string, error) {
	getAll := group.Operation(RoleGetAll)
	if getAll == nil {
		return "", nil
	}

	wrapper := unwrapEnvelope(getAll.ResponseSchema)
	if wrapper == nil || wrapper.Kind == openapi.KindArray {
		return "", nil
	}
	if wrapper.Kind != openapi.KindObject {
		return "", nil
	}

	var keys []string
	for _, prop := range wrapper.Properties {
		if prop.Schema != nil && prop.Schema.Kind == openapi.KindArray {
			keys = append(keys, prop.Name)
		}
	}
	switch len(keys) {
	case 0:
		return "", nil
	case 1:
		return keys[0], nil
	default:
		return "", &faults.Error{
			Category: faults.NoListFoundError,
			Resource: group.Tag,
			Message:  "list response declares multiple array fields: " + strings.Join(keys, ", "),
		}
	}
}

// collectFields merges the create-request fields (declaration order) with the
// response-only fields appended after them. The id parameter is materialized
// as a response field when the schemas do not mention it, keeping the emitted
// contract internally consistent.
func collectFields(create, response *openapi.Schema, idParam string) []FieldSpec {
	var fields []FieldSpec
	seen := make(map[string]bool)

	if create != nil {
		for _, prop := range create.Properties {
			fields = append(fields, fieldFromProperty(prop, true, response.HasProperty(prop.Name)))
			seen[prop.Name] = true
		}
	}
	if response != nil {
		for _, prop := range response.Properties {
			if seen[prop.Name] {
				continue
			}
			fields = append(fields, fieldFromProperty(prop, false, true))
			seen[prop.Name] = true
		}
	}
	if idParam != "" && !seen[idParam] {
		fields = append(fields, FieldSpec{
			Name:       idParam,
			SnakeName:  panel.ToSnakeCase(idParam),
			Type:       "string",
			InResponse: true,
		})
	}

	return fields
}

func fieldFromProperty(prop openapi.Property, inCreate, inResponse bool) FieldSpec {
	field := FieldSpec{
		Name:       prop.Name,
		SnakeName:  panel.ToSnakeCase(prop.Name),
		Type:       prop.Schema.Type,
		Format:     prop.Schema.Format,
		Required:   prop.Required && !prop.Schema.Nullable,
		Nullable:   prop.Schema.Nullable,
		InCreate:   inCreate,
		InResponse: inResponse,
	}
	if prop.Schema.Kind == openapi.KindArray && prop.Schema.Items != nil {
		field.Elements = prop.Schema.Items.Type
	}
	return field
}

func readOnlyFields(fields []FieldSpec) []string {
	var names []string
	for _, field := range fields {
		if field.InResponse && !field.InCreate {
			names = append(names, field.Name)
		}
	}
	sort.Strings(names)
	return names
}

// unwrapEnvelope steps into the single "response" object the panel API wraps
// every success payload in.
func unwrapEnvelope(schema *openapi.Schema) *openapi.Schema {
	if schema == nil || schema.Kind != openapi.KindObject {
		return schema
	}
	if prop := schema.Property("response"); prop != nil {
		return prop.Schema
	}
	return schema
}

func collectEndpoints(group *ResourceGroup) map[string]Endpoint {
	endpoints := make(map[string]Endpoint, len(group.Operations))
	for role, op := range group.Operations {
		endpoints[string(role)] = Endpoint{
			Method: strings.ToUpper(op.Method),
			Path:   op.Path,
		}
	}
	return endpoints
}

// deriveResourceName turns "Config Profiles Controller" into "Config Profile".
func deriveResourceName(tag string) string {
	name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(tag), " Controller"))
	if strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss") {
		name = name[:len(name)-1]
	}
	return name
}

func defaultDescription(resourceName string) string {
	words := strings.Fields(strings.ToLower(resourceName))
	if len(words) == 0 {
		return ""
	}
	words[len(words)-1] += "s"
	return "Manage Remnawave panel " + strings.Join(words, " ")
}
