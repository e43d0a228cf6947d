package discovery

import (
	"github.com/IlyaGulya/remnawave-modulegen/internal/openapi"
)

type Role string

const (
	RoleCreate Role = "create"
	RoleUpdate Role = "update"
	RoleGetOne Role = "get_one"
	RoleGetAll Role = "get_all"
	RoleDelete Role = "delete"
)

// ResourceGroup is one controller tag with its classified operations. A valid
// group holds exactly one create operation and at most one of each remaining
// role; operations that do not fit the CRUD surface (sub-resource actions,
// bulk endpoints) stay in Extra.
type ResourceGroup struct {
	Tag        string
	All        []*openapi.Operation
	Operations map[Role]*openapi.Operation
	Extra      []*openapi.Operation
}

func (g *ResourceGroup) Operation(role Role) *openapi.Operation {
	if g == nil {
		return nil
	}
	return g.Operations[role]
}

func (g *ResourceGroup) HasCreate() bool {
	return g.Operation(RoleCreate) != nil
}

// FieldSpec describes one payload field of a managed resource. Order follows
// the declaration order of the create schema, with response-only fields
// appended after it.
type FieldSpec struct {
	Name       string `yaml:"name" json:"name"`
	SnakeName  string `yaml:"snake_name" json:"snakeName"`
	Type       string `yaml:"type" json:"type"`
	Elements   string `yaml:"elements,omitempty" json:"elements,omitempty"`
	Format     string `yaml:"format,omitempty" json:"format,omitempty"`
	Required   bool   `yaml:"required" json:"required"`
	Nullable   bool   `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	InCreate   bool   `yaml:"in_create" json:"inCreate"`
	InResponse bool   `yaml:"in_response" json:"inResponse"`
}

type Endpoint struct {
	Method string `yaml:"method" json:"method"`
	Path   string `yaml:"path" json:"path"`
}

// Analysis is the auto-discovered descriptor of one resource, before override
// resolution.
type Analysis struct {
	Tag            string
	ResourceName   string
	ModuleName     string
	Description    string
	BasePath       string
	IDParam        string
	LookupField    string
	ItemsKey       string
	Endpoints      map[string]Endpoint
	Fields         []FieldSpec
	ReadOnlyFields []string
}
