package openapi

import (
	"testing"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
)

const nodesSpec = `
openapi: 3.0.0
info:
  title: Panel API
  version: 1.8.0
paths:
  /api/nodes:
    get:
      operationId: NodesController_getAllNodes
      tags: [Nodes Controller]
      responses:
        "200":
          content:
            application/json:
              schema:
                type: object
                properties:
                  response:
                    type: object
                    properties:
                      nodes:
                        type: array
                        items:
                          $ref: "#/components/schemas/NodeResponse"
    post:
      operationId: NodesController_createNode
      tags: [Nodes Controller]
      requestBody:
        content:
          application/json:
            schema:
              $ref: "#/components/schemas/CreateNodeRequest"
      responses:
        "201":
          content:
            application/json:
              schema:
                type: object
                properties:
                  response:
                    $ref: "#/components/schemas/NodeResponse"
  /api/nodes/{uuid}:
    get:
      operationId: NodesController_getOneNode
      tags: [Nodes Controller]
      responses:
        "200":
          content:
            application/json:
              schema:
                type: object
                properties:
                  response:
                    $ref: "#/components/schemas/NodeResponse"
    delete:
      tags: [Nodes Controller]
      responses:
        "200":
          description: deleted
components:
  schemas:
    CreateNodeRequest:
      type: object
      required: [name, address]
      properties:
        name:
          type: string
          minLength: 1
          maxLength: 30
        address:
          type: string
        port:
          type: integer
          nullable: true
    NodeResponse:
      allOf:
        - $ref: "#/components/schemas/CreateNodeRequest"
        - type: object
          required: [uuid]
          properties:
            uuid:
              type: string
              format: uuid
            createdAt:
              type: string
              format: date-time
`

func TestParseKeepsDocumentOrder(t *testing.T) {
	doc, err := Parse([]byte(nodesSpec))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Title != "Panel API" || doc.Version != "1.8.0" {
		t.Fatalf("unexpected info: %q %q", doc.Title, doc.Version)
	}

	var ids []string
	for _, op := range doc.Operations {
		ids = append(ids, op.ID())
	}
	want := []string{
		"NodesController_getAllNodes",
		"NodesController_createNode",
		"NodesController_getOneNode",
		"DELETE /api/nodes/{uuid}",
	}
	if len(ids) != len(want) {
		t.Fatalf("got %d operations, want %d: %v", len(ids), len(want), ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("operation %d = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestParseResolvesSchemas(t *testing.T) {
	doc, err := Parse([]byte(nodesSpec))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var create *Operation
	for _, op := range doc.Operations {
		if op.OperationID == "NodesController_createNode" {
			create = op
		}
	}
	if create == nil {
		t.Fatal("create operation not found")
	}

	req := create.RequestSchema
	if req == nil || req.Kind != KindObject {
		t.Fatalf("request schema = %+v, want object", req)
	}
	if names := req.PropertyNames(); len(names) != 3 || names[0] != "name" || names[1] != "address" || names[2] != "port" {
		t.Fatalf("request properties = %v, want declaration order", names)
	}

	name := req.Property("name")
	if name == nil || !name.Required || !name.Schema.Constrained() {
		t.Fatalf("name property = %+v, want required and constrained", name)
	}
	port := req.Property("port")
	if port == nil || port.Required || !port.Schema.Nullable || port.Schema.Type != "integer" {
		t.Fatalf("port property = %+v", port)
	}

	// allOf merge: the response envelope carries create fields plus uuid.
	envelope := create.ResponseSchema.Property("response")
	if envelope == nil {
		t.Fatal("response envelope not resolved")
	}
	merged := envelope.Schema
	for _, field := range []string{"name", "address", "port", "uuid", "createdAt"} {
		if !merged.HasProperty(field) {
			t.Fatalf("merged response schema lacks %q: %v", field, merged.PropertyNames())
		}
	}
	if uuid := merged.Property("uuid"); uuid == nil || !uuid.Required || uuid.Schema.Format != "uuid" {
		t.Fatalf("uuid property = %+v", uuid)
	}
}

func TestParseRejectsBrokenDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: "   \n"},
		{name: "scalar root", doc: "just a string"},
		{name: "no paths", doc: "openapi: 3.0.0\ninfo:\n  title: x\n"},
		{name: "invalid yaml", doc: "paths: [\n"},
		{
			name: "unresolved ref",
			doc: `
paths:
  /api/things:
    post:
      requestBody:
        content:
          application/json:
            schema:
              $ref: "#/components/schemas/Missing"
      responses: {}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); !faults.IsCategory(err, faults.SpecParseError) {
				t.Fatalf("Parse() error = %v, want SpecParseError", err)
			}
		})
	}
}

func TestParseBreaksReferenceCycles(t *testing.T) {
	const cyclic = `
paths:
  /api/chains:
    post:
      requestBody:
        content:
          application/json:
            schema:
              $ref: "#/components/schemas/Link"
      responses: {}
components:
  schemas:
    Link:
      type: object
      required: [name]
      properties:
        name:
          type: string
        next:
          $ref: "#/components/schemas/Link"
`
	doc, err := Parse([]byte(cyclic))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	schema := doc.Operations[0].RequestSchema
	next := schema.Property("next")
	if next == nil || next.Schema.Kind != KindObject {
		t.Fatalf("cycle not broken into opaque object: %+v", next)
	}
	if len(next.Schema.Properties) != 0 {
		t.Fatalf("cyclic reference should resolve opaque, got %v", next.Schema.PropertyNames())
	}
}

func TestPathHelpers(t *testing.T) {
	params := PathParams("/api/nodes/{uuid}/usage/{range}")
	if len(params) != 2 || params[0] != "uuid" || params[1] != "range" {
		t.Fatalf("PathParams = %v", params)
	}
	segments := SplitSegments("/api/nodes/{uuid}")
	if len(segments) != 3 || !IsParamSegment(segments[2]) || IsParamSegment(segments[1]) {
		t.Fatalf("SplitSegments = %v", segments)
	}
}
