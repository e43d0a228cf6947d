package discovery

import (
	"strings"
	"testing"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
	"github.com/IlyaGulya/remnawave-modulegen/internal/openapi"
)

const panelSpec = `
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
                      total:
                        type: integer
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
    patch:
      operationId: NodesController_updateNode
      tags: [Nodes Controller]
      requestBody:
        content:
          application/json:
            schema:
              $ref: "#/components/schemas/UpdateNodeRequest"
      responses:
        "200":
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
      operationId: NodesController_deleteNode
      tags: [Nodes Controller]
      responses:
        "200":
          description: deleted
  /api/nodes/{uuid}/restart:
    post:
      operationId: NodesController_restartNode
      tags: [Nodes Controller]
      responses:
        "200":
          description: restarted
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
    UpdateNodeRequest:
      type: object
      required: [uuid]
      properties:
        uuid:
          type: string
        name:
          type: string
        address:
          type: string
        port:
          type: integer
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

func parseDoc(t *testing.T, spec string) *openapi.Document {
	t.Helper()
	doc, err := openapi.Parse([]byte(spec))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func classifiedGroup(t *testing.T, spec, tag string) *ResourceGroup {
	t.Helper()
	for _, group := range GroupByTag(parseDoc(t, spec)) {
		if group.Tag != tag {
			continue
		}
		if err := Classify(group); err != nil {
			t.Fatalf("Classify(%s) error = %v", tag, err)
		}
		return group
	}
	t.Fatalf("no group for tag %q", tag)
	return nil
}

func TestGroupByTagSortsGroups(t *testing.T) {
	const spec = `
paths:
  /api/b:
    get:
      tags: [Zeta Controller]
      responses: {}
  /api/a:
    get:
      tags: [Alpha Controller]
      responses: {}
`
	groups := GroupByTag(parseDoc(t, spec))
	if len(groups) != 2 || groups[0].Tag != "Alpha Controller" || groups[1].Tag != "Zeta Controller" {
		t.Fatalf("groups = %v", []string{groups[0].Tag, groups[1].Tag})
	}
}

func TestClassifyAssignsRoles(t *testing.T) {
	group := classifiedGroup(t, panelSpec, "Nodes Controller")

	want := map[Role]string{
		RoleGetAll: "NodesController_getAllNodes",
		RoleCreate: "NodesController_createNode",
		RoleUpdate: "NodesController_updateNode",
		RoleGetOne: "NodesController_getOneNode",
		RoleDelete: "NodesController_deleteNode",
	}
	for role, id := range want {
		op := group.Operation(role)
		if op == nil || op.ID() != id {
			t.Fatalf("role %s = %v, want %s", role, op, id)
		}
	}

	if len(group.Extra) != 1 || group.Extra[0].ID() != "NodesController_restartNode" {
		t.Fatalf("extras = %v, want the restart action unclassified", group.Extra)
	}
}

// The update verb addresses the collection path, so classification must read
// the request schema: a required identifier distinguishes it from create.
func TestClassifyCollectionPathUpdate(t *testing.T) {
	group := classifiedGroup(t, panelSpec, "Nodes Controller")

	update := group.Operation(RoleUpdate)
	if update == nil || update.Path != "/api/nodes" || update.Method != "patch" {
		t.Fatalf("update = %+v", update)
	}
	create := group.Operation(RoleCreate)
	if create == nil || create.Path != "/api/nodes" || create.Method != "post" {
		t.Fatalf("create = %+v", create)
	}
}

func TestClassifyRejectsDuplicateRoles(t *testing.T) {
	const spec = `
paths:
  /api/hosts:
    post:
      operationId: createA
      tags: [Hosts Controller]
      responses: {}
    put:
      operationId: createB
      tags: [Hosts Controller]
      responses: {}
`
	for _, group := range GroupByTag(parseDoc(t, spec)) {
		err := Classify(group)
		if !faults.IsCategory(err, faults.AmbiguousClassificationError) {
			t.Fatalf("Classify() error = %v, want AmbiguousClassificationError", err)
		}
		for _, id := range []string{"createA", "createB"} {
			if !strings.Contains(err.Error(), id) {
				t.Fatalf("error %v does not name %s", err, id)
			}
		}
	}
}
