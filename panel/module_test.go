package panel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
)

const moduleFixture = `
- name: node
  resource_name: Node
  controller_tag: Nodes Controller
  base_path: /api/nodes
  id_param: uuid
  lookup_field: name
  items_key: nodes
  endpoints:
    create:
      method: POST
      path: /api/nodes
    get_all:
      method: GET
      path: /api/nodes
  read_only_fields:
    - createdAt
    - uuid
- name: host
  resource_name: Host
  controller_tag: Hosts Controller
  base_path: /api/hosts
  id_param: uuid
  endpoints:
    create:
      method: POST
      path: /api/hosts
`

func TestLoadModules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.yaml")
	if err := os.WriteFile(path, []byte(moduleFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	modules, err := LoadModules(path)
	if err != nil {
		t.Fatalf("LoadModules() error = %v", err)
	}
	if len(modules) != 2 {
		t.Fatalf("got %d modules", len(modules))
	}

	node, err := FindModule(modules, "node")
	if err != nil {
		t.Fatalf("FindModule() error = %v", err)
	}
	if node.IDParam != "uuid" || node.ItemsKey != "nodes" {
		t.Fatalf("module = %+v", node)
	}
	if ep, ok := node.Endpoint("create"); !ok || ep.Method != "POST" {
		t.Fatalf("create endpoint = %+v", ep)
	}
	set := node.ReadOnlySet()
	if _, ok := set["createdAt"]; !ok {
		t.Fatalf("read-only set = %v", set)
	}

	if _, err := FindModule(modules, "nope"); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("FindModule(nope) error = %v", err)
	}
}

func TestLoadModulesErrors(t *testing.T) {
	if _, err := LoadModules(filepath.Join(t.TempDir(), "absent.yaml")); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("missing file error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte(": not yaml ["), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadModules(path); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("broken yaml error = %v", err)
	}
}
