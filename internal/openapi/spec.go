package openapi

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
)

// Document is the normalized form of an OpenAPI description: a flat, ordered
// sequence of operations with their schema references already resolved.
type Document struct {
	Title      string
	Version    string
	Operations []*Operation
}

type Operation struct {
	Method         string
	Path           string
	OperationID    string
	Summary        string
	Tags           []string
	PathParams     []string
	RequestSchema  *Schema
	ResponseSchema *Schema
}

// ID names the operation in diagnostics: the operationId when the document
// declares one, otherwise "METHOD path".
func (o *Operation) ID() string {
	if o.OperationID != "" {
		return o.OperationID
	}
	return strings.ToUpper(o.Method) + " " + o.Path
}

// Parse loads a YAML or JSON OpenAPI document. Operations come back in
// document order; two identical documents always produce identical output.
func Parse(data []byte) (*Document, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, faults.Newf(faults.SpecParseError, "openapi document is empty")
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, faults.New(faults.SpecParseError, "openapi document is not valid YAML or JSON", err)
	}

	top := documentRoot(&root)
	if top == nil || top.Kind != yaml.MappingNode {
		return nil, faults.Newf(faults.SpecParseError, "openapi document must be a mapping")
	}

	paths := deref(mappingValue(top, "paths"))
	if paths == nil || paths.Kind != yaml.MappingNode {
		return nil, faults.Newf(faults.SpecParseError, "openapi document has no paths section")
	}

	res := &resolver{schemas: componentSchemas(top)}

	doc := &Document{}
	if info := deref(mappingValue(top, "info")); info != nil {
		doc.Title = scalarString(mappingValue(info, "title"))
		doc.Version = scalarString(mappingValue(info, "version"))
	}

	for _, pathPair := range mappingPairs(paths) {
		item := deref(pathPair.Value)
		if item == nil || item.Kind != yaml.MappingNode {
			continue
		}
		for _, methodPair := range mappingPairs(item) {
			method := strings.ToLower(strings.TrimSpace(methodPair.Key))
			if !isHTTPMethod(method) {
				continue
			}
			opNode := deref(methodPair.Value)
			if opNode == nil || opNode.Kind != yaml.MappingNode {
				continue
			}
			op, err := parseOperation(res, method, pathPair.Key, opNode)
			if err != nil {
				return nil, err
			}
			doc.Operations = append(doc.Operations, op)
		}
	}

	return doc, nil
}

func parseOperation(res *resolver, method, path string, node *yaml.Node) (*Operation, error) {
	op := &Operation{
		Method:      method,
		Path:        path,
		OperationID: scalarString(mappingValue(node, "operationId")),
		Summary:     scalarString(mappingValue(node, "summary")),
		Tags:        stringSlice(mappingValue(node, "tags")),
		PathParams:  PathParams(path),
	}

	if body := deref(mappingValue(node, "requestBody")); body != nil {
		schema, err := res.resolve(jsonContentSchema(body))
		if err != nil {
			return nil, annotate(err, op)
		}
		op.RequestSchema = schema
	}

	if responses := deref(mappingValue(node, "responses")); responses != nil && responses.Kind == yaml.MappingNode {
		schema, err := res.resolve(successResponseSchema(responses))
		if err != nil {
			return nil, annotate(err, op)
		}
		op.ResponseSchema = schema
	}

	return op, nil
}

func annotate(err error, op *Operation) error {
	if fault, ok := err.(*faults.Error); ok && fault.Target == "" {
		fault.Target = op.ID()
	}
	return err
}

// successResponseSchema picks the schema node of the first 2xx response in
// document order, preferring 200 and 201 the way the panel API declares its
// success envelopes.
func successResponseSchema(responses *yaml.Node) *yaml.Node {
	for _, code := range []string{"200", "201"} {
		if entry := deref(mappingValue(responses, code)); entry != nil {
			if schema := jsonContentSchema(entry); schema != nil {
				return schema
			}
		}
	}
	for _, pair := range mappingPairs(responses) {
		if !strings.HasPrefix(pair.Key, "2") {
			continue
		}
		if schema := jsonContentSchema(deref(pair.Value)); schema != nil {
			return schema
		}
	}
	return nil
}

func jsonContentSchema(holder *yaml.Node) *yaml.Node {
	if holder == nil || holder.Kind != yaml.MappingNode {
		return nil
	}
	content := deref(mappingValue(holder, "content"))
	if content == nil || content.Kind != yaml.MappingNode {
		return nil
	}
	if media := deref(mappingValue(content, "application/json")); media != nil {
		return mappingValue(media, "schema")
	}
	for _, pair := range mappingPairs(content) {
		media := deref(pair.Value)
		if media == nil {
			continue
		}
		if schema := mappingValue(media, "schema"); schema != nil {
			return schema
		}
	}
	return nil
}

func componentSchemas(root *yaml.Node) map[string]*yaml.Node {
	components := deref(mappingValue(root, "components"))
	if components == nil {
		return nil
	}
	schemas := deref(mappingValue(components, "schemas"))
	if schemas == nil || schemas.Kind != yaml.MappingNode {
		return nil
	}
	out := make(map[string]*yaml.Node, len(schemas.Content)/2)
	for _, pair := range mappingPairs(schemas) {
		out[pair.Key] = pair.Value
	}
	return out
}

// PathParams lists the template parameters of path in declaration order.
func PathParams(path string) []string {
	var params []string
	for _, segment := range SplitSegments(path) {
		if IsParamSegment(segment) {
			params = append(params, strings.Trim(segment, "{}"))
		}
	}
	return params
}

func SplitSegments(path string) []string {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	var segments []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segments = append(segments, part)
	}
	return segments
}

func IsParamSegment(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

func isHTTPMethod(method string) bool {
	switch method {
	case "get", "post", "put", "patch", "delete", "head", "options":
		return true
	default:
		return false
	}
}

type mappingPair struct {
	Key   string
	Value *yaml.Node
}

func mappingPairs(node *yaml.Node) []mappingPair {
	node = deref(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	pairs := make([]mappingPair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := deref(node.Content[i])
		if key == nil || key.Kind != yaml.ScalarNode {
			continue
		}
		pairs = append(pairs, mappingPair{Key: key.Value, Value: node.Content[i+1]})
	}
	return pairs
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	node = deref(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		entry := deref(node.Content[i])
		if entry != nil && entry.Kind == yaml.ScalarNode && entry.Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func documentRoot(node *yaml.Node) *yaml.Node {
	if node == nil {
		return nil
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		return deref(node.Content[0])
	}
	return deref(node)
}

func deref(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

func scalarString(node *yaml.Node) string {
	node = deref(node)
	if node == nil || node.Kind != yaml.ScalarNode {
		return ""
	}
	return strings.TrimSpace(node.Value)
}

func scalarBool(node *yaml.Node) bool {
	node = deref(node)
	if node == nil || node.Kind != yaml.ScalarNode {
		return false
	}
	var value bool
	if err := node.Decode(&value); err != nil {
		return false
	}
	return value
}

func scalarInt(node *yaml.Node) *int {
	node = deref(node)
	if node == nil || node.Kind != yaml.ScalarNode {
		return nil
	}
	var value int
	if err := node.Decode(&value); err != nil {
		return nil
	}
	return &value
}

func stringSlice(node *yaml.Node) []string {
	node = deref(node)
	if node == nil || node.Kind != yaml.SequenceNode {
		return nil
	}
	var values []string
	for _, entry := range node.Content {
		if value := scalarString(entry); value != "" {
			values = append(values, value)
		}
	}
	return values
}

func stringSet(node *yaml.Node) map[string]bool {
	values := stringSlice(node)
	if len(values) == 0 {
		return map[string]bool{}
	}
	set := make(map[string]bool, len(values))
	for _, value := range values {
		set[value] = true
	}
	return set
}
