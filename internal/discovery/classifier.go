package discovery

import (
	"sort"
	"strings"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
	"github.com/IlyaGulya/remnawave-modulegen/internal/openapi"
)

// GroupByTag buckets the document's operations by controller tag. Groups come
// back sorted by tag so the generation pipeline is deterministic.
func GroupByTag(doc *openapi.Document) []*ResourceGroup {
	byTag := make(map[string]*ResourceGroup)
	var tags []string

	for _, op := range doc.Operations {
		for _, tag := range op.Tags {
			group, ok := byTag[tag]
			if !ok {
				group = &ResourceGroup{Tag: tag, Operations: make(map[Role]*openapi.Operation)}
				byTag[tag] = group
				tags = append(tags, tag)
			}
			group.All = append(group.All, op)
		}
	}

	sort.Strings(tags)
	groups := make([]*ResourceGroup, 0, len(tags))
	for _, tag := range tags {
		groups = append(groups, byTag[tag])
	}
	return groups
}

// Classify assigns a CRUD role to every operation of the group that fits one.
// Classification reads the verb, the path shape, and the request schema; it
// never relies on operation naming alone. Two operations claiming the same
// role is an error, not a guess.
func Classify(group *ResourceGroup) error {
	base := basePathSegments(group)

	for _, op := range group.All {
		role, ok := classifyOperation(op, base)
		if !ok {
			group.Extra = append(group.Extra, op)
			continue
		}
		if existing := group.Operations[role]; existing != nil {
			return &faults.Error{
				Category: faults.AmbiguousClassificationError,
				Resource: group.Tag,
				Message:  "operations " + existing.ID() + " and " + op.ID() + " both classify as " + string(role),
			}
		}
		group.Operations[role] = op
	}

	return nil
}

// basePathSegments picks the group's collection path: the shortest path with
// no template parameters. Equal-length candidates tie-break lexicographically;
// the loser's operations stay unclassified.
func basePathSegments(group *ResourceGroup) []string {
	var best []string
	var bestPath string
	for _, op := range group.All {
		segments := openapi.SplitSegments(op.Path)
		if countParams(segments) != 0 {
			continue
		}
		if best == nil || len(segments) < len(best) ||
			(len(segments) == len(best) && op.Path < bestPath) {
			best = segments
			bestPath = op.Path
		}
	}
	return best
}

func classifyOperation(op *openapi.Operation, base []string) (Role, bool) {
	if base == nil {
		return "", false
	}

	segments := openapi.SplitSegments(op.Path)
	switch countParams(segments) {
	case 0:
		if !equalSegments(segments, base) {
			return "", false
		}
		switch op.Method {
		case "get":
			return RoleGetAll, true
		case "post", "put", "patch":
			// A write against the collection path whose body must carry the
			// resource identifier addresses an existing instance.
			if requiresIdentifier(op.RequestSchema) {
				return RoleUpdate, true
			}
			return RoleCreate, true
		}
	case 1:
		last := segments[len(segments)-1]
		if !openapi.IsParamSegment(last) || !equalSegments(segments[:len(segments)-1], base) {
			return "", false
		}
		switch op.Method {
		case "get":
			return RoleGetOne, true
		case "post", "put", "patch":
			return RoleUpdate, true
		case "delete":
			return RoleDelete, true
		}
	}

	return "", false
}

func requiresIdentifier(schema *openapi.Schema) bool {
	if schema == nil {
		return false
	}
	for _, prop := range schema.Properties {
		if !prop.Required {
			continue
		}
		if isIdentifierName(prop.Name) {
			return true
		}
	}
	return false
}

func isIdentifierName(name string) bool {
	switch strings.ToLower(name) {
	case "uuid", "id":
		return true
	default:
		return false
	}
}

func countParams(segments []string) int {
	count := 0
	for _, segment := range segments {
		if openapi.IsParamSegment(segment) {
			count++
		}
	}
	return count
}

func equalSegments(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
