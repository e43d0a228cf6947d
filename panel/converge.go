package panel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/rs/zerolog"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
)

// Action names the outcome of one convergence.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionDeleted   Action = "deleted"
	ActionUnchanged Action = "unchanged"
)

const (
	RoleCreate = "create"
	RoleUpdate = "update"
	RoleGetOne = "get_one"
	RoleGetAll = "get_all"
	RoleDelete = "delete"
)

// Result reports what a convergence did. Resource carries the remote state
// after the operation, Fields and Diff describe the drift that triggered an
// update.
type Result struct {
	Action   Action
	Changed  bool
	Resource map[string]any
	Fields   []string
	Diff     Diff
}

// Converger drives one resource kind to its desired state: locate the remote
// resource, compare, and issue the single API call that closes the gap.
// Converging twice with the same desired state performs at most one write.
type Converger struct {
	Client *Client
	Module Module
	Log    zerolog.Logger
}

// Converge brings the remote resource in line with desired. present=false
// means the resource must not exist.
func (c *Converger) Converge(ctx context.Context, desired map[string]any, present bool) (*Result, error) {
	remote, err := c.find(ctx, desired)
	if err != nil {
		return nil, err
	}

	if !present {
		if remote == nil {
			return &Result{Action: ActionUnchanged}, nil
		}
		return c.delete(ctx, remote)
	}

	if remote == nil {
		return c.create(ctx, desired)
	}

	diff := ComputeDiff(desired, remote, c.Module.ReadOnlySet())
	if diff.Empty() {
		return &Result{Action: ActionUnchanged, Resource: remote}, nil
	}
	return c.update(ctx, desired, remote, diff)
}

// Plan computes what Converge would do without issuing any write.
func (c *Converger) Plan(ctx context.Context, desired map[string]any, present bool) (*Result, error) {
	remote, err := c.find(ctx, desired)
	if err != nil {
		return nil, err
	}

	if !present {
		if remote == nil {
			return &Result{Action: ActionUnchanged}, nil
		}
		return &Result{Action: ActionDeleted, Changed: true, Resource: remote}, nil
	}

	if remote == nil {
		return &Result{Action: ActionCreated, Changed: true, Resource: c.writePayload(desired)}, nil
	}

	diff := ComputeDiff(desired, remote, c.Module.ReadOnlySet())
	if diff.Empty() {
		return &Result{Action: ActionUnchanged, Resource: remote}, nil
	}
	return &Result{Action: ActionUpdated, Changed: true, Resource: remote, Fields: diff.Fields(), Diff: diff}, nil
}

// ResolveID maps a lookup value to the remote identifier, for callers that
// reference one resource from another by name.
func (c *Converger) ResolveID(ctx context.Context, lookupValue string) (string, error) {
	if c.Module.LookupField == "" {
		return "", faults.Newf(faults.ValidationError, "module %s has no lookup field", c.Module.Name)
	}
	remote, err := c.find(ctx, map[string]any{c.Module.LookupField: lookupValue})
	if err != nil {
		return "", err
	}
	if remote == nil {
		return "", &faults.Error{
			Category: faults.NotFoundError,
			Resource: c.Module.ResourceName,
			Target:   lookupValue,
			Message:  fmt.Sprintf("no %s matches %q", c.Module.ResourceName, lookupValue),
		}
	}
	id := stringValue(remote[c.Module.IDParam])
	if id == "" {
		return "", faults.Newf(faults.APIError, "%s %q has no %s field", c.Module.ResourceName, lookupValue, c.Module.IDParam)
	}
	return id, nil
}

func (c *Converger) create(ctx context.Context, desired map[string]any) (*Result, error) {
	ep, ok := c.Module.Endpoint(RoleCreate)
	if !ok {
		return nil, faults.Newf(faults.ValidationError, "module %s has no create endpoint", c.Module.Name)
	}
	created, err := c.Client.Create(ctx, ep.Method, ep.Path, c.writePayload(desired))
	if err != nil {
		return nil, faults.New(faults.CreateFailedError, fmt.Sprintf("cannot create %s", c.Module.ResourceName), err)
	}
	c.Log.Info().Str("module", c.Module.Name).Msg("resource created")
	return &Result{Action: ActionCreated, Changed: true, Resource: created}, nil
}

func (c *Converger) update(ctx context.Context, desired, remote map[string]any, diff Diff) (*Result, error) {
	ep, ok := c.Module.Endpoint(RoleUpdate)
	if !ok {
		return nil, faults.Newf(faults.ValidationError, "module %s has no update endpoint", c.Module.Name)
	}

	id := stringValue(remote[c.Module.IDParam])
	if id == "" {
		return nil, faults.Newf(faults.APIError, "remote %s carries no %s value", c.Module.ResourceName, c.Module.IDParam)
	}

	var payload map[string]any
	if c.Module.ReplaceOnUpdate {
		// Whole-resource replacement still honors the subset contract: the
		// payload is the remote state with the drifted fields overlaid, so
		// fields the caller never declared survive the replacement.
		payload = make(map[string]any, len(remote))
		readOnly := c.Module.ReadOnlySet()
		for name, value := range remote {
			if _, ok := readOnly[name]; ok {
				continue
			}
			payload[name] = value
		}
		for name, change := range diff {
			payload[name] = change.Desired
		}
	} else {
		payload = make(map[string]any, len(diff)+1)
		for name, change := range diff {
			payload[name] = change.Desired
		}
	}
	// Updates on the collection path expect the identifier in the body.
	if !templateHasParam(ep.Path) {
		payload[c.Module.IDParam] = id
	}

	updated, err := c.Client.Update(ctx, ep.Method, ep.Path, id, payload)
	if err != nil {
		return nil, err
	}
	c.Log.Info().Str("module", c.Module.Name).Strs("fields", diff.Fields()).Msg("resource updated")
	return &Result{Action: ActionUpdated, Changed: true, Resource: updated, Fields: diff.Fields(), Diff: diff}, nil
}

func (c *Converger) delete(ctx context.Context, remote map[string]any) (*Result, error) {
	ep, ok := c.Module.Endpoint(RoleDelete)
	if !ok {
		return nil, faults.Newf(faults.ValidationError, "module %s has no delete endpoint", c.Module.Name)
	}
	id := stringValue(remote[c.Module.IDParam])
	if id == "" {
		return nil, faults.Newf(faults.APIError, "remote %s carries no %s value", c.Module.ResourceName, c.Module.IDParam)
	}
	err := c.Client.Delete(ctx, ep.Path, id)
	// Losing a race to another deleter still leaves the resource absent.
	if err != nil && !faults.IsCategory(err, faults.NotFoundError) {
		return nil, err
	}
	c.Log.Info().Str("module", c.Module.Name).Msg("resource deleted")
	return &Result{Action: ActionDeleted, Changed: true, Resource: remote}, nil
}

// find locates the remote counterpart of the desired state: by identifier
// when the desired state carries one, otherwise by scanning the collection
// for a lookup-field match.
func (c *Converger) find(ctx context.Context, desired map[string]any) (map[string]any, error) {
	// An explicit identifier decides presence on its own; without a get-one
	// endpoint it is matched against the collection, never traded for a
	// lookup-field scan that could adopt a different resource.
	if id := stringValue(desired[c.Module.IDParam]); id != "" {
		if ep, ok := c.Module.Endpoint(RoleGetOne); ok {
			return c.Client.GetOne(ctx, ep.Path, id)
		}
		return c.matchInList(ctx, c.Module.IDParam, id)
	}

	if c.Module.LookupField == "" {
		return nil, nil
	}
	want, ok := desired[c.Module.LookupField]
	if !ok {
		return nil, nil
	}
	return c.matchInList(ctx, c.Module.LookupField, want)
}

// matchInList scans the filtered collection for items whose field equals
// want. No match is absence, more than one is a fault.
func (c *Converger) matchInList(ctx context.Context, field string, want any) (map[string]any, error) {
	ep, ok := c.Module.Endpoint(RoleGetAll)
	if !ok {
		return nil, faults.Newf(faults.ValidationError, "module %s has no list endpoint", c.Module.Name)
	}
	items, err := c.Client.GetAll(ctx, ep.Path, c.Module.ItemsKey)
	if err != nil {
		return nil, err
	}
	items, err = c.filterList(items)
	if err != nil {
		return nil, err
	}

	var matches []map[string]any
	for _, item := range items {
		if deepEqual(want, item[field]) {
			matches = append(matches, item)
		}
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, &faults.Error{
			Category: faults.AmbiguousLookupError,
			Resource: c.Module.ResourceName,
			Target:   stringValue(want),
			Message:  fmt.Sprintf("%d %s resources match %s=%v", len(matches), c.Module.ResourceName, field, want),
		}
	}
}

// filterList applies the module's jq predicate to each listed item.
func (c *Converger) filterList(items []map[string]any) ([]map[string]any, error) {
	if c.Module.ListFilter == "" {
		return items, nil
	}
	query, err := gojq.Parse(c.Module.ListFilter)
	if err != nil {
		return nil, faults.New(faults.ValidationError, fmt.Sprintf("invalid list filter for module %s", c.Module.Name), err)
	}
	kept := items[:0:0]
	for _, item := range items {
		iter := query.Run(normalizeForJQ(item))
		v, ok := iter.Next()
		if !ok {
			continue
		}
		if err, isErr := v.(error); isErr {
			return nil, faults.New(faults.ValidationError, fmt.Sprintf("list filter failed for module %s", c.Module.Name), err)
		}
		if keep, isBool := v.(bool); isBool && keep {
			kept = append(kept, item)
		}
	}
	return kept, nil
}

// writePayload is the desired state minus read-only fields, ready to send to
// a write endpoint.
func (c *Converger) writePayload(desired map[string]any) map[string]any {
	readOnly := c.Module.ReadOnlySet()
	payload := make(map[string]any, len(desired))
	for name, value := range desired {
		if _, ok := readOnly[name]; ok {
			continue
		}
		payload[name] = value
	}
	return payload
}

func templateHasParam(path string) bool {
	for i := 0; i < len(path); i++ {
		if path[i] == '{' {
			return true
		}
	}
	return false
}

// normalizeForJQ rewrites decoded values into the types gojq evaluates.
func normalizeForJQ(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = normalizeForJQ(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeForJQ(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[fmt.Sprint(k)] = normalizeForJQ(item)
		}
		return out
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return int(i)
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	default:
		return v
	}
}
