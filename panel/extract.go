package panel

import (
	"sort"
	"strings"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
)

// ExtractList locates the item collection inside a list-response envelope.
// The envelope's outer shape is consistent (a wrapper object with a count and
// one array-valued field) but the array's key varies per resource. When the
// generator derived the key from the response schema it is passed as
// itemsKey; otherwise the wrapper is scanned and anything but exactly one
// array is surfaced as an error, never silently resolved.
func ExtractList(body any, itemsKey string) ([]any, error) {
	inner := unwrapResponse(body)

	if items, ok := inner.([]any); ok {
		return items, nil
	}

	wrapper, ok := inner.(map[string]any)
	if !ok {
		return nil, faults.Newf(faults.NoListFoundError, "list response is neither an array nor a wrapper object")
	}

	if itemsKey != "" {
		items, ok := wrapper[itemsKey].([]any)
		if !ok {
			return nil, faults.Newf(faults.NoListFoundError, "list response has no array at declared key %q", itemsKey)
		}
		return items, nil
	}

	var keys []string
	for key, value := range wrapper {
		if _, ok := value.([]any); ok {
			keys = append(keys, key)
		}
	}
	switch len(keys) {
	case 1:
		return wrapper[keys[0]].([]any), nil
	case 0:
		return nil, faults.Newf(faults.NoListFoundError, "list response contains no array field")
	default:
		sort.Strings(keys)
		return nil, faults.Newf(faults.NoListFoundError, "list response contains multiple array fields: %s", strings.Join(keys, ", "))
	}
}

// unwrapResponse steps into the "response" envelope the panel API wraps every
// success payload in. Payloads without the wrapper pass through untouched.
func unwrapResponse(body any) any {
	obj, ok := body.(map[string]any)
	if !ok {
		return body
	}
	if inner, ok := obj["response"]; ok {
		return inner
	}
	return body
}

func responseObject(body any) map[string]any {
	if obj, ok := unwrapResponse(body).(map[string]any); ok {
		return obj
	}
	return nil
}
