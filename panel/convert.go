package panel

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	camelBoundary   = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	lowerUpperSplit = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// ToSnakeCase converts camelCase or PascalCase identifiers to snake_case,
// keeping acronym runs intact ("getHTTPResponse" becomes "get_http_response").
func ToSnakeCase(name string) string {
	snake := camelBoundary.ReplaceAllString(name, "${1}_${2}")
	snake = lowerUpperSplit.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}

// ToCamelCase converts snake_case identifiers to camelCase.
func ToCamelCase(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) == 1 {
		return name
	}
	var sb strings.Builder
	sb.WriteString(parts[0])
	for _, part := range parts[1:] {
		sb.WriteString(capitalize(part))
	}
	return sb.String()
}

func capitalize(word string) string {
	if word == "" {
		return ""
	}
	runes := []rune(strings.ToLower(word))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// SnakeKeys rewrites every object key in value to snake_case, recursing
// through nested objects and arrays. Non-container values pass through.
func SnakeKeys(value any) any {
	return convertKeys(value, ToSnakeCase)
}

// CamelKeys is the inverse of SnakeKeys: every object key becomes camelCase.
func CamelKeys(value any) any {
	return convertKeys(value, ToCamelCase)
}

func convertKeys(value any, convert func(string) string) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, entry := range typed {
			out[convert(key)] = convertKeys(entry, convert)
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, entry := range typed {
			out = append(out, convertKeys(entry, convert))
		}
		return out
	default:
		return typed
	}
}
