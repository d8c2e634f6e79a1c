// Package interpolate resolves {{path.to.value}} placeholders against a
// run-time execution context. Templates may be strings, maps, or slices;
// containers are processed recursively. The engine is pure: no state, no side
// effects, deterministic for a fixed (template, context) pair.
//
// Supported placeholder forms:
//
//	{{trigger.title}}
//	{{steps.fetch.output.items[0].name}}
//	{{trigger.title | upper}}
//	{{trigger.author | default('unknown')}}
package interpolate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Error reports a placeholder that could not be resolved. Path is the original
// dot path from the template.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("interpolation error for '%s': %s", e.Path, e.Message)
}

const (
	filterUpper   = "upper"
	filterLower   = "lower"
	filterString  = "string"
	filterJSON    = "json"
	filterDefault = "default"
)

// Interpolate resolves every placeholder in the template against the context.
// Strings are scanned for placeholders; maps and slices are rebuilt with every
// string leaf interpolated; any other value passes through unchanged.
func Interpolate(template any, context map[string]any) (any, error) {
	switch tpl := template.(type) {
	case string:
		return interpolateString(tpl, context)
	case map[string]any:
		out := make(map[string]any, len(tpl))

		for key, value := range tpl {
			resolved, err := Interpolate(value, context)
			if err != nil {
				return nil, err
			}

			out[key] = resolved
		}

		return out, nil
	case []any:
		out := make([]any, len(tpl))

		for i, item := range tpl {
			resolved, err := Interpolate(item, context)
			if err != nil {
				return nil, err
			}

			out[i] = resolved
		}

		return out, nil
	default:
		return template, nil
	}
}

// String resolves placeholders in a single string template.
func String(template string, context map[string]any) (string, error) {
	return interpolateString(template, context)
}

// Check verifies placeholder syntax without resolving anything: every string
// leaf must scan cleanly. Used to validate stored step configs before a
// workflow ever runs.
func Check(template any) error {
	switch tpl := template.(type) {
	case string:
		_, err := scan(tpl)

		return err
	case map[string]any:
		for _, value := range tpl {
			if err := Check(value); err != nil {
				return err
			}
		}

		return nil
	case []any:
		for _, item := range tpl {
			if err := Check(item); err != nil {
				return err
			}
		}

		return nil
	default:
		return nil
	}
}

func interpolateString(template string, context map[string]any) (string, error) {
	segments, err := scan(template)
	if err != nil {
		return "", err
	}

	var out strings.Builder

	for _, seg := range segments {
		if seg.placeholder == nil {
			out.WriteString(seg.literal)

			continue
		}

		value, err := resolvePlaceholder(seg.placeholder, context)
		if err != nil {
			return "", err
		}

		out.WriteString(embed(value))
	}

	return out.String(), nil
}

func resolvePlaceholder(ph *placeholder, context map[string]any) (any, error) {
	value, err := resolvePath(ph, context)
	if err != nil {
		return nil, err
	}

	if ph.filter != nil {
		return applyFilter(value, ph.filter, ph.raw)
	}

	return value, nil
}

// resolvePath walks the dot path left to right. Any mismatch or missing key
// fails; there are no silent defaults.
func resolvePath(ph *placeholder, context map[string]any) (any, error) {
	var current any = context

	for _, seg := range ph.path {
		if current == nil {
			return nil, &Error{Path: ph.raw, Message: fmt.Sprintf("cannot access '%s' on null", seg.key)}
		}

		value, err := lookupKey(current, seg.key, ph.raw)
		if err != nil {
			return nil, err
		}

		current = value

		if seg.indexed {
			indexed, err := lookupIndex(current, seg.index, ph.raw)
			if err != nil {
				return nil, err
			}

			current = indexed
		}
	}

	return current, nil
}

func lookupKey(current any, key, path string) (any, error) {
	switch container := current.(type) {
	case map[string]any:
		value, ok := container[key]
		if !ok {
			return nil, &Error{Path: path, Message: fmt.Sprintf("key '%s' not found", key)}
		}

		return value, nil
	case map[string]string:
		value, ok := container[key]
		if !ok {
			return nil, &Error{Path: path, Message: fmt.Sprintf("key '%s' not found", key)}
		}

		return value, nil
	case []any, []string:
		return nil, &Error{Path: path, Message: fmt.Sprintf("cannot access key '%s' on list", key)}
	default:
		return nil, &Error{Path: path, Message: fmt.Sprintf("cannot access '%s' on %T", key, current)}
	}
}

func lookupIndex(current any, index int, path string) (any, error) {
	switch list := current.(type) {
	case []any:
		if index >= len(list) {
			return nil, &Error{Path: path, Message: fmt.Sprintf("index %d out of range (length %d)", index, len(list))}
		}

		return list[index], nil
	case []string:
		if index >= len(list) {
			return nil, &Error{Path: path, Message: fmt.Sprintf("index %d out of range (length %d)", index, len(list))}
		}

		return list[index], nil
	default:
		return nil, &Error{Path: path, Message: fmt.Sprintf("expected list for index [%d], got %T", index, current)}
	}
}

func applyFilter(value any, filter *filterExpr, path string) (any, error) {
	switch filter.name {
	case filterDefault:
		if value == nil {
			return filter.arg, nil
		}

		return value, nil
	case filterUpper:
		str, ok := value.(string)
		if !ok {
			return nil, &Error{Path: path, Message: fmt.Sprintf("filter 'upper' requires string, got %T", value)}
		}

		return strings.ToUpper(str), nil
	case filterLower:
		str, ok := value.(string)
		if !ok {
			return nil, &Error{Path: path, Message: fmt.Sprintf("filter 'lower' requires string, got %T", value)}
		}

		return strings.ToLower(str), nil
	case filterString:
		if value == nil {
			return "", nil
		}

		return embed(value), nil
	case filterJSON:
		return value, nil
	default:
		return nil, &Error{Path: path, Message: fmt.Sprintf("unknown filter: %s", filter.name)}
	}
}

// embed converts a resolved value into its string embedding: null becomes
// empty, booleans lowercase, containers compact JSON, everything else the
// native string conversion.
func embed(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}

		return "false"
	case map[string]any, []any, map[string]string, []string:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
