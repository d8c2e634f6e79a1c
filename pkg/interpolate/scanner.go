package interpolate

import (
	"fmt"
	"strconv"
	"strings"
)

// segment is one piece of a scanned template: either literal text or a parsed
// placeholder.
type segment struct {
	literal     string
	placeholder *placeholder
}

// placeholder is a parsed {{ path | filter }} expression. Holding at most one
// filter makes single-filter-only a structural guarantee.
type placeholder struct {
	raw    string
	path   []pathSegment
	filter *filterExpr
}

// pathSegment is one dot-separated element of a path. Indexed segments carry
// the [N] suffix, e.g. items[0].
type pathSegment struct {
	key     string
	index   int
	indexed bool
}

type filterExpr struct {
	name string
	arg  string
}

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// scan splits a template into literal and placeholder segments. Text with an
// unterminated opening delimiter is kept as literal, matching how the engine
// treats any text that is not a complete placeholder.
func scan(input string) ([]segment, error) {
	var segments []segment

	for len(input) > 0 {
		start := strings.Index(input, openDelim)
		if start < 0 {
			segments = append(segments, segment{literal: input})

			break
		}

		end := strings.Index(input[start:], closeDelim)
		if end < 0 {
			segments = append(segments, segment{literal: input})

			break
		}

		if start > 0 {
			segments = append(segments, segment{literal: input[:start]})
		}

		inner := input[start+len(openDelim) : start+end]

		ph, err := parsePlaceholder(inner)
		if err != nil {
			return nil, err
		}

		segments = append(segments, segment{placeholder: ph})
		input = input[start+end+len(closeDelim):]
	}

	return segments, nil
}

// parsePlaceholder parses the interior of a {{...}} expression: a dot path and
// at most one optional filter.
func parsePlaceholder(inner string) (*placeholder, error) {
	pathExpr := inner

	var filter *filterExpr

	if pipe := strings.Index(inner, "|"); pipe >= 0 {
		pathExpr = inner[:pipe]
		filterText := strings.TrimSpace(inner[pipe+1:])

		if strings.Contains(filterText, "|") {
			return nil, &Error{Path: strings.TrimSpace(pathExpr), Message: "only one filter is supported"}
		}

		parsed, err := parseFilter(filterText, strings.TrimSpace(pathExpr))
		if err != nil {
			return nil, err
		}

		filter = parsed
	}

	pathExpr = strings.TrimSpace(pathExpr)
	if pathExpr == "" {
		return nil, &Error{Path: pathExpr, Message: "empty placeholder path"}
	}

	path, err := parsePath(pathExpr)
	if err != nil {
		return nil, err
	}

	return &placeholder{raw: pathExpr, path: path, filter: filter}, nil
}

func parsePath(pathExpr string) ([]pathSegment, error) {
	parts := strings.Split(pathExpr, ".")
	path := make([]pathSegment, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			return nil, &Error{Path: pathExpr, Message: "empty path segment"}
		}

		path = append(path, parsePathSegment(part))
	}

	return path, nil
}

// parsePathSegment recognizes a trailing well-formed [N] index. Anything else
// is treated as a plain key.
func parsePathSegment(part string) pathSegment {
	if !strings.HasSuffix(part, "]") {
		return pathSegment{key: part}
	}

	open := strings.LastIndex(part, "[")
	if open <= 0 {
		return pathSegment{key: part}
	}

	index, err := strconv.Atoi(part[open+1 : len(part)-1])
	if err != nil || index < 0 {
		return pathSegment{key: part}
	}

	return pathSegment{key: part[:open], index: index, indexed: true}
}

func parseFilter(filterText, path string) (*filterExpr, error) {
	if filterText == "" {
		return nil, &Error{Path: path, Message: "empty filter expression"}
	}

	if arg, ok := parseDefaultArg(filterText); ok {
		return &filterExpr{name: filterDefault, arg: arg}, nil
	}

	switch filterText {
	case filterUpper, filterLower, filterString, filterJSON:
		return &filterExpr{name: filterText}, nil
	default:
		return nil, &Error{Path: path, Message: fmt.Sprintf("unknown filter: %s", filterText)}
	}
}

// parseDefaultArg extracts the quoted literal from default('...') or
// default("..."). Returns false for anything that is not a well-formed default
// expression.
func parseDefaultArg(filterText string) (string, bool) {
	if !strings.HasPrefix(filterText, filterDefault+"(") || !strings.HasSuffix(filterText, ")") {
		return "", false
	}

	arg := filterText[len(filterDefault)+1 : len(filterText)-1]
	if len(arg) < 2 {
		return "", false
	}

	quote := arg[0]
	if (quote != '\'' && quote != '"') || arg[len(arg)-1] != quote {
		return "", false
	}

	return arg[1 : len(arg)-1], true
}
