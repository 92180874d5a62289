// Package fieldpath resolves dot/bracket field paths against dynamic records.
// It walks plain maps and slices only; no reflection is involved.
package fieldpath

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldPart represents a single step of a field path.
type FieldPart struct {
	Type  string // "field", "array_index", "map_key"
	Name  string // field name (when Type is "field")
	Index int    // array index (when Type is "array_index")
	Key   string // map key (when Type is "map_key")
}

// Parse parses a field path into its parts.
// Supported formats:
//   - a.b.c (nested fields)
//   - a.b[0] (array index, negative counts from the end)
//   - a.b[0].c (field of array element)
//   - a.b["key"] / a.b['key'] (string key)
//   - a[0].b[1].c["key"] (mixed access)
func Parse(path string) ([]FieldPart, error) {
	if path == "" {
		return nil, fmt.Errorf("empty field path")
	}

	var parts []FieldPart
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			continue
		}
		if !strings.Contains(seg, "[") {
			parts = append(parts, FieldPart{Type: "field", Name: seg})
			continue
		}

		bracket := strings.Index(seg, "[")
		if name := seg[:bracket]; name != "" {
			parts = append(parts, FieldPart{Type: "field", Name: name})
		}
		rest := seg[bracket:]
		for len(rest) > 0 {
			if rest[0] != '[' {
				return nil, fmt.Errorf("invalid field path segment: %s", seg)
			}
			end := strings.Index(rest, "]")
			if end == -1 {
				return nil, fmt.Errorf("unclosed bracket in field path: %s", seg)
			}
			inner := rest[1:end]
			switch {
			case len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0]:
				parts = append(parts, FieldPart{Type: "map_key", Key: inner[1 : len(inner)-1]})
			default:
				idx, err := strconv.Atoi(inner)
				if err != nil {
					return nil, fmt.Errorf("invalid index %q in field path: %s", inner, seg)
				}
				parts = append(parts, FieldPart{Type: "array_index", Index: idx})
			}
			rest = rest[end+1:]
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty field path")
	}
	return parts, nil
}

// Get resolves a field path against a dynamic record. The second return
// value reports whether the full path resolved.
func Get(data map[string]interface{}, path string) (interface{}, bool) {
	parts, err := Parse(path)
	if err != nil {
		return nil, false
	}
	return GetParts(data, parts)
}

// GetParts resolves a pre-parsed field path against a dynamic record.
func GetParts(data map[string]interface{}, parts []FieldPart) (interface{}, bool) {
	var cur interface{} = data
	for _, part := range parts {
		switch part.Type {
		case "field":
			m, ok := cur.(map[string]interface{})
			if !ok {
				return nil, false
			}
			cur, ok = m[part.Name]
			if !ok {
				return nil, false
			}
		case "map_key":
			m, ok := cur.(map[string]interface{})
			if !ok {
				return nil, false
			}
			cur, ok = m[part.Key]
			if !ok {
				return nil, false
			}
		case "array_index":
			arr, ok := cur.([]interface{})
			if !ok {
				return nil, false
			}
			idx := part.Index
			if idx < 0 {
				idx += len(arr)
			}
			if idx < 0 || idx >= len(arr) {
				return nil, false
			}
			cur = arr[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}
