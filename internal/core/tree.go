package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrMalformedTree is wrapped by every structural error found while walking
// a pipeline tree.
var ErrMalformedTree = errors.New("malformed pipeline tree")

// PipelineTree is the JSON document describing a template's activities,
// constants and flows. Only the parts the importer rewrites are typed; the
// rest is carried through untouched.
type PipelineTree map[string]any

// Activities returns the tree's activity nodes keyed by node id.
func (t PipelineTree) Activities() (map[string]any, error) {
	return requireObject(map[string]any(t), keyActivities)
}

// Constants returns the tree's top-level constant definitions.
// A tree without constants yields an empty map.
func (t PipelineTree) Constants() (map[string]any, error) {
	c, _, err := optionalObject(map[string]any(t), keyConstants)
	return c, err
}

// Clone returns a deep copy of the tree.
func (t PipelineTree) Clone() PipelineTree {
	if t == nil {
		return nil
	}
	return PipelineTree(cloneObject(map[string]any(t)))
}

// subProcessNode is a SubProcess activity seen during resolution.
type subProcessNode struct {
	nodeID     string
	node       map[string]any
	templateID string
}

// subProcessNodes returns the SubProcess activities of the tree in node id
// order.
func (t PipelineTree) subProcessNodes() ([]subProcessNode, error) {
	acts, err := t.Activities()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(acts))
	for id := range acts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var nodes []subProcessNode
	for _, id := range ids {
		node, ok := asObject(acts[id])
		if !ok {
			return nil, fmt.Errorf("%w: activity %q is not an object", ErrMalformedTree, id)
		}
		typ, ok := node[keyType].(string)
		if !ok {
			return nil, fmt.Errorf("%w: activity %q has no type", ErrMalformedTree, id)
		}
		if typ != ActivitySubProcess {
			continue
		}
		tplID, err := templateIDString(node[keyTemplateID])
		if err != nil {
			return nil, fmt.Errorf("%w: activity %q: %v", ErrMalformedTree, id, err)
		}
		nodes = append(nodes, subProcessNode{nodeID: id, node: node, templateID: tplID})
	}
	return nodes, nil
}

// templateIDString normalizes a SubProcess template_id. Numeric ids coming
// from JSON are accepted and rendered without a fractional part.
func templateIDString(v any) (string, error) {
	switch id := v.(type) {
	case string:
		return id, nil
	case json.Number:
		return id.String(), nil
	case float64:
		if id == float64(int64(id)) {
			return fmt.Sprintf("%d", int64(id)), nil
		}
		return "", fmt.Errorf("template_id %v is not an integer", id)
	case int:
		return fmt.Sprintf("%d", id), nil
	case int64:
		return fmt.Sprintf("%d", id), nil
	case nil:
		return "", errors.New("missing template_id")
	default:
		return "", fmt.Errorf("template_id has unsupported type %T", v)
	}
}

// asObject accepts both plain JSON objects and PipelineTree values.
func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case PipelineTree:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

func requireObject(parent map[string]any, key string) (map[string]any, error) {
	obj, found, err := optionalObject(parent, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedTree, key)
	}
	return obj, nil
}

func optionalObject(parent map[string]any, key string) (map[string]any, bool, error) {
	raw, ok := parent[key]
	if !ok || raw == nil {
		return map[string]any{}, false, nil
	}
	obj, ok := asObject(raw)
	if !ok {
		return nil, false, fmt.Errorf("%w: %q is %T, want object", ErrMalformedTree, key, raw)
	}
	return obj, true, nil
}

// cloneValue deep-copies JSON-shaped values so rewritten source_info never
// aliases another template's tree.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneObject(x)
	case PipelineTree:
		return cloneObject(map[string]any(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}
