package core

import (
	"encoding/json"
	"strings"
)

// BizIDReplacer substitutes a business id into a pipeline tree in place.
type BizIDReplacer func(tree PipelineTree, bizID int64)

// ReplaceBizID points the business-scoped parts of tree at bizID:
//
//   - ServiceActivity nodes whose component data has an unhooked biz_cc_id
//     (or bk_biz_id) field get that field's value replaced.
//   - Top-level constants whose source_tag ends in ".biz_cc_id" or
//     ".bk_biz_id" and that carry a non-empty value get the value replaced.
//
// Parts of the tree that do not have the expected shape are left alone.
func ReplaceBizID(tree PipelineTree, bizID int64) {
	if acts, err := tree.Activities(); err == nil {
		for _, raw := range acts {
			act, ok := asObject(raw)
			if !ok || act[keyType] != ActivityServiceActivity {
				continue
			}
			component, ok := asObject(act["component"])
			if !ok {
				continue
			}
			data, ok := asObject(component["data"])
			if !ok {
				continue
			}
			field, ok := bizIDField(data)
			if !ok {
				continue
			}
			if hooked, _ := field["hook"].(bool); hooked {
				continue
			}
			field["value"] = bizID
		}
	}

	constants, err := tree.Constants()
	if err != nil {
		return
	}
	for _, raw := range constants {
		constant, ok := asObject(raw)
		if !ok {
			continue
		}
		tag, _ := constant["source_tag"].(string)
		if !strings.HasSuffix(tag, ".biz_cc_id") && !strings.HasSuffix(tag, ".bk_biz_id") {
			continue
		}
		if isEmptyValue(constant["value"]) {
			continue
		}
		constant["value"] = bizID
	}
}

func bizIDField(data map[string]any) (map[string]any, bool) {
	for _, key := range []string{"biz_cc_id", "bk_biz_id"} {
		if field, ok := asObject(data[key]); ok && len(field) > 0 {
			return field, true
		}
	}
	return nil, false
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	case float64:
		return x == 0
	case int:
		return x == 0
	case int64:
		return x == 0
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	default:
		return false
	}
}
