package core

import "fmt"

// IdentifierMap maps transient item ids to persisted template ids.
type IdentifierMap map[string]string

// SourceInfoMap maps a transient item id to the source_info of each constant
// of the template that item refers to.
type SourceInfoMap map[string]map[string]any

// ResolveSubprocessReferences rewrites every SubProcess node of tree so its
// template_id points at the persisted id bound in ids. The tree is mutated in
// place.
//
// A reference to a transient id that is not bound yet yields a failure
// outcome and leaves the tree untouched. Structural problems in the tree are
// returned as errors wrapping ErrMalformedTree.
func ResolveSubprocessReferences(tree PipelineTree, ids IdentifierMap, sourceInfo SourceInfoMap) (OperationOutcome, error) {
	if len(ids) == 0 {
		return OperationOutcome{
			Succeeded:      true,
			Message:        "pipeline_id_map is empty",
			VerboseMessage: "pipeline_id_map is empty",
		}, nil
	}

	nodes, err := tree.subProcessNodes()
	if err != nil {
		return OperationOutcome{}, err
	}

	// Check every reference before touching any node.
	constants := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		if _, ok := ids[n.templateID]; !ok {
			return Failure(
				fmt.Sprintf("can not find %s in pipeline_id_map", n.templateID),
				fmt.Sprintf("can not find %s in pipeline_id_map: %v", n.templateID, map[string]string(ids)),
			), nil
		}
		if _, ok := sourceInfo[n.templateID]; !ok {
			continue
		}
		c, _, err := optionalObject(n.node, keyConstants)
		if err != nil {
			return OperationOutcome{}, fmt.Errorf("activity %q: %w", n.nodeID, err)
		}
		for name, def := range c {
			if _, ok := asObject(def); !ok {
				return OperationOutcome{}, fmt.Errorf("%w: activity %q constant %q is not an object", ErrMalformedTree, n.nodeID, name)
			}
		}
		constants[i] = c
	}

	for i, n := range nodes {
		n.node[keyTemplateID] = ids[n.templateID]

		infos, ok := sourceInfo[n.templateID]
		if !ok {
			continue
		}
		for name, def := range constants[i] {
			constant, _ := asObject(def)
			info, ok := infos[name]
			if !ok || info == nil {
				info = map[string]any{}
			}
			constant[keySourceInfo] = cloneValue(info)
		}
	}

	return Success(nil), nil
}

// collectSourceInfo returns the source_info of every top-level constant of a
// referenced template, defaulting to an empty object. It returns nil when
// the template has no constants.
func collectSourceInfo(tpl *Template) (map[string]any, error) {
	constants, err := tpl.PipelineTree.Constants()
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", tpl.ID, err)
	}
	if len(constants) == 0 {
		return nil, nil
	}

	infos := make(map[string]any, len(constants))
	for name, def := range constants {
		constant, ok := asObject(def)
		if !ok {
			return nil, fmt.Errorf("%w: template %s constant %q is not an object", ErrMalformedTree, tpl.ID, name)
		}
		info, ok := constant[keySourceInfo]
		if !ok || info == nil {
			info = map[string]any{}
		}
		infos[name] = cloneValue(info)
	}
	return infos, nil
}
