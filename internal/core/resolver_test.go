package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subProcess(templateID any) map[string]any {
	return map[string]any{"type": ActivitySubProcess, "template_id": templateID}
}

func TestResolve_EmptyMapLeavesTreeAlone(t *testing.T) {
	tests := []struct {
		name string
		tree PipelineTree
	}{
		{name: "nil tree", tree: nil},
		{name: "no activities", tree: PipelineTree{"constants": map[string]any{}}},
		{name: "dangling subprocess", tree: PipelineTree{
			"activities": map[string]any{"n1": subProcess("missing")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.tree.Clone()

			outcome, err := ResolveSubprocessReferences(tt.tree, IdentifierMap{}, SourceInfoMap{})
			require.NoError(t, err)
			assert.True(t, outcome.Succeeded)
			assert.Equal(t, "pipeline_id_map is empty", outcome.Message)
			assert.Nil(t, outcome.Data)
			assert.Equal(t, before, tt.tree)
		})
	}
}

func TestResolve_NoSubprocessNodes(t *testing.T) {
	tree := PipelineTree{
		"activities": map[string]any{
			"n1": map[string]any{"type": ActivityServiceActivity, "component": map[string]any{"code": "job"}},
		},
	}
	before := tree.Clone()

	outcome, err := ResolveSubprocessReferences(tree, IdentifierMap{"1": "persisted-1"}, SourceInfoMap{})
	require.NoError(t, err)
	assert.True(t, outcome.Succeeded)
	assert.Equal(t, "success", outcome.Message)
	assert.Equal(t, before, tree)
}

func TestResolve_RewritesBoundReference(t *testing.T) {
	tree := PipelineTree{
		"activities": map[string]any{"n1": subProcess("1")},
	}
	ids := IdentifierMap{"1": "persisted-1"}

	outcome, err := ResolveSubprocessReferences(tree, ids, SourceInfoMap{})
	require.NoError(t, err)
	require.True(t, outcome.Succeeded)

	acts, err := tree.Activities()
	require.NoError(t, err)
	assert.Equal(t, "persisted-1", acts["n1"].(map[string]any)["template_id"])

	// The rewritten id is no longer a key of the map, so a second pass
	// reports it and changes nothing.
	resolved := tree.Clone()
	outcome, err = ResolveSubprocessReferences(tree, ids, SourceInfoMap{})
	require.NoError(t, err)
	assert.False(t, outcome.Succeeded)
	assert.Equal(t, resolved, tree)
}

func TestResolve_NumericTemplateID(t *testing.T) {
	tree := PipelineTree{
		"activities": map[string]any{"n1": subProcess(float64(12))},
	}

	outcome, err := ResolveSubprocessReferences(tree, IdentifierMap{"12": "persisted-12"}, SourceInfoMap{})
	require.NoError(t, err)
	require.True(t, outcome.Succeeded)

	acts, _ := tree.Activities()
	assert.Equal(t, "persisted-12", acts["n1"].(map[string]any)["template_id"])
}

func TestResolve_DanglingReferenceRewritesNothing(t *testing.T) {
	tree := PipelineTree{
		"activities": map[string]any{
			"n1": subProcess("1"),
			"n2": subProcess("9"),
		},
	}
	before := tree.Clone()
	ids := IdentifierMap{"1": "persisted-1"}

	outcome, err := ResolveSubprocessReferences(tree, ids, SourceInfoMap{})
	require.NoError(t, err)
	assert.False(t, outcome.Succeeded)
	assert.Nil(t, outcome.Data)
	assert.Equal(t, "can not find 9 in pipeline_id_map", outcome.Message)
	assert.Contains(t, outcome.VerboseMessage, "can not find 9 in pipeline_id_map: ")
	assert.Contains(t, outcome.VerboseMessage, "persisted-1")
	assert.Equal(t, before, tree)
}

func TestResolve_OverwritesSourceInfo(t *testing.T) {
	tree := PipelineTree{
		"activities": map[string]any{
			"n1": map[string]any{
				"type":        ActivitySubProcess,
				"template_id": "2",
				"constants": map[string]any{
					"${ip}":   map[string]any{"value": "1.1.1.1", "source_info": map[string]any{"stale": true}},
					"${user}": map[string]any{"value": "root"},
				},
			},
		},
	}
	info := map[string]any{"node_a": []any{"ip"}}
	sourceInfo := SourceInfoMap{"2": {"${ip}": info}}

	outcome, err := ResolveSubprocessReferences(tree, IdentifierMap{"2": "persisted-1"}, sourceInfo)
	require.NoError(t, err)
	require.True(t, outcome.Succeeded)

	acts, _ := tree.Activities()
	node := acts["n1"].(map[string]any)
	constants := node["constants"].(map[string]any)

	assert.Equal(t, "persisted-1", node["template_id"])
	assert.Equal(t, info, constants["${ip}"].(map[string]any)["source_info"])
	assert.Equal(t, map[string]any{}, constants["${user}"].(map[string]any)["source_info"])

	// The copied source_info must not alias the map entry.
	constants["${ip}"].(map[string]any)["source_info"].(map[string]any)["node_a"] = "changed"
	assert.Equal(t, []any{"ip"}, info["node_a"])
}

func TestResolve_SourceInfoOnlyForReferencedItems(t *testing.T) {
	tree := PipelineTree{
		"activities": map[string]any{
			"n1": map[string]any{
				"type":        ActivitySubProcess,
				"template_id": "1",
				"constants":   map[string]any{"${a}": map[string]any{"source_info": map[string]any{"keep": true}}},
			},
		},
	}

	_, err := ResolveSubprocessReferences(tree, IdentifierMap{"1": "p1"}, SourceInfoMap{"2": {}})
	require.NoError(t, err)

	acts, _ := tree.Activities()
	constants := acts["n1"].(map[string]any)["constants"].(map[string]any)
	assert.Equal(t, map[string]any{"keep": true}, constants["${a}"].(map[string]any)["source_info"])
}

func TestResolve_MalformedTree(t *testing.T) {
	ids := IdentifierMap{"1": "p1"}
	tests := []struct {
		name       string
		tree       PipelineTree
		sourceInfo SourceInfoMap
	}{
		{name: "nil tree", tree: nil},
		{name: "missing activities", tree: PipelineTree{}},
		{name: "activities not an object", tree: PipelineTree{"activities": []any{}}},
		{name: "activity not an object", tree: PipelineTree{"activities": map[string]any{"n1": "x"}}},
		{name: "activity without type", tree: PipelineTree{"activities": map[string]any{"n1": map[string]any{}}}},
		{name: "subprocess without template_id", tree: PipelineTree{
			"activities": map[string]any{"n1": map[string]any{"type": ActivitySubProcess}},
		}},
		{name: "fractional template_id", tree: PipelineTree{
			"activities": map[string]any{"n1": subProcess(1.5)},
		}},
		{
			name: "constant not an object",
			tree: PipelineTree{"activities": map[string]any{"n1": map[string]any{
				"type": ActivitySubProcess, "template_id": "1",
				"constants": map[string]any{"${a}": "x"},
			}}},
			sourceInfo: SourceInfoMap{"1": {}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveSubprocessReferences(tt.tree, ids, tt.sourceInfo)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedTree), "got %v", err)
		})
	}
}

func TestCollectSourceInfo(t *testing.T) {
	t.Run("no constants", func(t *testing.T) {
		infos, err := collectSourceInfo(&Template{ID: "p1", PipelineTree: PipelineTree{"activities": map[string]any{}}})
		require.NoError(t, err)
		assert.Nil(t, infos)
	})

	t.Run("defaults missing source_info", func(t *testing.T) {
		infos, err := collectSourceInfo(&Template{ID: "p1", PipelineTree: PipelineTree{
			"constants": map[string]any{
				"${a}": map[string]any{"source_info": map[string]any{"n": []any{"f"}}},
				"${b}": map[string]any{"value": 1.0},
			},
		}})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"${a}": map[string]any{"n": []any{"f"}},
			"${b}": map[string]any{},
		}, infos)
	})

	t.Run("malformed constant", func(t *testing.T) {
		_, err := collectSourceInfo(&Template{ID: "p1", PipelineTree: PipelineTree{
			"constants": map[string]any{"${a}": 3.0},
		}})
		assert.True(t, errors.Is(err, ErrMalformedTree))
	})
}
