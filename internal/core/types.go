package core

import "time"

// Activity type discriminators inside a pipeline tree.
const (
	ActivitySubProcess      = "SubProcess"
	ActivityServiceActivity = "ServiceActivity"
)

// Pipeline tree keys touched by the importer.
const (
	keyActivities = "activities"
	keyConstants  = "constants"
	keyType       = "type"
	keyTemplateID = "template_id"
	keySourceInfo = "source_info"
)

// ImportItem is one template definition in an import batch.
type ImportItem struct {
	// ID is the transient id, unique within the batch, used only for
	// cross-referencing between items of the same batch.
	ID string `json:"id"`

	// OverrideTemplateID names a persisted template to overwrite.
	OverrideTemplateID string `json:"override_template_id"`

	// ReferTemplateID names a persisted template to alias without copying.
	ReferTemplateID string `json:"refer_template_id"`

	Name           string         `json:"name"`
	Description    string         `json:"description"`
	PipelineTree   PipelineTree   `json:"pipeline_tree"`
	TemplateKwargs map[string]any `json:"template_kwargs,omitempty"`
}

// Operation returns which persistence operation the item requests.
// Override wins over refer when both are set.
func (it ImportItem) Operation() ImportOperation {
	switch {
	case it.OverrideTemplateID != "":
		return OperationUpdate
	case it.ReferTemplateID != "":
		return OperationRefer
	default:
		return OperationCreate
	}
}

// ImportOperation is the action an import item resolves to.
type ImportOperation string

const (
	OperationCreate ImportOperation = "create"
	OperationUpdate ImportOperation = "update"
	OperationRefer  ImportOperation = "refer"
)

// Template is a persisted pipeline template record.
type Template struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	PipelineTree PipelineTree   `json:"pipeline_tree"`
	Extra        map[string]any `json:"extra,omitempty"`
	Creator      string         `json:"creator"`
	Editor       string         `json:"editor,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// OperationOutcome is the tagged result of one resolver or persistence step.
// Data is nil for failures and for pure references.
type OperationOutcome struct {
	Succeeded      bool      `json:"result"`
	Data           *Template `json:"data"`
	Message        string    `json:"message"`
	VerboseMessage string    `json:"verbose_message"`
}

// ImportResult is the envelope returned by a batch import.
// Succeeded is always true when a result is returned; per-item failures live
// in Data.
type ImportResult struct {
	Succeeded      bool               `json:"result"`
	Data           []OperationOutcome `json:"data"`
	Message        string             `json:"message"`
	VerboseMessage string             `json:"verbose_message"`
}

// Failed returns the number of items whose outcome did not succeed.
func (r *ImportResult) Failed() int {
	n := 0
	for _, o := range r.Data {
		if !o.Succeeded {
			n++
		}
	}
	return n
}

const successMessage = "success"

// Success builds a succeeded outcome carrying tpl.
func Success(tpl *Template) OperationOutcome {
	return OperationOutcome{
		Succeeded:      true,
		Data:           tpl,
		Message:        successMessage,
		VerboseMessage: successMessage,
	}
}

// Failure builds a failed outcome.
func Failure(message, verbose string) OperationOutcome {
	return OperationOutcome{
		Succeeded:      false,
		Message:        message,
		VerboseMessage: verbose,
	}
}

// CreateParams holds the arguments of TemplateManager.Create.
type CreateParams struct {
	Name         string
	Creator      string
	PipelineTree PipelineTree
	Kwargs       map[string]any
	Description  string
}

// UpdateParams holds the arguments of TemplateManager.Update.
type UpdateParams struct {
	Editor       string
	Name         string
	PipelineTree PipelineTree
	Description  string
}
