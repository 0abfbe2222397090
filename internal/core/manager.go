package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrTemplateNotFound is returned by TemplateManager.Get for unknown ids.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateNameMaxLength bounds template names accepted by the managers.
const TemplateNameMaxLength = 128

// TemplateManager is the persistence capability the importer works through.
//
// Validation problems are reported as a failed OperationOutcome. A non-nil
// error means the store itself failed and aborts the surrounding batch.
type TemplateManager interface {
	Get(ctx context.Context, id string) (*Template, error)
	Create(ctx context.Context, params CreateParams) (OperationOutcome, error)
	Update(ctx context.Context, tpl *Template, params UpdateParams) (OperationOutcome, error)
}

// TransactionScope runs fn against a manager whose writes commit together.
// If fn returns an error every write made through the manager is discarded
// and the error is returned.
type TransactionScope interface {
	RunAtomic(ctx context.Context, fn func(ctx context.Context, mgr TemplateManager) error) error
}

// TemplateReader exposes read access outside of an import batch.
type TemplateReader interface {
	GetTemplate(ctx context.Context, id string) (*Template, error)
	ListTemplates(ctx context.Context, limit, offset int) ([]Template, error)
}

// Store is what Service needs from a persistence backend.
type Store interface {
	TransactionScope
	TemplateReader
}

// AuditRecorder is implemented by managers that can record audit entries in
// the same transaction as their writes.
type AuditRecorder interface {
	RecordAudit(ctx context.Context, params AuditLogParams) error
}

// ValidateTemplateName returns a failed outcome when name cannot be stored.
// The second return value is false when name is acceptable.
func ValidateTemplateName(name string) (OperationOutcome, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Failure("template name is required", "template name is required"), true
	}
	if n := utf8.RuneCountInString(trimmed); n > TemplateNameMaxLength {
		msg := fmt.Sprintf("template name is too long (%d > %d characters)", n, TemplateNameMaxLength)
		return Failure(msg, msg), true
	}
	return OperationOutcome{}, false
}
