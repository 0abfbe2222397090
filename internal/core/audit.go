package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/tplimport/internal/logging"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionTemplateCreate AuditAction = "template_create"
	ActionTemplateUpdate AuditAction = "template_update"
	ActionTemplateRefer  AuditAction = "template_refer"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID         string                 `json:"id"`
	Action     AuditAction            `json:"action"`
	Severity   AuditSeverity          `json:"severity"`
	TemplateID string                 `json:"templateId"`
	Operator   string                 `json:"operator"`
	BatchID    string                 `json:"batchId,omitempty"`
	IPAddress  string                 `json:"ipAddress,omitempty"`
	UserAgent  string                 `json:"userAgent,omitempty"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// AuditLogParams contains parameters for creating an audit log entry.
type AuditLogParams struct {
	Action     AuditAction
	TemplateID string
	Operator   string
	BatchID    string
	IPAddress  string
	UserAgent  string
	Detail     map[string]interface{}
}

// Severity returns the severity recorded for the params' action.
func (p AuditLogParams) Severity() AuditSeverity {
	return DetermineSeverity(p.Action)
}

// DetermineSeverity returns the appropriate severity for an action.
// Overwriting an existing template is the only destructive import action.
func DetermineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionTemplateUpdate:
		return SeverityHigh
	case ActionTemplateRefer:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// recordAudit writes an audit entry when mgr supports it. Audit failures are
// store failures and abort the batch like any other write.
func recordAudit(ctx context.Context, mgr TemplateManager, params AuditLogParams) error {
	rec, ok := mgr.(AuditRecorder)
	if !ok {
		return nil
	}
	params.IPAddress = GetIPAddressFromContext(ctx)
	params.UserAgent = GetUserAgentFromContext(ctx)
	params.BatchID = logging.BatchID(ctx)
	return rec.RecordAudit(ctx, params)
}
