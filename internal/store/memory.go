// Package store implements core.Store on top of Postgres and in memory.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/tplimport/internal/core"
	"github.com/google/uuid"
)

// Memory keeps templates in process memory. RunAtomic snapshots the state
// before a batch and restores it when the batch fails or panics, and
// batches are serialized. Used by tests and the CLI dry-run mode.
type Memory struct {
	mu        sync.Mutex
	templates map[string]*core.Template
	audit     []core.AuditEntry
	now       func() time.Time
	newID     func() string
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithIDGenerator makes the store assign template ids from fn.
func WithIDGenerator(fn func() string) MemoryOption {
	return func(m *Memory) { m.newID = fn }
}

// WithClock makes the store read timestamps from now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory returns an empty Memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		templates: make(map[string]*core.Template),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed stores tpl as if it had been imported earlier, assigning an id when
// tpl has none, and returns the stored copy.
func (m *Memory) Seed(tpl core.Template) *core.Template {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tpl.ID == "" {
		tpl.ID = m.newID()
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = m.now()
		tpl.UpdatedAt = tpl.CreatedAt
	}
	stored := cloneTemplate(&tpl)
	m.templates[tpl.ID] = stored
	return cloneTemplate(stored)
}

// Len returns the number of stored templates.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.templates)
}

// AuditEntries returns a copy of the recorded audit trail.
func (m *Memory) AuditEntries() []core.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.AuditEntry(nil), m.audit...)
}

// RunAtomic implements core.TransactionScope.
func (m *Memory) RunAtomic(ctx context.Context, fn func(ctx context.Context, mgr core.TemplateManager) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	templates := make(map[string]*core.Template, len(m.templates))
	for id, tpl := range m.templates {
		templates[id] = cloneTemplate(tpl)
	}
	audit := len(m.audit)

	// Restore on error and on panic alike; only a clean return commits.
	committed := false
	defer func() {
		if !committed {
			m.templates = templates
			m.audit = m.audit[:audit]
		}
	}()

	if err := fn(ctx, &memoryManager{m: m}); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetTemplate implements core.TemplateReader.
func (m *Memory) GetTemplate(ctx context.Context, id string) (*core.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

// ListTemplates implements core.TemplateReader.
func (m *Memory) ListTemplates(ctx context.Context, limit, offset int) ([]core.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*core.Template, 0, len(m.templates))
	for _, tpl := range m.templates {
		all = append(all, tpl)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return []core.Template{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]core.Template, len(all))
	for i, tpl := range all {
		out[i] = *cloneTemplate(tpl)
	}
	return out, nil
}

func (m *Memory) get(id string) (*core.Template, error) {
	tpl, ok := m.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	return cloneTemplate(tpl), nil
}

// memoryManager is the TemplateManager handed to a running batch. The
// Memory lock is held by RunAtomic for its whole lifetime.
type memoryManager struct {
	m *Memory
}

func (mm *memoryManager) Get(ctx context.Context, id string) (*core.Template, error) {
	return mm.m.get(id)
}

func (mm *memoryManager) Create(ctx context.Context, params core.CreateParams) (core.OperationOutcome, error) {
	if outcome, invalid := core.ValidateTemplateName(params.Name); invalid {
		return outcome, nil
	}

	now := mm.m.now()
	tpl := &core.Template{
		ID:           mm.m.newID(),
		Name:         params.Name,
		Description:  params.Description,
		PipelineTree: params.PipelineTree.Clone(),
		Extra:        cloneMap(params.Kwargs),
		Creator:      params.Creator,
		Editor:       params.Creator,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	mm.m.templates[tpl.ID] = tpl
	return core.Success(cloneTemplate(tpl)), nil
}

func (mm *memoryManager) Update(ctx context.Context, target *core.Template, params core.UpdateParams) (core.OperationOutcome, error) {
	if outcome, invalid := core.ValidateTemplateName(params.Name); invalid {
		return outcome, nil
	}

	tpl, ok := mm.m.templates[target.ID]
	if !ok {
		return core.OperationOutcome{}, fmt.Errorf("update: %w: %s", core.ErrTemplateNotFound, target.ID)
	}
	tpl.Name = params.Name
	tpl.Description = params.Description
	tpl.PipelineTree = params.PipelineTree.Clone()
	tpl.Editor = params.Editor
	tpl.UpdatedAt = mm.m.now()
	return core.Success(cloneTemplate(tpl)), nil
}

func (mm *memoryManager) RecordAudit(ctx context.Context, params core.AuditLogParams) error {
	mm.m.audit = append(mm.m.audit, core.AuditEntry{
		ID:         uuid.NewString(),
		Action:     params.Action,
		Severity:   params.Severity(),
		TemplateID: params.TemplateID,
		Operator:   params.Operator,
		BatchID:    params.BatchID,
		IPAddress:  params.IPAddress,
		UserAgent:  params.UserAgent,
		Detail:     params.Detail,
		CreatedAt:  mm.m.now(),
	})
	return nil
}

func cloneTemplate(tpl *core.Template) *core.Template {
	out := *tpl
	out.PipelineTree = tpl.PipelineTree.Clone()
	out.Extra = cloneMap(tpl.Extra)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return map[string]any(core.PipelineTree(m).Clone())
}
