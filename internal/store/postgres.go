package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/tplimport/internal/core"
	db "github.com/JonMunkholm/tplimport/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores templates in PostgreSQL. Each batch runs in one
// transaction and every write inside it runs under its own savepoint, so a
// rejected write fails only its item.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a store on pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// RunAtomic implements core.TransactionScope.
func (p *Postgres) RunAtomic(ctx context.Context, fn func(ctx context.Context, mgr core.TemplateManager) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	mgr := &pgManager{tx: tx, q: db.New(tx)}
	if err := fn(ctx, mgr); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetTemplate implements core.TemplateReader.
func (p *Postgres) GetTemplate(ctx context.Context, id string) (*core.Template, error) {
	return getTemplate(ctx, db.New(p.pool), id)
}

// ListTemplates implements core.TemplateReader.
func (p *Postgres) ListTemplates(ctx context.Context, limit, offset int) ([]core.Template, error) {
	rows, err := db.New(p.pool).ListTemplates(ctx, db.ListTemplatesParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	templates := make([]core.Template, 0, len(rows))
	for _, r := range rows {
		t, err := dbTemplateToTemplate(r)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, nil
}

func getTemplate(ctx context.Context, q *db.Queries, id string) (*core.Template, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		// Not a persisted id, so no such template.
		return nil, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}

	row, err := q.GetTemplate(ctx, pgtype.UUID{Bytes: uid, Valid: true})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return dbTemplateToTemplate(row)
}

// pgManager is the TemplateManager bound to one batch transaction.
type pgManager struct {
	tx pgx.Tx
	q  *db.Queries
	sp int
}

func (m *pgManager) Get(ctx context.Context, id string) (*core.Template, error) {
	return getTemplate(ctx, m.q, id)
}

func (m *pgManager) Create(ctx context.Context, params core.CreateParams) (core.OperationOutcome, error) {
	if outcome, invalid := core.ValidateTemplateName(params.Name); invalid {
		return outcome, nil
	}

	tree, err := json.Marshal(params.PipelineTree)
	if err != nil {
		return core.OperationOutcome{}, fmt.Errorf("marshal pipeline tree: %w", err)
	}
	extra, err := json.Marshal(nonNilMap(params.Kwargs))
	if err != nil {
		return core.OperationOutcome{}, fmt.Errorf("marshal template kwargs: %w", err)
	}

	var row db.PipelineTemplate
	rejected, err := m.savepoint(ctx, func() error {
		var err error
		row, err = m.q.CreateTemplate(ctx, db.CreateTemplateParams{
			ID:           pgtype.UUID{Bytes: uuid.New(), Valid: true},
			Name:         params.Name,
			Description:  params.Description,
			PipelineTree: tree,
			Extra:        extra,
			Creator:      params.Creator,
		})
		return err
	})
	if err != nil {
		return core.OperationOutcome{}, fmt.Errorf("create template: %w", err)
	}
	if rejected != nil {
		return core.Failure("create template failed", rejected.Error()), nil
	}

	tpl, err := dbTemplateToTemplate(row)
	if err != nil {
		return core.OperationOutcome{}, err
	}
	return core.Success(tpl), nil
}

func (m *pgManager) Update(ctx context.Context, target *core.Template, params core.UpdateParams) (core.OperationOutcome, error) {
	if outcome, invalid := core.ValidateTemplateName(params.Name); invalid {
		return outcome, nil
	}

	uid, err := uuid.Parse(target.ID)
	if err != nil {
		return core.OperationOutcome{}, fmt.Errorf("update template: invalid id %q: %w", target.ID, err)
	}
	tree, err := json.Marshal(params.PipelineTree)
	if err != nil {
		return core.OperationOutcome{}, fmt.Errorf("marshal pipeline tree: %w", err)
	}

	var row db.PipelineTemplate
	rejected, err := m.savepoint(ctx, func() error {
		var err error
		row, err = m.q.UpdateTemplate(ctx, db.UpdateTemplateParams{
			ID:           pgtype.UUID{Bytes: uid, Valid: true},
			Name:         params.Name,
			Description:  params.Description,
			PipelineTree: tree,
			Editor:       params.Editor,
		})
		return err
	})
	if err != nil {
		return core.OperationOutcome{}, fmt.Errorf("update template %s: %w", target.ID, err)
	}
	if rejected != nil {
		return core.Failure(fmt.Sprintf("update template %s failed", target.ID), rejected.Error()), nil
	}

	tpl, err := dbTemplateToTemplate(row)
	if err != nil {
		return core.OperationOutcome{}, err
	}
	return core.Success(tpl), nil
}

func (m *pgManager) RecordAudit(ctx context.Context, params core.AuditLogParams) error {
	var detail []byte
	if params.Detail != nil {
		var err error
		detail, err = json.Marshal(params.Detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
	}

	_, err := m.q.InsertAuditLog(ctx, db.InsertAuditLogParams{
		ID:         pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Action:     string(params.Action),
		Severity:   string(params.Severity()),
		TemplateID: params.TemplateID,
		Operator:   params.Operator,
		BatchID:    optionalText(params.BatchID),
		IpAddress:  optionalText(params.IPAddress),
		UserAgent:  optionalText(params.UserAgent),
		Detail:     detail,
	})
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// savepoint runs write under a fresh savepoint. A constraint violation rolls
// back to the savepoint and is returned as rejected; any other failure is
// returned as err and leaves the transaction to be rolled back by the caller.
func (m *pgManager) savepoint(ctx context.Context, write func() error) (rejected, err error) {
	m.sp++
	name := fmt.Sprintf("sp_%d", m.sp)

	if _, err := m.tx.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return nil, fmt.Errorf("create savepoint: %w", err)
	}

	if werr := write(); werr != nil {
		if !isConstraintViolation(werr) {
			return nil, werr
		}
		if _, err := m.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
			return nil, fmt.Errorf("rollback savepoint: %w", err)
		}
		return werr, nil
	}

	if _, err := m.tx.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return nil, fmt.Errorf("release savepoint: %w", err)
	}
	return nil, nil
}

// isConstraintViolation reports whether err is a Postgres integrity
// constraint violation (SQLSTATE class 23).
func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return len(pgErr.Code) == 5 && pgErr.Code[:2] == "23"
}

func dbTemplateToTemplate(t db.PipelineTemplate) (*core.Template, error) {
	var tree core.PipelineTree
	if err := json.Unmarshal(t.PipelineTree, &tree); err != nil {
		return nil, fmt.Errorf("unmarshal pipeline tree: %w", err)
	}

	var extra map[string]any
	if len(t.Extra) > 0 {
		if err := json.Unmarshal(t.Extra, &extra); err != nil {
			return nil, fmt.Errorf("unmarshal extra: %w", err)
		}
	}

	id := ""
	if t.ID.Valid {
		id = uuid.UUID(t.ID.Bytes).String()
	}

	return &core.Template{
		ID:           id,
		Name:         t.Name,
		Description:  t.Description,
		PipelineTree: tree,
		Extra:        extra,
		Creator:      t.Creator,
		Editor:       t.Editor,
		CreatedAt:    timestamp(t.CreatedAt),
		UpdatedAt:    timestamp(t.UpdatedAt),
	}, nil
}

func timestamp(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
