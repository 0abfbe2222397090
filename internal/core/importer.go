package core

// importer.go implements the batch template import.
//
// A batch runs inside one TransactionScope. Items are processed strictly in
// input order because an item may sub-process into a template produced by an
// earlier item: every successful item binds its transient id to a persisted
// id, and the resolver rewrites later SubProcess nodes against those
// bindings.
//
// Two kinds of failure are kept apart:
//
//   - Per-item failures (dangling reference, unknown override/refer target,
//     a manager rejecting a write) become a failed OperationOutcome in the
//     result list and the batch continues.
//   - Any Go error (malformed item or tree, store failure) aborts the batch,
//     rolls back every write made so far and is returned without a result.

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/tplimport/internal/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/JonMunkholm/tplimport/internal/core"

var (
	// ErrMalformedItem is wrapped by errors about items missing required data.
	ErrMalformedItem = errors.New("malformed import item")

	// ErrDuplicateTransientID is returned when two items share a transient id.
	ErrDuplicateTransientID = errors.New("duplicate transient id")
)

// Importer imports batches of pipeline templates.
type Importer struct {
	scope        TransactionScope
	replaceBizID BizIDReplacer

	tracer  trace.Tracer
	items   metric.Int64Counter
	batches metric.Int64Counter
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithBizIDReplacer overrides the business-id substitution step.
func WithBizIDReplacer(fn BizIDReplacer) ImporterOption {
	return func(im *Importer) {
		if fn != nil {
			im.replaceBizID = fn
		}
	}
}

// NewImporter creates an Importer whose batches run inside scope.
func NewImporter(scope TransactionScope, opts ...ImporterOption) *Importer {
	im := &Importer{
		scope:        scope,
		replaceBizID: ReplaceBizID,
		tracer:       otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(im)
	}

	meter := otel.Meter(instrumentationName)
	var err error
	im.items, err = meter.Int64Counter("tplimport.items",
		metric.WithDescription("Imported template items by operation and result"))
	if err != nil {
		im.items = noop.Int64Counter{}
	}
	im.batches, err = meter.Int64Counter("tplimport.batches",
		metric.WithDescription("Import batches by final state"))
	if err != nil {
		im.batches = noop.Int64Counter{}
	}
	return im
}

// ImportBatch imports items as operator. When bizID is non-nil and non-zero
// each pipeline tree is first rebound to that business.
//
// The returned result holds exactly one outcome per item, in input order.
// A non-nil error means the whole batch was rolled back.
func (im *Importer) ImportBatch(ctx context.Context, operator string, items []ImportItem, bizID *int64) (*ImportResult, error) {
	if err := checkTransientIDs(items); err != nil {
		return nil, err
	}

	if logging.BatchID(ctx) == "" {
		ctx = logging.ContextWithBatchID(ctx, uuid.NewString())
	}
	ctx, span := im.tracer.Start(ctx, "core.ImportBatch", trace.WithAttributes(
		attribute.String("tplimport.operator", operator),
		attribute.Int("tplimport.items", len(items)),
	))
	defer span.End()

	log := logging.WithFields(ctx, "operator", operator, "items", len(items))
	log.Info("template import started")

	var results []OperationOutcome
	err := im.scope.RunAtomic(ctx, func(ctx context.Context, mgr TemplateManager) error {
		results = make([]OperationOutcome, 0, len(items))
		b := &batch{
			im:         im,
			mgr:        mgr,
			operator:   operator,
			ids:        IdentifierMap{},
			sourceInfo: SourceInfoMap{},
		}
		for i := range items {
			outcome, err := b.importItem(ctx, &items[i], bizID)
			if err != nil {
				return fmt.Errorf("import item %d (id %q): %w", i, items[i].ID, err)
			}
			if !outcome.Succeeded {
				log.Warn("template import item failed",
					"index", i,
					"item_id", items[i].ID,
					"message", outcome.Message,
				)
			}
			results = append(results, outcome)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch aborted")
		im.batches.Add(ctx, 1, metric.WithAttributes(attribute.String("state", "aborted")))
		log.Error("template import aborted", "error", err)
		return nil, err
	}

	result := &ImportResult{
		Succeeded:      true,
		Data:           results,
		Message:        successMessage,
		VerboseMessage: successMessage,
	}
	for i, o := range results {
		im.items.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", string(items[i].Operation())),
			attribute.Bool("succeeded", o.Succeeded),
		))
	}
	im.batches.Add(ctx, 1, metric.WithAttributes(attribute.String("state", "committed")))
	span.SetAttributes(attribute.Int("tplimport.failed", result.Failed()))
	log.Info("template import finished", "failed", result.Failed())

	return result, nil
}

// checkTransientIDs rejects batches whose transient ids are missing,
// repeated, or could be mistaken for persisted template ids.
func checkTransientIDs(items []ImportItem) error {
	seen := make(map[string]int, len(items))
	for i, it := range items {
		if it.ID == "" {
			return fmt.Errorf("item %d: %w: missing id", i, ErrMalformedItem)
		}
		if prev, ok := seen[it.ID]; ok {
			return fmt.Errorf("items %d and %d: %w %q", prev, i, ErrDuplicateTransientID, it.ID)
		}
		if _, err := uuid.Parse(it.ID); err == nil {
			return fmt.Errorf("item %d: %w: id %q collides with the persisted id space", i, ErrMalformedItem, it.ID)
		}
		seen[it.ID] = i
	}
	return nil
}

// batch is the per-call state of ImportBatch. It never outlives the call.
type batch struct {
	im         *Importer
	mgr        TemplateManager
	operator   string
	ids        IdentifierMap
	sourceInfo SourceInfoMap
}

func (b *batch) importItem(ctx context.Context, item *ImportItem, bizID *int64) (OperationOutcome, error) {
	op := item.Operation()
	ctx, span := b.im.tracer.Start(ctx, "core.importItem", trace.WithAttributes(
		attribute.String("tplimport.item_id", item.ID),
		attribute.String("tplimport.operation", string(op)),
	))
	defer span.End()

	if op != OperationRefer && item.PipelineTree == nil {
		return OperationOutcome{}, fmt.Errorf("%w: missing pipeline_tree", ErrMalformedItem)
	}

	if bizID != nil && *bizID != 0 && item.PipelineTree != nil {
		b.im.replaceBizID(item.PipelineTree, *bizID)
	}

	// A refer item may omit its tree; there is nothing to resolve then.
	if item.PipelineTree != nil {
		resolved, err := ResolveSubprocessReferences(item.PipelineTree, b.ids, b.sourceInfo)
		if err != nil {
			return OperationOutcome{}, err
		}
		if !resolved.Succeeded {
			return resolved, nil
		}
	}

	var target *Template
	var err error
	if op == OperationUpdate || op == OperationRefer {
		targetID := item.OverrideTemplateID
		if op == OperationRefer {
			targetID = item.ReferTemplateID
		}
		target, err = b.mgr.Get(ctx, targetID)
		if errors.Is(err, ErrTemplateNotFound) {
			return Failure(
				fmt.Sprintf("Template does not exist with id %s", targetID),
				err.Error(),
			), nil
		}
		if err != nil {
			return OperationOutcome{}, fmt.Errorf("get template %s: %w", targetID, err)
		}
	}

	switch op {
	case OperationUpdate:
		return b.update(ctx, item, target)
	case OperationRefer:
		return b.refer(ctx, item, target)
	default:
		return b.create(ctx, item)
	}
}

func (b *batch) update(ctx context.Context, item *ImportItem, target *Template) (OperationOutcome, error) {
	outcome, err := b.mgr.Update(ctx, target, UpdateParams{
		Editor:       b.operator,
		Name:         item.Name,
		PipelineTree: item.PipelineTree,
		Description:  item.Description,
	})
	if err != nil {
		return OperationOutcome{}, fmt.Errorf("update template %s: %w", target.ID, err)
	}
	if !outcome.Succeeded {
		return outcome, nil
	}

	id := target.ID
	if outcome.Data != nil {
		id = outcome.Data.ID
	}
	b.ids[item.ID] = id

	err = recordAudit(ctx, b.mgr, AuditLogParams{
		Action:     ActionTemplateUpdate,
		TemplateID: id,
		Operator:   b.operator,
		Detail:     map[string]interface{}{"transient_id": item.ID, "name": item.Name},
	})
	return outcome, err
}

func (b *batch) refer(ctx context.Context, item *ImportItem, target *Template) (OperationOutcome, error) {
	infos, err := collectSourceInfo(target)
	if err != nil {
		return OperationOutcome{}, err
	}
	if infos != nil {
		b.sourceInfo[item.ID] = infos
	}
	b.ids[item.ID] = item.ReferTemplateID

	err = recordAudit(ctx, b.mgr, AuditLogParams{
		Action:     ActionTemplateRefer,
		TemplateID: item.ReferTemplateID,
		Operator:   b.operator,
		Detail:     map[string]interface{}{"transient_id": item.ID},
	})
	return Success(nil), err
}

func (b *batch) create(ctx context.Context, item *ImportItem) (OperationOutcome, error) {
	kwargs := item.TemplateKwargs
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	outcome, err := b.mgr.Create(ctx, CreateParams{
		Name:         item.Name,
		Creator:      b.operator,
		PipelineTree: item.PipelineTree,
		Kwargs:       kwargs,
		Description:  item.Description,
	})
	if err != nil {
		return OperationOutcome{}, fmt.Errorf("create template: %w", err)
	}
	if !outcome.Succeeded {
		return outcome, nil
	}
	if outcome.Data == nil {
		return OperationOutcome{}, fmt.Errorf("create template: manager returned no record")
	}
	b.ids[item.ID] = outcome.Data.ID

	err = recordAudit(ctx, b.mgr, AuditLogParams{
		Action:     ActionTemplateCreate,
		TemplateID: outcome.Data.ID,
		Operator:   b.operator,
		Detail:     map[string]interface{}{"transient_id": item.ID, "name": item.Name},
	})
	return outcome, err
}
