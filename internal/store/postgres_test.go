package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/tplimport/internal/core"
	db "github.com/JonMunkholm/tplimport/internal/database"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tplimport"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Errorf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

func TestPostgres(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	store := NewPostgres(pool)

	t.Run("create, get and update", func(t *testing.T) {
		var id string
		err := store.RunAtomic(ctx, func(ctx context.Context, mgr core.TemplateManager) error {
			outcome, err := mgr.Create(ctx, core.CreateParams{
				Name:         "deploy",
				Creator:      "alice",
				PipelineTree: core.PipelineTree{"activities": map[string]any{}},
				Kwargs:       map[string]any{"category": "ops"},
			})
			require.NoError(t, err)
			require.True(t, outcome.Succeeded, outcome.VerboseMessage)
			id = outcome.Data.ID

			target, err := mgr.Get(ctx, id)
			require.NoError(t, err)
			outcome, err = mgr.Update(ctx, target, core.UpdateParams{
				Editor:       "bob",
				Name:         "deploy v2",
				PipelineTree: core.PipelineTree{"activities": map[string]any{}, "rev": 2},
			})
			require.NoError(t, err)
			require.True(t, outcome.Succeeded, outcome.VerboseMessage)
			return nil
		})
		require.NoError(t, err)

		got, err := store.GetTemplate(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "deploy v2", got.Name)
		assert.Equal(t, "alice", got.Creator)
		assert.Equal(t, "bob", got.Editor)
		assert.Equal(t, 2.0, got.PipelineTree["rev"])
		assert.Equal(t, "ops", got.Extra["category"])
	})

	t.Run("unknown and non-uuid ids are not found", func(t *testing.T) {
		_, err := store.GetTemplate(ctx, "00000000-0000-0000-0000-000000000001")
		assert.True(t, errors.Is(err, core.ErrTemplateNotFound))

		_, err = store.GetTemplate(ctx, "42")
		assert.True(t, errors.Is(err, core.ErrTemplateNotFound))
	})

	t.Run("constraint violation fails the item without poisoning the transaction", func(t *testing.T) {
		err := store.RunAtomic(ctx, func(ctx context.Context, mgr core.TemplateManager) error {
			pm := mgr.(*pgManager)
			rejected, err := pm.savepoint(ctx, func() error {
				_, err := pm.tx.Exec(ctx, `INSERT INTO pipeline_templates (id, name, pipeline_tree, creator)
					VALUES (gen_random_uuid(), '   ', '{}', 'x')`)
				return err
			})
			require.NoError(t, err)
			require.Error(t, rejected)

			outcome, err := mgr.Create(ctx, core.CreateParams{Name: "after", PipelineTree: core.PipelineTree{}})
			require.NoError(t, err)
			assert.True(t, outcome.Succeeded)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed batch rolls back every write", func(t *testing.T) {
		before, err := db.New(pool).CountTemplates(ctx)
		require.NoError(t, err)

		importer := core.NewImporter(store)
		_, err = importer.ImportBatch(ctx, "alice", []core.ImportItem{
			{ID: "a", Name: "first", PipelineTree: core.PipelineTree{"activities": map[string]any{}}},
			{ID: "b", Name: "second", PipelineTree: core.PipelineTree{
				"activities": map[string]any{"n1": map[string]any{"type": "SubProcess"}},
			}},
		}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrMalformedTree))

		after, err := db.New(pool).CountTemplates(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("batch commits templates and audit rows", func(t *testing.T) {
		importer := core.NewImporter(store)
		result, err := importer.ImportBatch(ctx, "alice", []core.ImportItem{
			{ID: "child", Name: "child", PipelineTree: core.PipelineTree{"activities": map[string]any{}}},
			{ID: "parent", Name: "parent", PipelineTree: core.PipelineTree{
				"activities": map[string]any{
					"n1": map[string]any{"type": "SubProcess", "template_id": "child"},
				},
			}},
		}, nil)
		require.NoError(t, err)
		require.Len(t, result.Data, 2)
		require.True(t, result.Data[0].Succeeded)
		require.True(t, result.Data[1].Succeeded)

		parent, err := store.GetTemplate(ctx, result.Data[1].Data.ID)
		require.NoError(t, err)
		acts, err := parent.PipelineTree.Activities()
		require.NoError(t, err)
		assert.Equal(t, result.Data[0].Data.ID, acts["n1"].(map[string]any)["template_id"])

		list, err := store.ListTemplates(ctx, 100, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(list), 2)

		var count int
		err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM template_audit_log WHERE operator = 'alice' AND action = 'template_create'`).Scan(&count)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, 2)
	})

	t.Run("audit rows carry the batch id", func(t *testing.T) {
		var batchID pgtype.Text
		err := pool.QueryRow(ctx, `SELECT batch_id FROM template_audit_log ORDER BY created_at DESC LIMIT 1`).Scan(&batchID)
		require.NoError(t, err)
		assert.True(t, batchID.Valid)
		assert.False(t, strings.TrimSpace(batchID.String) == "")

		rows, err := db.New(pool).ListAuditLogByBatch(ctx, batchID)
		require.NoError(t, err)
		assert.NotEmpty(t, rows)
	})
}
