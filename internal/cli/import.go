package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/tplimport/internal/config"
	"github.com/JonMunkholm/tplimport/internal/core"
	"github.com/JonMunkholm/tplimport/internal/database"
	"github.com/JonMunkholm/tplimport/internal/payload"
	"github.com/JonMunkholm/tplimport/internal/store"
	"github.com/JonMunkholm/tplimport/internal/telemetry"
	"github.com/spf13/cobra"
)

// ErrItemsFailed is returned by --strict imports when any item failed.
var ErrItemsFailed = errors.New("some templates failed to import")

type importOptions struct {
	file     string
	format   string
	operator string
	bizID    int64
	dryRun   bool
	strict   bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a batch of pipeline templates",
		Long: `Import reads a JSON or YAML batch document and imports every template in
one transaction. The result envelope is written to stdout as JSON.

With --dry-run the batch runs against an empty in-memory store, which checks
the batch and its references without touching the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var bizID *int64
			if cmd.Flags().Changed("biz-id") {
				bizID = &opts.bizID
			}
			return runImport(cmd, opts, bizID)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Batch file to import, - for stdin (required)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Batch format: json or yaml (default: from file extension)")
	cmd.Flags().StringVarP(&opts.operator, "operator", "o", "", "User the import is performed as (required)")
	cmd.Flags().Int64Var(&opts.bizID, "biz-id", 0, "Business id to rebind templates to (overrides the batch's biz_id)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Run against an in-memory store instead of the database")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with an error when any template fails")

	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("operator")

	return cmd
}

func runImport(cmd *cobra.Command, opts importOptions, bizID *int64) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	operator := strings.TrimSpace(opts.operator)
	if operator == "" {
		return fmt.Errorf("--operator must not be blank")
	}

	batch, err := readBatch(cmd.InOrStdin(), opts)
	if err != nil {
		return err
	}
	if bizID == nil {
		bizID = batch.BizID
	}

	var cfg *config.Config
	if opts.dryRun {
		cfg, err = config.LoadWithoutDatabase()
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	setupLogging(cmd, cfg)

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	var st core.Store
	if opts.dryRun {
		st = store.NewMemory()
	} else {
		pool, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		st = store.NewPostgres(pool)
	}

	svc := core.NewService(st, serviceConfig(cfg))
	result, err := svc.ImportTemplates(ctx, core.ImportRequest{
		Operator:  operator,
		BizID:     bizID,
		Templates: batch.Templates,
	})
	if err != nil {
		return core.NewUserError(err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	if opts.strict && result.Failed() > 0 {
		return fmt.Errorf("%w: %d of %d", ErrItemsFailed, result.Failed(), len(result.Data))
	}
	return nil
}

func readBatch(stdin io.Reader, opts importOptions) (*payload.Batch, error) {
	format := payload.FormatFromPath(opts.file)
	switch strings.ToLower(opts.format) {
	case "":
	case string(payload.FormatJSON):
		format = payload.FormatJSON
	case string(payload.FormatYAML), "yml":
		format = payload.FormatYAML
	default:
		return nil, fmt.Errorf("unknown --format %q", opts.format)
	}

	if opts.file == "-" {
		return payload.Decode(stdin, format)
	}

	f, err := os.Open(opts.file)
	if err != nil {
		return nil, fmt.Errorf("open batch: %w", err)
	}
	defer f.Close()
	return payload.Decode(f, format)
}
