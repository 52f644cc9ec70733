package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/churchfinder/internal/config"
	"github.com/iliyamo/churchfinder/internal/importer"
	"github.com/iliyamo/churchfinder/internal/middleware"
	"github.com/iliyamo/churchfinder/internal/repository"
)

var (
	importFile   string
	reindexOnly  bool
	reindexBatch int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Upsert churches from a CSV or TSV file",
	Long: `Read a comma or tab separated file with a header row and upsert each row
by its source_ref column.  Invalid rows are skipped and reported.  When
Elasticsearch is configured the whole directory is reindexed afterwards.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "path of the file to import")
	importCmd.Flags().BoolVar(&reindexOnly, "reindex-only", false, "skip the file and rebuild the search index")
	importCmd.Flags().IntVar(&reindexBatch, "batch", 500, "churches per bulk index request")
}

func runImport(cmd *cobra.Command, _ []string) error {
	if importFile == "" && !reindexOnly {
		return errors.New("--file is required")
	}
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	ctx := cmd.Context()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	im := &importer.Importer{
		Store:     repository.NewChurchRepo(db),
		Log:       log,
		BatchSize: reindexBatch,
	}
	if ix := openIndex(ctx, cfg, log); ix != nil {
		im.Index = ix
	}
	cacheCfg := config.LoadCacheConfig()
	if rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig()); err == nil {
		defer rdb.Close()
		im.Invalidate = func(ctx context.Context) error { return middleware.InvalidateCache(ctx, rdb, cacheCfg) }
	} else {
		log.Warn("redis unavailable, cached responses expire on their own", zap.Error(err))
	}

	if reindexOnly {
		if im.Index == nil {
			return errors.New("search index is not available")
		}
		indexed, failed, err := im.Reindex(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d churches, %d rejected\n", indexed, failed)
		return nil
	}

	f, err := os.Open(importFile)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := im.Run(ctx, f)
	if err != nil {
		return fmt.Errorf("import stopped after %d rows: %w", res.Imported, err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "imported %d, skipped %d\n", res.Imported, res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintln(out, "  "+e.Error())
	}
	if im.Index != nil {
		fmt.Fprintf(out, "indexed %d churches, %d rejected\n", res.Indexed, res.IndexErr)
	}
	return nil
}
