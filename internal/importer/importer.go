package importer

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/churchfinder/internal/model"
)

// Store is the persistence the importer needs; *repository.ChurchRepo
// implements it.
type Store interface {
	UpsertBySourceRef(ctx context.Context, c *model.Church) (uint64, error)
	ListAfter(ctx context.Context, afterID uint64, limit int) ([]model.Church, error)
}

// BulkIndexer is implemented by *search.Index.
type BulkIndexer interface {
	Bulk(ctx context.Context, churches []model.Church) (int, error)
}

// Result summarizes an import.
type Result struct {
	Imported int
	Skipped  int
	Errors   []RowError // at most maxReportedErrors entries
	Indexed  int
	IndexErr int // documents the search cluster rejected
}

const (
	maxReportedErrors = 50
	rowTimeout        = 5 * time.Second
	defaultBatch      = 500
)

// Importer upserts churches keyed by source_ref and refreshes the search
// index afterwards.
type Importer struct {
	Store      Store
	Index      BulkIndexer                     // optional
	Invalidate func(ctx context.Context) error // optional; drops cached responses
	Log        *zap.Logger
	BatchSize  int // reindex page size
}

// Run imports every row of in.  Invalid rows are skipped and counted; a
// database error stops the import.
func (im *Importer) Run(ctx context.Context, in io.Reader) (Result, error) {
	var res Result
	rd, err := NewReader(in)
	if err != nil {
		return res, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		c, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr RowError
		if errors.As(err, &rowErr) {
			res.Skipped++
			if len(res.Errors) < maxReportedErrors {
				res.Errors = append(res.Errors, rowErr)
			}
			im.Log.Debug("row skipped", zap.Int("line", rowErr.Line), zap.String("reason", rowErr.Reason))
			continue
		}
		if err != nil {
			return res, err
		}

		rctx, cancel := context.WithTimeout(ctx, rowTimeout)
		_, err = im.Store.UpsertBySourceRef(rctx, c)
		cancel()
		if err != nil {
			return res, err
		}
		res.Imported++
	}
	im.Log.Info("import finished", zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped))

	if res.Imported > 0 && im.Invalidate != nil {
		if err := im.Invalidate(ctx); err != nil {
			im.Log.Warn("cache invalidation failed", zap.Error(err))
		}
	}
	if im.Index != nil {
		res.Indexed, res.IndexErr, err = im.Reindex(ctx)
		if err != nil {
			// rows are already committed; the index catches up on the next run
			im.Log.Warn("reindex failed", zap.Error(err))
		}
	}
	return res, nil
}

// Reindex pushes every stored church to the search index in id order.
func (im *Importer) Reindex(ctx context.Context) (indexed, failed int, err error) {
	batch := im.BatchSize
	if batch <= 0 {
		batch = defaultBatch
	}
	var after uint64
	for {
		rows, err := im.Store.ListAfter(ctx, after, batch)
		if err != nil {
			return indexed, failed, err
		}
		if len(rows) == 0 {
			break
		}
		n, err := im.Index.Bulk(ctx, rows)
		if err != nil {
			return indexed, failed, err
		}
		indexed += len(rows) - n
		failed += n
		after = rows[len(rows)-1].ID
		if len(rows) < batch {
			break
		}
	}
	im.Log.Info("search index rebuilt", zap.Int("indexed", indexed), zap.Int("failed", failed))
	return indexed, failed, nil
}
