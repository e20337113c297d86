package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfall/xrparb/internal/domain"
)

// archiveBatchLimit bounds how many executions one archival pass pulls.
const archiveBatchLimit = 10_000

// Archiver moves finalized executions and old trade-log rows out of
// PostgreSQL into object storage as JSONL, then deletes them from the
// primary store. Deletion only happens after the upload succeeded.
type Archiver struct {
	writer     *Writer
	executions domain.ExecutionStore
	trades     domain.TradeStore
	retention  time.Duration
	logger     *slog.Logger
}

// NewArchiver creates an Archiver that retains the most recent retention
// window in PostgreSQL and archives everything older.
func NewArchiver(
	writer *Writer,
	executions domain.ExecutionStore,
	trades domain.TradeStore,
	retention time.Duration,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer:     writer,
		executions: executions,
		trades:     trades,
		retention:  retention,
		logger:     logger.With(slog.String("component", "archiver")),
	}
}

// Run performs one archival pass immediately and then repeats daily until
// the context is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		if err := a.ArchiveOnce(ctx); err != nil {
			a.logger.ErrorContext(ctx, "archival pass failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ArchiveOnce archives and prunes everything older than the retention
// cutoff.
func (a *Archiver) ArchiveOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-a.retention)

	if err := a.archiveExecutions(ctx, cutoff); err != nil {
		return err
	}
	return a.archiveTrades(ctx, cutoff)
}

func (a *Archiver) archiveExecutions(ctx context.Context, cutoff time.Time) error {
	recs, err := a.executions.ListFinalizedBefore(ctx, cutoff, archiveBatchLimit)
	if err != nil {
		return fmt.Errorf("s3blob: list executions for archive: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return fmt.Errorf("s3blob: marshal executions: %w", err)
	}

	path := archivePath("executions", cutoff)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: upload executions archive: %w", err)
	}

	deleted, err := a.executions.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("s3blob: prune archived executions: %w", err)
	}

	a.logger.InfoContext(ctx, "executions archived",
		slog.String("path", path),
		slog.Int("archived", len(recs)),
		slog.Int64("pruned", deleted),
	)
	return nil
}

func (a *Archiver) archiveTrades(ctx context.Context, cutoff time.Time) error {
	recs, err := a.trades.List(ctx, domain.ListOpts{Before: &cutoff, Limit: archiveBatchLimit})
	if err != nil {
		return fmt.Errorf("s3blob: list trades for archive: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return fmt.Errorf("s3blob: marshal trades: %w", err)
	}

	path := archivePath("trades", cutoff)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: upload trades archive: %w", err)
	}

	deleted, err := a.trades.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("s3blob: prune archived trades: %w", err)
	}

	a.logger.InfoContext(ctx, "trades archived",
		slog.String("path", path),
		slog.Int("archived", len(recs)),
		slog.Int64("pruned", deleted),
	)
	return nil
}

// archivePath builds the object key: archive/{kind}/YYYY/MM/DD.jsonl keyed
// by the cutoff date so repeated passes for the same day overwrite
// idempotently.
func archivePath(kind string, cutoff time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, cutoff.Format("2006/01/02"))
}

// marshalJSONL renders a slice as newline-delimited JSON.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
