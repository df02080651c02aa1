package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// AttemptArchiveStore provides the read access the archiver needs. The
// Postgres attempt store satisfies it through ListRecent.
type AttemptArchiveStore interface {
	ListRecent(ctx context.Context, limit int) ([]domain.ExecutionAttempt, error)
}

// exportLimit caps one export's size. The archive is a redundant copy of an
// append-only table, so an export that misses very old rows is acceptable.
const exportLimit = 10000

// LedgerArchiver periodically exports the trade ledger to object storage as
// JSONL, one file per day. The export is a redundant safety copy; nothing is
// ever deleted from the primary store here.
type LedgerArchiver struct {
	writer   domain.BlobWriter
	attempts AttemptArchiveStore
	interval time.Duration
	logger   *slog.Logger
}

// NewLedgerArchiver creates a LedgerArchiver exporting every interval.
func NewLedgerArchiver(writer domain.BlobWriter, attempts AttemptArchiveStore, interval time.Duration, logger *slog.Logger) *LedgerArchiver {
	if interval <= 0 {
		interval = time.Hour
	}
	return &LedgerArchiver{
		writer:   writer,
		attempts: attempts,
		interval: interval,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// Run exports on a fixed cadence until ctx is cancelled. Export failures are
// logged and retried on the next cycle.
func (a *LedgerArchiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			count, err := a.Export(ctx)
			if err != nil {
				a.logger.Error("ledger export failed", slog.String("error", err.Error()))
				continue
			}
			a.logger.Info("ledger exported", slog.Int64("attempts", count))
		}
	}
}

// Export serializes the newest attempts to JSONL and uploads them to
// archive/attempts/YYYY-MM-DD.jsonl, overwriting the day's earlier export.
func (a *LedgerArchiver) Export(ctx context.Context) (int64, error) {
	attempts, err := a.attempts.ListRecent(ctx, exportLimit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: export query: %w", err)
	}
	if len(attempts) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(attempts)
	if err != nil {
		return 0, fmt.Errorf("s3blob: export marshal: %w", err)
	}

	path := archivePath(time.Now().UTC())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: export upload: %w", err)
	}
	return int64(len(attempts)), nil
}

// archivePath builds the S3 key for a day's export:
//
//	archive/attempts/2026-08-31.jsonl
func archivePath(day time.Time) string {
	return fmt.Sprintf("archive/attempts/%s.jsonl", day.Format("2006-01-02"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
