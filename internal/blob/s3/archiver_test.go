package s3blob

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/arbcorelabs/arbcore/internal/domain"
	"github.com/arbcorelabs/arbcore/internal/ledger"
)

type writerStub struct {
	path        string
	contentType string
	body        []byte
}

func (w *writerStub) Put(ctx context.Context, path string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	w.path = path
	w.contentType = contentType
	w.body = data
	return nil
}

func TestExportWritesDailyJSONL(t *testing.T) {
	store := ledger.NewMemoryStore()
	for _, id := range []string{"a1", "a2"} {
		if err := store.Record(context.Background(), domain.ExecutionAttempt{
			ID:        id,
			Symbols:   []string{"BTCUSDT"},
			StartedAt: time.Now().UTC(),
			Outcome:   domain.OutcomeCompleted,
		}); err != nil {
			t.Fatal(err)
		}
	}

	writer := &writerStub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewLedgerArchiver(writer, store, time.Hour, logger)

	count, err := a.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	if !strings.HasPrefix(writer.path, "archive/attempts/") || !strings.HasSuffix(writer.path, ".jsonl") {
		t.Fatalf("path = %s", writer.path)
	}
	if writer.contentType != "application/x-ndjson" {
		t.Fatalf("content type = %s", writer.contentType)
	}
	if lines := bytes.Count(bytes.TrimSpace(writer.body), []byte("\n")); lines != 1 {
		t.Fatalf("body has %d newlines between records, want 1:\n%s", lines, writer.body)
	}
	if !bytes.Contains(writer.body, []byte("a1")) || !bytes.Contains(writer.body, []byte("a2")) {
		t.Fatalf("records missing from body:\n%s", writer.body)
	}
}

func TestExportSkipsEmptyLedger(t *testing.T) {
	writer := &writerStub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewLedgerArchiver(writer, ledger.NewMemoryStore(), time.Hour, logger)

	count, err := a.Export(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 || writer.path != "" {
		t.Fatalf("empty ledger uploaded: count=%d path=%s", count, writer.path)
	}
}

func TestArchivePath(t *testing.T) {
	day := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)
	if got := archivePath(day); got != "archive/attempts/2026-08-31.jsonl" {
		t.Fatalf("archivePath = %s", got)
	}
}
