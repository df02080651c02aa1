package handler

import (
	"log/slog"
	"net/http"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// archivePrefix is where the ledger archiver stores its daily exports.
const archivePrefix = "archive/attempts/"

// ArchiveHandler lists the ledger exports in object storage so operators can
// see which daily snapshots exist without S3 tooling.
type ArchiveHandler struct {
	reader domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler over the blob store.
func NewArchiveHandler(reader domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{reader: reader, logger: logger}
}

// List returns the archived ledger exports, newest first.
// GET /api/archive
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	blobs, err := h.reader.List(r.Context(), archivePrefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}

	// S3 lists keys in ascending order; the date-named exports come back
	// oldest first, so reverse.
	for i, j := 0, len(blobs)-1; i < j; i, j = i+1, j-1 {
		blobs[i], blobs[j] = blobs[j], blobs[i]
	}

	type archiveEntry struct {
		Path         string `json:"path"`
		Size         int64  `json:"size"`
		LastModified string `json:"last_modified"`
	}
	entries := make([]archiveEntry, 0, len(blobs))
	for _, b := range blobs {
		entries = append(entries, archiveEntry{
			Path:         b.Path,
			Size:         b.Size,
			LastModified: b.LastModified.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": entries})
}
