package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// archiveBatchSize bounds how many outcomes are pulled from the store per
// archive pass.
const archiveBatchSize = 10000

// Archiver moves settled outcomes past their retention window out of the
// primary store into S3 as JSONL files. Deletion only happens after the
// upload succeeded, so a failed upload leaves the rows in place for the next
// pass.
type Archiver struct {
	writer   domain.BlobWriter
	outcomes domain.OutcomeStore
	logger   *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, outcomes domain.OutcomeStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:   writer,
		outcomes: outcomes,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveOutcomes uploads every outcome settled strictly before the cutoff
// and deletes the archived rows. It returns the number of outcomes archived.
func (a *Archiver) ArchiveOutcomes(ctx context.Context, before time.Time) (int64, error) {
	var total int64

	for {
		outs, err := a.outcomes.ListBefore(ctx, before, archiveBatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive outcomes query: %w", err)
		}
		if len(outs) == 0 {
			return total, nil
		}

		buf, err := marshalJSONL(outs)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive outcomes marshal: %w", err)
		}

		// Key on the settlement time of the last record in the batch so
		// successive batches never overwrite one another.
		last := outs[len(outs)-1].SettledAt
		key := archiveKey(last)
		if err := a.writer.Put(ctx, key, buf, "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive outcomes upload: %w", err)
		}

		cutoff := last.Add(time.Millisecond)
		if cutoff.After(before) {
			cutoff = before
		}
		deleted, err := a.outcomes.DeleteBefore(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive outcomes delete: %w", err)
		}
		total += deleted

		a.logger.Info("archived outcomes",
			slog.String("key", key),
			slog.Int("batch", len(outs)),
			slog.Int64("deleted", deleted))

		if len(outs) < archiveBatchSize {
			return total, nil
		}
	}
}

// Run archives on the given interval until the context is cancelled.
// retention determines the cutoff relative to now on each pass.
func (a *Archiver) Run(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			if _, err := a.ArchiveOutcomes(ctx, cutoff); err != nil {
				a.logger.Error("archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// archiveKey builds the S3 key for an archive file, partitioned by day and
// suffixed with the exact batch timestamp:
//
//	archive/outcomes/2026-08-01/20260801T153000.000.jsonl
func archiveKey(ts time.Time) string {
	return fmt.Sprintf("archive/outcomes/%s/%s.jsonl",
		ts.UTC().Format("2006-01-02"), ts.UTC().Format("20060102T150405.000"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
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
