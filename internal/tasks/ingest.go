package tasks

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/parsers"
	"golang.org/x/sync/errgroup"
)

// DocumentFailure is a document that could not be parsed as a whole.
type DocumentFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
	err   error
}

// Err returns the parse error so callers can match sentinel errors.
func (f DocumentFailure) Err() error { return f.err }

// BatchParseResult holds the documents of a batch in input order.
// A failed document is reported in Failures and never aborts the batch.
type BatchParseResult struct {
	Results  []*parsers.Result `json:"results"`
	Failures []DocumentFailure `json:"failures"`
}

// Records concatenates the records of every parsed document in input order.
func (b *BatchParseResult) Records() []*models.RawTrackRecord {
	var records []*models.RawTrackRecord
	for _, r := range b.Results {
		records = append(records, r.Records...)
	}
	return records
}

// Warnings concatenates the skipped-entry warnings of every parsed document.
func (b *BatchParseResult) Warnings() []parsers.Warning {
	var warnings []parsers.Warning
	for _, r := range b.Results {
		warnings = append(warnings, r.Warnings...)
	}
	return warnings
}

// IngestReport is the outcome of [LibraryEngine.BulkIngest].
type IngestReport struct {
	Parse  *BatchParseResult   `json:"parse"`
	Plan   *models.MergePlan   `json:"plan"`
	Result *models.ApplyResult `json:"result"`
}

// ParseDocuments parses docs concurrently with at most Options.Workers parsers in flight.
//
// Parsing is pure, so documents are independent. Only cancellation of ctx fails the call.
func (e *LibraryEngine) ParseDocuments(ctx context.Context, docs []Document, progress chan<- ProgressUpdate) (*BatchParseResult, error) {
	results := make([]*parsers.Result, len(docs))
	failures := make([]*DocumentFailure, len(docs))
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			res, err := e.ParseDocument(doc.Data, doc.Name)
			step := int(done.Add(1))
			if err != nil {
				failures[i] = &DocumentFailure{Name: doc.Name, Error: err.Error(), err: err}
				e.sendProgress(progress, failedDocumentUpdate(step, len(docs), doc.Name, err))
				return nil
			}
			results[i] = res
			e.sendProgress(progress, parsedDocumentUpdate(step, len(docs), doc.Name, len(res.Records), len(res.Warnings)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parsing aborted: %w", err)
	}

	batch := &BatchParseResult{Results: []*parsers.Result{}, Failures: []DocumentFailure{}}
	for i := range docs {
		if results[i] != nil {
			batch.Results = append(batch.Results, results[i])
		}
		if failures[i] != nil {
			batch.Failures = append(batch.Failures, *failures[i])
		}
	}
	return batch, nil
}

// ApplyChunked applies plan in chunks of Options.ChunkSize items, reporting progress after each.
//
// Every item is atomic and chunks never split an item, so when ctx is cancelled the call stops at
// a chunk boundary and returns what was applied so far together with the context's error.
func (e *LibraryEngine) ApplyChunked(ctx context.Context, plan *models.MergePlan, policy models.ResolutionPolicy, progress chan<- ProgressUpdate) (*models.ApplyResult, error) {
	result := models.NewApplyResult()
	if plan == nil {
		return result, nil
	}

	chunks := plan.Chunks(e.opts.ChunkSize)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("apply cancelled", "chunks_applied", i, "chunks", len(chunks))
			return result, fmt.Errorf("apply cancelled after %d of %d chunks: %w", i, len(chunks), err)
		}

		res := e.store.ApplyMergePlanAs(e.opts.User, chunk.BindInserted(result.InsertedAt), policy)
		result.Merge(res)
		e.sendProgress(progress, applyChunkUpdate(i+1, len(chunks), res))
	}
	return result, nil
}

// BulkIngest parses docs in parallel, plans every record against the catalog and applies the plan
// in chunks under policy.
func (e *LibraryEngine) BulkIngest(ctx context.Context, docs []Document, policy models.ResolutionPolicy, progress chan<- ProgressUpdate) (*IngestReport, error) {
	report := &IngestReport{}

	batch, err := e.ParseDocuments(ctx, docs, progress)
	if err != nil {
		return report, err
	}
	report.Parse = batch

	report.Plan = e.Ingest(batch.Records())
	e.sendProgress(progress, planUpdate(report.Plan))

	report.Result, err = e.ApplyChunked(ctx, report.Plan, policy, progress)
	e.logger.Info("bulk ingest finished",
		"documents", len(docs),
		"failed_documents", len(batch.Failures),
		"records", len(report.Plan.Items),
		"summary", report.Result.Summary())
	return report, err
}
