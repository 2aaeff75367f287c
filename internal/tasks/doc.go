// Package tasks orchestrates catalog operations with real-time progress reporting.
//
// # Core Operations
//
// [LibraryEngine] exposes the operations called by the upload, editing and comparison collaborators:
//
//  1. Ingestion
//     - [LibraryEngine.ParseDocument] parses one file chosen by extension
//     - [LibraryEngine.Ingest] classifies records as new, duplicate or conflict without applying them
//     - [LibraryEngine.ApplyMergePlan] applies a plan under a resolution policy
//     - [LibraryEngine.BulkIngest] parses files in parallel, plans once and applies in chunks
//
//  2. Editing
//     - [LibraryEngine.ListTracks] filters by free text across displayed fields
//     - [LibraryEngine.UpdateTrackField], [LibraryEngine.RevertEdit] and [LibraryEngine.DeleteTrack]
//     - [LibraryEngine.GetAuditLog] returns attributed field history
//
//  3. Comparison and export
//     - [LibraryEngine.Compare] classifies an external playlist as found, duplicate or missing
//     - [LibraryEngine.ExportTracks] writes the catalog in several formats with a manifest
//
// # Progress Reporting
//
// Long-running operations accept an optional channel. The [ProgressUpdate] struct contains phase,
// step counters, messages, and optional data. Updates use select with default to prevent blocking.
//
// # Cancellation
//
// Chunked applies check their context between chunks. A chunk is a run of atomic items, so a
// cancelled ingest never leaves an item half-applied.
package tasks
