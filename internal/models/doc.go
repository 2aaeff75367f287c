// Package models defines the catalog entities and the transient values that flow between the ingestion components.
//
// Persistent entities:
//   - [Track] : canonical catalog entry, mutated only through the catalog store
//   - [AuditLogEntry] : append-only record of a single field change
//
// Transient values:
//   - [RawTrackRecord] : sparse field map produced by a parser
//   - [MergePlan] / [MergePlanItem] : classified, not-yet-applied ingestion batch
//   - [ApplyResult] : outcome of applying a plan, including conflicts left for the caller
//   - [ComparisonResult] : classification of an external playlist entry against the catalog
//
// Field names are the camelCase names used throughout the product (title, artist, bpm, myTag, ...).
// [CanonicalField] resolves aliases and [CanonicalValue] normalizes values so that the same
// information always has the same textual form, which is what diffs and audit entries compare.
package models
