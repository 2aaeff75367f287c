// Package repositories implements SQLite persistence for the track catalog.
//
// Each repository handles CRUD operations over hand-written SQL. Tracks support soft deletes via
// deleted_at timestamps, so deleted ids stay reserved and their audit history stays readable.
// The audit log is append-only.
//
// Key Implementations:
//   - [TrackRepository] : Catalog track rows with soft deletes and free text listing
//   - [AuditRepository] : Append-only field history keyed by track id
//   - [CatalogBackend] : Adapts both repositories to the catalog store's load and commit cycle
//
// Sequence numbers provide stable insertion ordering independent of UUIDs and creation timestamps.
// [NextSequence] derives the next value from the table itself inside the caller's transaction.
package repositories
