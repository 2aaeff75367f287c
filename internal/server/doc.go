// Package server exposes the catalog over a JSON HTTP API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers so the first one added runs outermost, following the standard Go pattern.
//
// The [BasicRouter] implementation registers "METHOD /path/{wildcard}" patterns on an [http.ServeMux],
// which answers 405 for a known path with the wrong method.
//
// # Endpoints
//
//	POST   /api/documents?filename=   parse an uploaded document (raw body)
//	POST   /api/ingest                classify records into a merge plan
//	POST   /api/apply                 apply a plan under a resolution policy
//	GET    /api/tracks?q=             list tracks, optionally filtered
//	GET    /api/tracks/{id}           one track
//	PATCH  /api/tracks/{id}           edit one field
//	DELETE /api/tracks/{id}           delete a track, keeping its history
//	GET    /api/audit?track_id=       audit log of one track or the whole catalog
//	POST   /api/audit/{id}/revert     revert one audit entry
//	POST   /api/compare?filename=     classify an external playlist (raw body)
//
// Errors are JSON objects with an "error" key. [StatusFor] maps the catalog's sentinel errors:
// not found is 404, validation failures and malformed documents are 422, unknown formats are 415.
//
// # Middleware
//
// [Server] applies panic recovery, request logging, a token bucket [RateLimiter] and
// [Attribution], which reads the X-User header so edits and reverts are recorded against the caller.
package server
