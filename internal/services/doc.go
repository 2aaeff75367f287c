// Package services reads external playlists for comparison against the catalog.
//
// # PlaylistSource Interface
//
// A [PlaylistSource] lists the entries of one playlist as raw records. It is handed in already
// authenticated: obtaining or refreshing credentials happens outside this module.
//
// # HTTP Implementation
//
// [APIService] walks a paged JSON listing ("items" plus a "next" URL) with a bearer token and
// hands each page to the JSON document parser, so streaming-service entries map to track fields
// exactly as an uploaded JSON export would. Requests are paced with a token bucket limiter.
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrPlaylistNotFound] : the service answered 404
//   - [shared.ErrAPIRequest] : transport failure or any other non-2xx status
//   - [shared.ErrMalformedDocument] : a page held no entry list
package services
