// package services defines interface PlaylistSource for reading external playlists
package services

import (
	"context"

	"github.com/blue-creative/db-rb/internal/parsers"
)

// PlaylistSource is an already-authenticated capability that lists the entries of an
// external playlist, typically one held by a streaming service.
type PlaylistSource interface {
	// Entries returns every entry of the playlist as raw records, in playlist order.
	// Entries the source cannot describe are reported as warnings.
	Entries(ctx context.Context, playlistID string) (*parsers.Result, error)

	// Name returns the name of the source (e.g., the service host)
	Name() string
}
