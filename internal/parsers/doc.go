// Package parsers converts uploaded library and playlist documents into raw track records.
//
// Recognized formats are xml (Rekordbox exports and generic track lists), txt (delimited
// text with a header row), json, m3u and m3u8. Parsing never touches the file system:
// callers hand over bytes and a file name.
package parsers
