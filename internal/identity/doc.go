// Package identity resolves whether two track descriptions refer to the same musical work.
//
// A [Fingerprint] is the normalized title, artist and duration bucket joined by "|". Equal
// fingerprints are candidate duplicates outright. When fingerprints differ, [Resolver.Similarity]
// falls back to an edit-distance ratio on title and artist so near variants still match.
//
// [Index] is the matching step shared by ingestion planning and playlist comparison.
package identity
