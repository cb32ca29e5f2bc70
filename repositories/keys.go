package repositories

import "net/url"

// keySegment makes an opaque identifier safe to embed in a Badger key.
// User and group ids may contain the ":" and "|" delimiters the key
// schemes use, so raw concatenation would let two distinct pairs (or a
// group id containing ":") share a scan prefix. Query-escaping each
// segment keeps the key mapping injective.
func keySegment(s string) string {
	return url.QueryEscape(s)
}
