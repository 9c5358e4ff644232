package proxy

import (
	"net/http"
	"strconv"
)

// SegmentMaxAge is the cache lifetime advertised for relayed segments.
// Segment names are never reused by the engine within a stream.
const SegmentMaxAge = 86400

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
}

// SetManifestHeaders marks a manifest response as uncacheable and readable
// from any origin.
func SetManifestHeaders(h http.Header) {
	h.Set("Content-Type", ManifestContentType)
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	setCORS(h)
}

// SetSegmentHeaders passes the segment's content type through with long-lived
// cache headers, readable from any origin.
func SetSegmentHeaders(h http.Header, seg *Segment) {
	h.Set("Content-Type", seg.ContentType)
	if seg.ContentLength >= 0 {
		h.Set("Content-Length", strconv.FormatInt(seg.ContentLength, 10))
	}
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(SegmentMaxAge)+", immutable")
	setCORS(h)
}
