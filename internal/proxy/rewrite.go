package proxy

import (
	"strings"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
)

// RewriteManifest replaces every occurrence of engineBase in body with
// proxyBase. It is a plain prefix swap: path and query suffixes after the
// prefix are preserved and nothing else in the manifest is interpreted.
func RewriteManifest(body, engineBase, proxyBase string) string {
	if engineBase == "" {
		return body
	}
	return strings.ReplaceAll(body, engineBase, proxyBase)
}

// ManifestInfo summarizes a manifest's URIs after rewriting.
type ManifestInfo struct {
	Multivariant bool
	URIs         int

	// Foreign lists absolute URIs that do not start with the proxy base:
	// references the prefix swap could not redirect through the relay.
	Foreign []string
}

// InspectManifest parses body as an HLS playlist and reports absolute URIs
// outside proxyBase. ok is false when body does not parse; callers treat
// that as "nothing to report".
func InspectManifest(body, proxyBase string) (info ManifestInfo, ok bool) {
	pl, err := playlist.Unmarshal([]byte(body))
	if err != nil {
		return ManifestInfo{}, false
	}

	var uris []string
	switch p := pl.(type) {
	case *playlist.Multivariant:
		info.Multivariant = true
		for _, v := range p.Variants {
			if v != nil {
				uris = append(uris, v.URI)
			}
		}
	case *playlist.Media:
		if p.Map != nil {
			uris = append(uris, p.Map.URI)
		}
		for _, seg := range p.Segments {
			if seg != nil {
				uris = append(uris, seg.URI)
			}
		}
	}

	info.URIs = len(uris)
	for _, u := range uris {
		if isAbsolute(u) && !strings.HasPrefix(u, proxyBase) {
			info.Foreign = append(info.Foreign, u)
		}
	}
	return info, true
}

func isAbsolute(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
