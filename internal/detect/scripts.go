package detect

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ExternalScripts returns the src values of script elements in r that load
// from an absolute http(s) URL or a protocol-relative one, in document order.
func ExternalScripts(r io.Reader) ([]string, error) {
	sources := make([]string, 0)
	z := html.NewTokenizer(r)

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return sources, nil
			}
			return sources, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "src" && isExternal(string(val)) {
					sources = append(sources, strings.TrimSpace(string(val)))
				}
				if !more {
					break
				}
			}
		}
	}
}

func isExternal(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "//")
}
