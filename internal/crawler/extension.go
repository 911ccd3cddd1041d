package crawler

import (
	"strings"

	"github.com/JakeFAU/staticgen/internal/contenttype"
)

// ExtensionFixer maps a request path and response content type to the
// pathname the response is stored under.
type ExtensionFixer func(pathname, contentType string) string

// DefaultFixExtension maps text/html to .html.
var DefaultFixExtension = map[string]string{"text/html": "html"}

// FixExtensionFrom returns an ExtensionFixer backed by table. A path ending in
// "/" gains "index.<ext>"; any other path lacking the mapped extension gains
// ".<ext>". Unmapped content types leave the path unchanged.
func FixExtensionFrom(table *contenttype.Table) ExtensionFixer {
	return func(pathname, contentType string) string {
		ext, ok := table.Extension(contentType)
		if !ok || ext == "" {
			return pathname
		}
		switch {
		case strings.HasSuffix(pathname, "/"):
			return pathname + "index." + ext
		case strings.HasSuffix(strings.ToLower(pathname), "."+ext):
			return pathname
		default:
			return pathname + "." + ext
		}
	}
}
