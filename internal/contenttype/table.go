// Package contenttype maps file extensions to MIME content types and back.
package contenttype

import (
	"mime"
	"path"
	"sort"
	"strings"
)

// DefaultWebTypes is the serve-time mapping used when no explicit table is
// configured.
var DefaultWebTypes = map[string]string{
	"text/html":                 "html",
	"text/css":                  "css",
	"text/javascript":           "js",
	"application/json":          "json",
	"application/xml":           "xml",
	"text/plain":                "txt",
	"image/svg+xml":             "svg",
	"image/png":                 "png",
	"image/jpeg":                "jpg",
	"image/gif":                 "gif",
	"image/webp":                "webp",
	"image/x-icon":              "ico",
	"font/woff":                 "woff",
	"font/woff2":                "woff2",
	"application/wasm":          "wasm",
	"application/manifest+json": "webmanifest",
}

// Table is a bidirectional content-type/extension mapping. It is read-only
// after construction and safe for concurrent use.
type Table struct {
	byType map[string]string
	byExt  map[string]string
}

// New builds a Table from a content-type to extension mapping. Extensions are
// expected without a leading dot; one is stripped if present. When several
// content types share an extension the lexically smallest one wins.
func New(mapping map[string]string) *Table {
	t := &Table{
		byType: make(map[string]string, len(mapping)),
		byExt:  make(map[string]string, len(mapping)),
	}
	types := make([]string, 0, len(mapping))
	for ct := range mapping {
		types = append(types, ct)
	}
	sort.Strings(types)
	for _, ct := range types {
		mt := MediaType(ct)
		ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(mapping[ct]), "."))
		if mt == "" || ext == "" {
			continue
		}
		t.byType[mt] = ext
		if _, taken := t.byExt[ext]; !taken {
			t.byExt[ext] = mt
		}
	}
	return t
}

// Merge returns a mapping holding base overlaid with overrides.
func Merge(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// ContentType returns the content type registered for the extension of the
// final segment of name.
func (t *Table) ContentType(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	ext := strings.TrimPrefix(path.Ext(path.Base(name)), ".")
	if ext == "" {
		return "", false
	}
	ct, ok := t.byExt[strings.ToLower(ext)]
	return ct, ok
}

// Extension returns the extension registered for contentType. Media type
// parameters such as charset are ignored.
func (t *Table) Extension(contentType string) (string, bool) {
	if t == nil {
		return "", false
	}
	ext, ok := t.byType[MediaType(contentType)]
	return ext, ok
}

// Len returns the number of registered content types.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byType)
}

// MediaType lowercases a Content-Type header value and drops its parameters.
func MediaType(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		mt, _, _ = strings.Cut(header, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
