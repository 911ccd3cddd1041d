package bundle

import (
	"path"
	"strings"
)

// Artifact is a named unit of build output. Bytes must not be mutated once the
// artifact has been inserted into a Set.
type Artifact struct {
	// Name is the slash-separated output path and the unique key in a Set.
	Name string `json:"name"`
	// Bytes is the raw content.
	Bytes []byte `json:"-"`
	// Emitted reports whether the artifact was already written to the output.
	Emitted bool `json:"emitted"`
	// Kind is a coarse content category derived from the name's extension.
	Kind string `json:"kind"`
	// Origin ties the artifact back to the entrypoint that produced it.
	Origin string `json:"origin,omitempty"`
	// Entry flags artifacts the bundler produced as entry points.
	Entry bool `json:"entry,omitempty"`
	// ContentType is optional; empty means "infer at serve time".
	ContentType string `json:"content_type,omitempty"`
}

// Size returns the content length in bytes.
func (a Artifact) Size() int {
	return len(a.Bytes)
}

// KindFromName derives the artifact kind from the extension of the final path
// segment, lowercased and without the dot. Names without an extension have no
// kind.
func KindFromName(name string) string {
	ext := path.Ext(path.Base(name))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
