// Package ssg implements the static site generation finalize hook: it writes
// the entrypoint artifact to a temporary module, loads its handler, crawls it
// through the origin resolver, and folds the captured responses back into the
// artifact set.
package ssg
