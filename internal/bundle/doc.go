// Package bundle models the bundler's output: named artifacts collected in a
// shared, synchronized set that the finalize plugins read and mutate.
package bundle
