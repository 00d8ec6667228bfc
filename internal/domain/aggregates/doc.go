// Package aggregates declares the gradebook write boundary: the inputs and
// outcomes of entry writes and the typed errors they fail with.
package aggregates
