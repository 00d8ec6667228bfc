// Package aggregates implements the gradebook write boundary on top of the
// table repos in internal/data/repos. Each entry write and its history row
// commit in one transaction.
package aggregates
