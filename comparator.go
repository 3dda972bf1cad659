package vaultkv

// comparator.go implements key comparison.
//
// Comparator defines the total ordering over user keys in the database.
// The default is bytewise comparison. Custom comparators enable
// application-specific key ordering.

import "bytes"

// Comparator defines a total ordering over user keys.
type Comparator interface {
	// Compare returns a value < 0 if a < b, 0 if a == b, > 0 if a > b.
	Compare(a, b []byte) int

	// Name returns the name of the comparator. It is recorded in the
	// MANIFEST and checked on recovery: opening an existing database
	// with a different comparator is a configuration error, not
	// something to silently tolerate.
	Name() string
}

// BytewiseComparator is the default comparator: keys are ordered
// lexicographically by their raw bytes.
type BytewiseComparator struct{}

// Compare compares two keys lexicographically.
func (c BytewiseComparator) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Name returns the comparator name.
func (c BytewiseComparator) Name() string {
	return "vaultkv.BytewiseComparator"
}

// DefaultComparator returns the default bytewise comparator.
func DefaultComparator() Comparator {
	return BytewiseComparator{}
}
