// Package sentinel provides a const-declarable error type for sentinel errors.
//
// errors.New returns a pointer stored in a var, which consumers can reassign.
// Error is backed by a string constant instead, so sentinel errors can be
// declared as const while staying comparable through errors.Is across wrapped
// error chains.
package sentinel
