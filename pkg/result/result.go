// Package result carries the outcome of best-effort lookups, keeping "the
// thing does not exist" apart from "we could not find out".
package result

// Result is the outcome of a lookup that is allowed to come back empty.
// Exactly one of three states holds: found (Found true), not found (Found
// false, Err nil) or failed (Err set).
type Result[T any] struct {
	Value T
	Found bool
	Err   error
}

func Of[T any](v T) Result[T] {
	return Result[T]{Value: v, Found: true}
}

func NotFound[T any]() Result[T] {
	return Result[T]{}
}

func Failed[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Failed reports whether the lookup itself broke.
func (r Result[T]) Failed() bool {
	return r.Err != nil
}

// Get returns the value and whether it was found.
func (r Result[T]) Get() (T, bool) {
	return r.Value, r.Found
}

// OrElse returns the value if found and fallback otherwise.
func (r Result[T]) OrElse(fallback T) T {
	if r.Found {
		return r.Value
	}
	return fallback
}
