package ingestion

import "github.com/poiesic/voxbank/core"

type outcomeKind int

const (
	proceed outcomeKind = iota
	skip
	fatal
)

// outcome is the result of one pipeline step: a value to carry forward, a
// reason to skip the row, or an error that ends the run.
type outcome[T any] struct {
	kind   outcomeKind
	value  T
	reason core.SkipReason
	cause  string
	err    error
}

func proceedWith[T any](v T) outcome[T] {
	return outcome[T]{kind: proceed, value: v}
}

func skipWith[T any](reason core.SkipReason, cause string) outcome[T] {
	return outcome[T]{kind: skip, reason: reason, cause: cause}
}

func fatalWith[T any](err error) outcome[T] {
	return outcome[T]{kind: fatal, err: err}
}

// forward re-types a non-proceed outcome so it can leave a later step.
func forward[T, U any](o outcome[U]) outcome[T] {
	return outcome[T]{kind: o.kind, reason: o.reason, cause: o.cause, err: o.err}
}
