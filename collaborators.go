package mapbatch

import "context"

// Upstream is the lazy source iterator producing input records, external to
// this package per spec §6. Next is not required to be safe for concurrent
// use with itself; the operator serializes calls to it under inner_mu (see
// pullUpstream in invocation.go), matching the original op's guarantee that upstream is
// consumed strictly sequentially.
type Upstream interface {
	Next(ctx context.Context) (rec Record, endOfInput bool, err error)
}

// CheckpointableUpstream is implemented by Upstream values that can save
// and restore their own iteration state. The operator delegates to it from
// Save/Restore (spec §4.5: "the upstream iterator state (delegated)"); an
// Upstream that doesn't implement it is simply not checkpointed.
type CheckpointableUpstream interface {
	SaveState(store CheckpointStore, prefix string) error
	RestoreState(store CheckpointStore, prefix string) error
}

// Transform is the user-supplied asynchronous callable. RunAsync must
// invoke done exactly once, from any goroutine, matching spec §6's
// run_async(ctx, input, &out_result, completion_cb(status)) collaborator.
type Transform interface {
	RunAsync(ctx context.Context, rec Record, done func(Result, error))
}

// TransformFunc adapts a synchronous function to Transform, for tests and
// simple transforms that don't need to hop threads themselves.
type TransformFunc func(ctx context.Context, rec Record) (Result, error)

func (f TransformFunc) RunAsync(ctx context.Context, rec Record, done func(Result, error)) {
	done(f(ctx, rec))
}

// Runner is the host runtime's execution facility: it schedules a closure
// on a worker so the dispatcher's own goroutine never blocks on a
// transform submission. The upstream pull is not run through the Runner:
// the dispatcher goroutine performs it itself (see dispatchOne). Grounded on the original op's
// `(*ctx->runner())(closure)` and the teacher's generator-goroutine handoff
// in local/internal/bundles.go.
type Runner interface {
	Run(f func())
}

// GoRunner is the simplest Runner: it launches f on a new goroutine, the Go
// analogue of a thread-pool submission when no bounded pool is supplied.
type GoRunner struct{}

func (GoRunner) Run(f func()) { go f() }

// CheckpointStore is the key-value checkpoint reader/writer collaborator
// from spec §6. Keys are fully-qualified by the caller (checkpoint.go),
// matching the original's full_name-prefixed key layout.
type CheckpointStore interface {
	WriteScalar(key string, v int64) error
	WriteFlag(key string) error // presence-only flag, e.g. end_of_input
	WriteValue(key string, v Value) error
	WriteString(key string, s string) error

	ReadScalar(key string) (int64, error)
	ReadValue(key string) (Value, error)
	ReadString(key string) (string, error)
	Contains(key string) bool
}
