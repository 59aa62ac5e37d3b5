// Package mdxlifecycle implements the MDX compilation lifecycle (§4.9):
// the cache + in-flight dedup used by worker-mode compiles, and the
// small state machine governing a block's meta.mdxStatus regardless of
// compile_mode. Nothing in the example pack imports
// golang.org/x/sync/singleflight, so the in-flight dedup here is a
// hand-rolled waiter map kept beside an internal/lru result cache, the
// same way pkg/lint/node_cache.go
// hand-rolls its own build-once memoization (documented in DESIGN.md).
package mdxlifecycle

import (
	"context"
	"sync"

	"github.com/parsehook/mdstream/internal/lru"
	"github.com/parsehook/mdstream/pkg/mdoc"
	"github.com/parsehook/mdstream/pkg/wire"
)

// DefaultCacheSize is the worker-mode compile cache capacity (§4.9).
const DefaultCacheSize = 128

// CompileMode selects how a retyped mdx block gets its compiled module.
type CompileMode string

const (
	ModeServer CompileMode = "server"
	ModeWorker CompileMode = "worker"
)

// Result is a finished compile, cached by block id.
type Result struct {
	Module *mdoc.MDXModule
	Err    error
}

type waiter struct {
	done chan struct{}
	res  Result
}

// Manager owns the worker-mode compile cache and in-flight dedup map,
// and tracks, per block id, whether a server-mode compile is still
// pending so a stray MDX_COMPILED/MDX_ERROR for a since-discarded block
// (e.g. after INIT) is ignored.
type Manager struct {
	compiler wire.MdxCompiler

	mu       sync.Mutex
	cache    *lru.Cache[string, Result]
	inflight map[string]*waiter
	pending  map[string]bool
	epoch    int
}

// New builds a Manager. compiler may be nil; worker-mode compiles then
// immediately fail with meta.mdxStatus="error".
func New(compiler wire.MdxCompiler) *Manager {
	return &Manager{
		compiler: compiler,
		cache:    lru.New[string, Result](DefaultCacheSize),
		inflight: map[string]*waiter{},
		pending:  map[string]bool{},
	}
}

// Reset drops all cache/in-flight/pending state and bumps the epoch, so
// in-flight compiles from before an INIT are recognized as stale once
// they return (§4.10's cancellation rule).
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Clear()
	m.inflight = map[string]*waiter{}
	m.pending = map[string]bool{}
	m.epoch++
}

// MarkPending records that blockID has entered meta.mdxStatus=pending,
// regardless of compile mode.
func (m *Manager) MarkPending(blockID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[blockID] = true
}

// IsPending reports whether blockID is still awaiting a compile result.
func (m *Manager) IsPending(blockID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[blockID]
}

// Resolve marks blockID as no longer pending (a compile result arrived,
// in either mode).
func (m *Manager) Resolve(blockID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, blockID)
}

// CompileWorker runs a worker-mode compile for blockID/source, reusing a
// cached result and deduplicating concurrent requests for the same
// block id. It blocks the calling goroutine (intended to be invoked
// from a goroutine the pipeline controller spawns, not its main loop).
func (m *Manager) CompileWorker(ctx context.Context, blockID, source string) Result {
	m.mu.Lock()
	epoch := m.epoch
	if cached, ok := m.cache.Get(blockID); ok {
		m.mu.Unlock()
		return cached
	}
	if w, ok := m.inflight[blockID]; ok {
		m.mu.Unlock()
		<-w.done
		return w.res
	}
	w := &waiter{done: make(chan struct{})}
	m.inflight[blockID] = w
	m.mu.Unlock()

	var res Result
	if m.compiler == nil {
		res = Result{Err: errNoCompiler}
	} else {
		out, err := m.compiler.Compile(ctx, source)
		if err != nil {
			res = Result{Err: err}
		} else {
			res = Result{Module: &mdoc.MDXModule{ID: blockID, Code: out.Code, Deps: out.Deps, Source: "worker"}}
		}
	}

	m.mu.Lock()
	if m.epoch == epoch {
		m.cache.Put(blockID, res)
	}
	delete(m.inflight, blockID)
	w.res = res
	m.mu.Unlock()
	close(w.done)
	return res
}

var errNoCompiler = compileError("mdxlifecycle: no compiler configured")

type compileError string

func (e compileError) Error() string { return string(e) }
