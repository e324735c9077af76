package calendar

import (
	"context"
	"sync"
)

// Environment holds the calendar Index that subsystems treat as "active".
// Installing a new Index never mutates the one it replaces, so readers that
// fetched the previous Index keep a consistent view.
//
// Callers should fetch the active Index each time they need it rather than
// holding on to it: the active Index can change between calls.
type Environment struct {
	mu      sync.RWMutex
	current *Index
	saved   []frame // indexes displaced by Enter, innermost last
	nextID  uint64
}

// frame is one Enter scope: the Index it displaced and the scope's id.
type frame struct {
	prev *Index
	id   uint64
}

// NewEnvironment returns an Environment with idx active. idx may be nil.
func NewEnvironment(idx *Index) *Environment {
	return &Environment{current: idx}
}

// Current returns the active Index, or nil if none is installed.
func (e *Environment) Current() *Index {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Set replaces the active Index outside of any scope.
func (e *Environment) Set(idx *Index) {
	e.mu.Lock()
	e.current = idx
	e.mu.Unlock()
}

// Enter saves the active Index and installs idx. The returned function
// restores the saved Index; it is safe to call more than once.
//
//	restore := env.Enter(idx)
//	defer restore()
func (e *Environment) Enter(idx *Index) (restore func()) {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.saved = append(e.saved, frame{prev: e.current, id: id})
	depth := len(e.saved)
	e.current = idx
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			// Restoring an outer scope first also unwinds the inner ones, after
			// which the inner restore finds its frame gone or replaced.
			if len(e.saved) < depth || e.saved[depth-1].id != id {
				return
			}
			e.current = e.saved[depth-1].prev
			e.saved = e.saved[:depth-1]
		})
	}
}

// Scope runs fn with idx active and restores the previous Index when fn
// returns, fails, or panics.
func (e *Environment) Scope(idx *Index, fn func(*Index) error) error {
	restore := e.Enter(idx)
	defer restore()
	return fn(idx)
}

// Default is the process-wide Environment.
var Default = NewEnvironment(nil)

// Active returns the Index active in Default.
//
// Do not keep the result across operations. Call Active again each time,
// since a scope may have replaced the Index in between.
func Active() *Index { return Default.Current() }

// SetActive installs idx in Default.
func SetActive(idx *Index) { Default.Set(idx) }

type ctxKey struct{}

// WithIndex returns a context carrying idx, for request-scoped overrides.
func WithIndex(ctx context.Context, idx *Index) context.Context {
	return context.WithValue(ctx, ctxKey{}, idx)
}

// FromContext returns the Index carried by ctx, falling back to the one
// active in Default.
func FromContext(ctx context.Context) *Index {
	if idx, ok := ctx.Value(ctxKey{}).(*Index); ok && idx != nil {
		return idx
	}
	return Active()
}
