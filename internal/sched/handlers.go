package sched

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// HandlerFunc is a schedulable function. Arguments are the keyword map stored
// with the job descriptor at scheduling time.
type HandlerFunc func(ctx context.Context, args map[string]any) error

// Table maps symbolic handler references to functions. Jobs persist only the
// reference, so a restarted process resolves handlers through the table built
// at startup instead of anything that lives in memory only.
//
// References use a dotted form, e.g. "heating.AutoOff": the part before the
// last dot is the module path, the rest the function name. A reference with
// no dot has an empty module path.
//
// Thread Safety:
//   - Register and resolve are safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewTable creates an empty handler table.
func NewTable() *Table {
	return &Table{handlers: make(map[string]HandlerFunc)}
}

// Register adds a handler under the given reference.
//
// Returns:
//   - error: ErrDuplicateHandler if the reference is taken, or a validation
//     error for an empty reference or nil function
func (t *Table) Register(ref string, fn HandlerFunc) error {
	if ref == "" {
		return fmt.Errorf("sched: empty handler reference")
	}
	if fn == nil {
		return fmt.Errorf("sched: nil handler function for %q", ref)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.handlers[ref]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, ref)
	}
	t.handlers[ref] = fn
	return nil
}

// resolve looks up a handler by reference.
func (t *Table) resolve(ref string) (HandlerFunc, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.handlers[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, ref)
	}
	return fn, nil
}

// References returns every registered reference, sorted.
func (t *Table) References() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	refs := make([]string, 0, len(t.handlers))
	for ref := range t.handlers {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// splitRef breaks a dotted handler reference into module path and function
// name at the last dot.
func splitRef(ref string) (modulePath, funcName string) {
	idx := strings.LastIndex(ref, ".")
	if idx < 0 {
		return "", ref
	}
	return ref[:idx], ref[idx+1:]
}

// joinRef rebuilds a handler reference from its persisted halves.
func joinRef(modulePath, funcName string) string {
	if modulePath == "" {
		return funcName
	}
	return modulePath + "." + funcName
}
