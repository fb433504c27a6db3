package vulkan

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-frames/engine/core"
)

// handleTable hands out the opaque uint64 handles the frames package works
// with and keeps the native object behind each one. Zero is never issued.
type handleTable[T any] struct {
	mu      sync.Mutex
	next    uint64
	objects map[uint64]T
}

func newHandleTable[T any]() *handleTable[T] {
	return &handleTable[T]{objects: make(map[uint64]T)}
}

func (t *handleTable[T]) add(obj T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.objects[t.next] = obj
	return t.next
}

func (t *handleTable[T]) get(h uint64) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, ok := t.objects[h]
	if !ok {
		var zero T
		return zero, fmt.Errorf("handle %d: %w", h, core.ErrInvalidHandle)
	}
	return obj, nil
}

// take removes the handle and returns what it pointed to.
func (t *handleTable[T]) take(h uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, ok := t.objects[h]
	delete(t.objects, h)
	return obj, ok
}

func (t *handleTable[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.objects)
}
