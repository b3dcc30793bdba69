package storage

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
)

// MemoryDriver is a non-persistent Driver, used by tests and by the
// coordinator's default configuration when no on-disk path is supplied.
// It satisfies the same ordered-prefix-scan contract as BadgerDriver by
// keeping each tree's keys in a map and sorting all of them
// (sortedKeys) whenever an ordered scan is made.
type MemoryDriver struct {
	mu    sync.Mutex
	trees map[string]*memoryTree
}

func NewMemory() *MemoryDriver {
	return &MemoryDriver{trees: make(map[string]*memoryTree)}
}

func (d *MemoryDriver) OpenTree(name string) (Tree, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.trees[name]
	if !ok {
		t = &memoryTree{name: name, data: make(map[string][]byte)}
		d.trees[name] = t
	}
	return t, nil
}

func (d *MemoryDriver) ListTrees() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.trees))
	for name := range d.trees {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (d *MemoryDriver) DropTree(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.trees[name]; !ok {
		return NotFound(fmt.Sprintf("tree %q does not exist", name))
	}
	delete(d.trees, name)
	return nil
}

func (d *MemoryDriver) Flush() error { return nil }
func (d *MemoryDriver) Close() error { return nil }

type memoryTree struct {
	mu   sync.RWMutex
	name string
	data map[string][]byte
}

func (t *memoryTree) Name() string { return t.name }

func (t *memoryTree) Get(key []byte) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.data[string(key)]
	if !ok {
		return nil, NotFound(fmt.Sprintf("key %q not found in tree %q", key, t.name))
	}
	return append([]byte(nil), v...), nil
}

func (t *memoryTree) Put(key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (t *memoryTree) Delete(key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, string(key))
	return nil
}

func (t *memoryTree) Has(key []byte) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.data[string(key)]
	return ok, nil
}

func (t *memoryTree) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = make(map[string][]byte)
	return nil
}

func (t *memoryTree) Empty() (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data) == 0, nil
}

func (t *memoryTree) sortedKeys() []string {
	keys := make([]string, 0, len(t.data))
	for k := range t.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t *memoryTree) All(fn func(k, v []byte) bool) error {
	return t.Prefix(nil, fn)
}

func (t *memoryTree) Prefix(prefix []byte, fn func(k, v []byte) bool) error {
	t.mu.RLock()
	keys := t.sortedKeys()
	snapshot := make(map[string][]byte, len(t.data))
	for k, v := range t.data {
		snapshot[k] = v
	}
	t.mu.RUnlock()

	for _, k := range keys {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if !fn([]byte(k), snapshot[k]) {
			break
		}
	}
	return nil
}

func (t *memoryTree) Batch(ops []BatchOp) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, op := range ops {
		if op.Remove {
			delete(t.data, string(op.Key))
			continue
		}
		t.data[string(op.Key)] = append([]byte(nil), op.Value...)
	}
	return nil
}
