package core

import (
	"fmt"
	"sync"
)

// The process-wide table of live instances. Hosts address cores by an
// opaque integer handle and must re-validate it before each use, since
// any instance can be shut down independently. The mutex only guards the
// handle table; individual instances provide no locking of their own.
var (
	registryMu sync.Mutex
	registry   = make(map[int]*Core)
	nextHandle = 1
)

// MakeCore creates a new instance and returns its handle. The instance
// still needs Init and PrepareToRun before it can run.
func MakeCore(cfg Config) int {
	registryMu.Lock()
	defer registryMu.Unlock()
	h := nextHandle
	nextHandle++
	registry[h] = New(cfg)
	return h
}

// GetCore resolves a handle to its instance. Unknown or deleted handles
// fail with ErrInstanceInvalid.
func GetCore(handle int) (*Core, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	c, ok := registry[handle]
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", ErrInstanceInvalid, handle)
	}
	return c, nil
}

// DeleteCore shuts the instance down and frees its handle.
func DeleteCore(handle int) error {
	registryMu.Lock()
	c, ok := registry[handle]
	if ok {
		delete(registry, handle)
	}
	registryMu.Unlock()

	if !ok {
		return fmt.Errorf("%w: handle %d", ErrInstanceInvalid, handle)
	}
	if c.Active() {
		return c.ShutDown()
	}
	return nil
}

// LiveCores returns the number of currently registered instances.
func LiveCores() int {
	registryMu.Lock()
	defer registryMu.Unlock()
	return len(registry)
}
