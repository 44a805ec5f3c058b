package device

import (
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry is the shared collection of observed devices, keyed by
// address and iterated in discovery order. The session event loop is
// the single writer; consumers read via Snapshot. All entity state
// hangs off this lock — live *Device pointers must only be touched
// inside Mutate/Read callbacks.
type Registry struct {
	mu      sync.RWMutex
	devices *orderedmap.OrderedMap[string, *Device]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: orderedmap.New[string, *Device](),
	}
}

// Collection is the view handed to Mutate and Read callbacks. It is
// only valid for the duration of the callback.
type Collection struct {
	devices *orderedmap.OrderedMap[string, *Device]
}

// Mutate runs fn with exclusive access to the collection.
func (r *Registry) Mutate(fn func(c *Collection)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&Collection{devices: r.devices})
}

// Read runs fn with shared access to the collection.
func (r *Registry) Read(fn func(c *Collection)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(&Collection{devices: r.devices})
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices.Len()
}

// GetOrCreate returns the device for the given address, creating and
// appending it on first sight. The address match is case-insensitive.
func (c *Collection) GetOrCreate(address string) *Device {
	address = strings.ToUpper(address)
	if d, ok := c.devices.Get(address); ok {
		return d
	}
	d := NewDevice(address)
	c.devices.Set(address, d)
	return d
}

// ByAddress returns the device with the given address, or nil.
func (c *Collection) ByAddress(address string) *Device {
	d, _ := c.devices.Get(strings.ToUpper(address))
	return d
}

// ByConnection returns the device currently holding the given
// connection handle, or nil.
func (c *Collection) ByConnection(handle uint8) *Device {
	for pair := c.devices.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Handle != nil && *pair.Value.Handle == handle {
			return pair.Value
		}
	}
	return nil
}

// Connecting returns the device with a connection attempt in flight,
// or nil. At most one attempt may be in flight across the collection.
func (c *Collection) Connecting() *Device {
	for pair := c.devices.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Connecting() {
			return pair.Value
		}
	}
	return nil
}

// Each calls fn for every device in discovery order until fn returns
// false.
func (c *Collection) Each(fn func(d *Device) bool) {
	for pair := c.devices.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Value) {
			return
		}
	}
}
