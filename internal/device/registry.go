package device

import (
	"fmt"
	"sync"

	"github.com/Iron-Ham/capctl/internal/errors"
)

// Info describes one enumerated device.
type Info struct {
	Name   string
	Handle Handle
}

// Enumerator lists the instruments available to the controller.
type Enumerator interface {
	// ListDevices returns the devices and the index of the selected one
	// (-1 when the list is empty). Handles from a previous call are invalid.
	ListDevices() ([]Info, int, error)
	// Open resolves a handle from the latest ListDevices call.
	Open(h Handle) (Driver, error)
}

// Registry is an Enumerator over a fixed set of drivers. Every ListDevices
// call starts a new enumeration pass and issues fresh handles.
type Registry struct {
	mu         sync.Mutex
	drivers    []Driver
	selected   int
	generation uint64
	handles    map[Handle]int
}

// NewRegistry creates a Registry. The first driver is selected.
func NewRegistry(drivers ...Driver) *Registry {
	return &Registry{
		drivers: append([]Driver(nil), drivers...),
		handles: make(map[Handle]int),
	}
}

// Add appends a driver.
func (r *Registry) Add(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers = append(r.drivers, d)
}

// Remove drops the driver with the given name.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.drivers {
		if d.Name() == name {
			r.drivers = append(r.drivers[:i:i], r.drivers[i+1:]...)
			if r.selected >= len(r.drivers) {
				r.selected = len(r.drivers) - 1
			}
			if r.selected < 0 {
				r.selected = 0
			}
			return true
		}
	}
	return false
}

// ListDevices implements Enumerator.
func (r *Registry) ListDevices() ([]Info, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++
	r.handles = make(map[Handle]int, len(r.drivers))

	infos := make([]Info, len(r.drivers))
	for i, d := range r.drivers {
		h := Handle(r.generation<<16 | uint64(i+1))
		r.handles[h] = i
		infos[i] = Info{Name: d.Name(), Handle: h}
	}

	if len(infos) == 0 {
		return infos, -1, nil
	}
	return infos, r.selected, nil
}

// Open implements Enumerator and marks the device as selected.
func (r *Registry) Open(h Handle) (Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.handles[h]
	if !ok {
		return nil, fmt.Errorf("open handle %#x: %w", uint64(h), errors.ErrNoDevice)
	}
	r.selected = i
	return r.drivers[i], nil
}
