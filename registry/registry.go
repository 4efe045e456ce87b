// Package registry holds the process-wide set of active flights.
//
// All operations on a Registry are serialized by a single lock: readers share
// it, writers hold it exclusively. No operation performs I/O, so the lock is
// never held for longer than a pass over the flight slice.
package registry

import (
	"reflect"
	"sync"
	"time"

	"github.com/vainnor/active-flights/types"
)

// Listener is told about every successful mutation, in mutation order.
// FlightsChanged runs while the registry lock is held; it must not block and
// must not call back into the Registry.
type Listener interface {
	FlightsChanged(ev types.Event)
}

type Registry struct {
	mu        sync.RWMutex
	flights   []types.FlightRecord
	listeners []Listener
	now       func() time.Time
}

func New(listeners ...Listener) *Registry {
	return &Registry{
		flights:   []types.FlightRecord{},
		listeners: listeners,
		now:       time.Now,
	}
}

// List returns every flight in insertion order. The records are copies.
func (r *Registry) List() []types.FlightRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.FlightRecord, len(r.flights))
	for i, f := range r.flights {
		out[i] = f.Clone()
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.flights)
}

// Add appends a new flight. Duplicate usernames are accepted.
func (r *Registry) Add(fields types.FlightRecord) error {
	if missing := MissingRequired(fields); len(missing) > 0 {
		return &MissingFieldsError{Keys: missing}
	}
	record := fields.Clone()
	username, _ := record.Username()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.flights = append(r.flights, record)
	r.notify(types.Event{Kind: types.EventAdded, Username: username, Record: record.Clone()})
	return nil
}

// UpdateByUsername merges fields into the first flight reported by the same
// username. The username itself is never rewritten and later flights sharing
// it are left alone.
func (r *Registry) UpdateByUsername(fields types.FlightRecord) error {
	username, ok := fields.Username()
	if !ok {
		return ErrMissingKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, flight := range r.flights {
		if !sameUsername(flight, username) {
			continue
		}
		for k, v := range fields {
			if k == types.FieldUsername {
				continue
			}
			flight[k] = v
		}
		r.notify(types.Event{Kind: types.EventUpdated, Username: username, Record: flight.Clone()})
		return nil
	}
	return ErrNotFound
}

// RemoveByUsername drops every flight reported by the username and returns
// how many were removed. Removing nothing is not an error.
func (r *Registry) RemoveByUsername(fields types.FlightRecord) (int, error) {
	username, ok := fields.Username()
	if !ok {
		return 0, ErrMissingKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := make([]types.FlightRecord, 0, len(r.flights))
	for _, flight := range r.flights {
		if !sameUsername(flight, username) {
			kept = append(kept, flight)
		}
	}
	removed := len(r.flights) - len(kept)
	r.flights = kept
	if removed > 0 {
		r.notify(types.Event{Kind: types.EventRemoved, Username: username, Removed: removed})
	}
	return removed, nil
}

// MissingRequired returns the required keys absent from fields, in
// declaration order.
func MissingRequired(fields types.FlightRecord) []string {
	var missing []string
	for _, key := range types.RequiredFields {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

func (r *Registry) notify(ev types.Event) {
	if len(r.listeners) == 0 {
		return
	}
	ev.Time = r.now()
	for _, l := range r.listeners {
		l.FlightsChanged(ev)
	}
}

// Values may be maps or slices when clients send nested JSON, so plain ==
// would panic.
func sameUsername(flight types.FlightRecord, username any) bool {
	v, ok := flight.Username()
	return ok && reflect.DeepEqual(v, username)
}
