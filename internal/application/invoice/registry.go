package invoice

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// BusyClass groups workflows that share one in-flight flag per document
type BusyClass string

const (
	// BusyStatus covers confirm, accept and reject
	BusyStatus  BusyClass = "status"
	BusyDeposit BusyClass = "deposit"
	BusyDelete  BusyClass = "delete"
)

// BusyClasses returns every busy class
func BusyClasses() []BusyClass {
	return []BusyClass{BusyStatus, BusyDeposit, BusyDelete}
}

// ErrLeaseLost is returned when a flag expired or passed to another holder
var ErrLeaseLost = errors.New("busy flag is no longer held")

// Lease is one holder's claim on a busy flag. Only the holder that
// acquired the flag can extend or release it.
type Lease struct {
	Class BusyClass
	ID    int64
	Token string
}

// LoadingRegistry tracks in-flight actions per (class, document id).
// At most one holder may own a key; an absent key is not busy.
type LoadingRegistry interface {
	// TryAcquire marks the key busy and reports false if it already was
	TryAcquire(ctx context.Context, class BusyClass, id int64) (Lease, bool, error)
	// Release clears the flag, or returns ErrLeaseLost when the lease no longer owns it
	Release(ctx context.Context, lease Lease) error
	// Extend pushes back the expiry of a flag the lease still owns
	Extend(ctx context.Context, lease Lease) error
	IsBusy(ctx context.Context, class BusyClass, id int64) (bool, error)
}

type busyKey struct {
	class BusyClass
	id    int64
}

// MemoryLoadingRegistry is a process-local LoadingRegistry. Flags never expire.
type MemoryLoadingRegistry struct {
	mu   sync.Mutex
	busy map[busyKey]string
}

// NewMemoryLoadingRegistry creates an empty registry
func NewMemoryLoadingRegistry() *MemoryLoadingRegistry {
	return &MemoryLoadingRegistry{busy: make(map[busyKey]string)}
}

// TryAcquire implements LoadingRegistry
func (r *MemoryLoadingRegistry) TryAcquire(_ context.Context, class BusyClass, id int64) (Lease, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := busyKey{class, id}
	if _, held := r.busy[key]; held {
		return Lease{}, false, nil
	}
	lease := Lease{Class: class, ID: id, Token: uuid.NewString()}
	r.busy[key] = lease.Token
	return lease, true, nil
}

// Release implements LoadingRegistry
func (r *MemoryLoadingRegistry) Release(_ context.Context, lease Lease) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := busyKey{lease.Class, lease.ID}
	if token, held := r.busy[key]; !held || token != lease.Token {
		return ErrLeaseLost
	}
	delete(r.busy, key)
	return nil
}

// Extend implements LoadingRegistry
func (r *MemoryLoadingRegistry) Extend(_ context.Context, lease Lease) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, held := r.busy[busyKey{lease.Class, lease.ID}]; !held || token != lease.Token {
		return ErrLeaseLost
	}
	return nil
}

// IsBusy implements LoadingRegistry
func (r *MemoryLoadingRegistry) IsBusy(_ context.Context, class BusyClass, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, held := r.busy[busyKey{class, id}]
	return held, nil
}

// SetBusy sets or clears a flag unconditionally, as a foreign holder would
func (r *MemoryLoadingRegistry) SetBusy(class BusyClass, id int64, value bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := busyKey{class, id}
	if value {
		r.busy[key] = uuid.NewString()
		return
	}
	delete(r.busy, key)
}

// Len returns the number of busy keys
func (r *MemoryLoadingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.busy)
}
