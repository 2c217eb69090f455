package allocatable

import (
	"errors"
	"reflect"
	"sync"

	"github.com/ajitpratap0/objpool/pkg/locking"
	"github.com/ajitpratap0/objpool/pkg/pool"
)

// Compact selects the smallest chunk size, for types with few live values.
func Compact() pool.Option {
	return pool.WithChunkSize(pool.MinChunkSize)
}

// Default selects the default chunk size.
func Default() pool.Option {
	return pool.WithChunkSize(pool.DefaultChunkSize)
}

// Registry holds one mutex-locked Allocatable per type, created on first
// use. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu     sync.Mutex
	opts   []pool.Option
	pools  map[reflect.Type]any
	order  []closer
	closed bool
}

type closer interface {
	Close() error
}

// NewRegistry creates a registry whose pools are built with opts.
func NewRegistry(opts ...pool.Option) *Registry {
	return &Registry{opts: opts, pools: make(map[reflect.Type]any)}
}

// For returns the Allocatable for T, creating it on first use.
func For[T any](r *Registry) (*Allocatable[T, *locking.Mutex], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		panic("objpool: registry used after Close")
	}
	if a, ok := r.pools[typ]; ok {
		return a.(*Allocatable[T, *locking.Mutex]), nil
	}

	a, err := New[T](&locking.Mutex{}, r.opts...)
	if err != nil {
		return nil, err
	}
	r.pools[typ] = a
	r.order = append(r.order, a)
	return a, nil
}

// Len returns the number of types with a pool.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools)
}

// Close closes every pool in creation order.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, c := range r.order {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.pools, r.order = nil, nil
	return errors.Join(errs...)
}
