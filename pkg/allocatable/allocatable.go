// Package allocatable serves values of one Go type from a dedicated pool.
//
//	points, err := allocatable.New[Point](&locking.Mutex{})
//	if err != nil {
//		return err
//	}
//	defer points.Close()
//
//	p := points.New()
//	p.X, p.Y = 1, 2
//	_ = points.Delete(p)
//
// Values live in chunk memory the garbage collector does not scan, so T
// must not contain pointers, strings, slices, maps, channels, functions or
// interfaces. New rejects such types.
package allocatable

import (
	"io"
	"reflect"
	"unsafe"

	"github.com/ajitpratap0/objpool/pkg/locking"
	"github.com/ajitpratap0/objpool/pkg/pool"
	"github.com/ajitpratap0/objpool/pkg/poolerrors"
)

// Allocatable hands out *T values backed by a pool sized to T.
type Allocatable[T any, S locking.Strategy] struct {
	pool *pool.Pool[S]
	size int
}

// New creates an Allocatable with its own pool. opts are applied after the
// size and alignment derived from T.
func New[T any, S locking.Strategy](strategy S, opts ...pool.Option) (*Allocatable[T, S], error) {
	var zero T
	typ := reflect.TypeOf(&zero).Elem()
	if hasPointers(typ) {
		return nil, poolerrors.New(poolerrors.ErrorTypeValidation, "type contains pointers").
			WithDetail("type", typ.String())
	}

	size := max(int(unsafe.Sizeof(zero)), 1)
	align := max(int(unsafe.Alignof(zero)), pool.Alignment)

	all := append([]pool.Option{pool.WithName(typ.String()), pool.WithAlignment(align)}, opts...)
	p, err := pool.New(strategy, size, all...)
	if err != nil {
		return nil, err
	}
	if p.Layout().Alignment < align {
		_ = p.Close()
		return nil, poolerrors.New(poolerrors.ErrorTypeValidation, "alignment below type alignment").
			WithDetail("type", typ.String()).
			WithDetail("alignment", p.Layout().Alignment).
			WithDetail("required", align)
	}
	return &Allocatable[T, S]{pool: p, size: size}, nil
}

// New returns a zeroed T.
func (a *Allocatable[T, S]) New() *T {
	b := a.pool.Allocate(a.size)
	clear(b)
	return (*T)(unsafe.Pointer(unsafe.SliceData(b)))
}

// Delete returns v to the pool. Deleting nil is a no-op.
func (a *Allocatable[T, S]) Delete(v *T) error {
	if v == nil {
		return nil
	}
	return a.pool.Release(unsafe.Slice((*byte)(unsafe.Pointer(v)), a.size))
}

// Info writes the pool occupancy dump to w.
func (a *Allocatable[T, S]) Info(w io.Writer) error {
	return a.pool.WriteInfo(w)
}

// Pool returns the underlying pool.
func (a *Allocatable[T, S]) Pool() *pool.Pool[S] {
	return a.pool
}

// Close releases the pool. Values handed out by New must not be used
// afterwards.
func (a *Allocatable[T, S]) Close() error {
	return a.pool.Close()
}

// hasPointers reports whether values of t hold anything the garbage
// collector has to trace.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
