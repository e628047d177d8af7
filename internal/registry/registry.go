// Package registry provides a small concurrent name-to-value registry used
// for providers, breakers, and health trackers.
package registry

import "github.com/alphadose/haxmap"

// Registry is a concurrent map keyed by name. Lookups are lock-free.
type Registry[T any] interface {
	Get(name string) (T, bool)
	Set(name string, value T)
	GetOrCompute(name string, value func() T) (T, bool)
	Delete(name string)
	ForEach(fn func(name string, value T))
	Len() int
}

type hashmapRegistry[T any] struct {
	values *haxmap.Map[string, T]
}

// New builds an empty registry.
func New[T any]() Registry[T] {
	return &hashmapRegistry[T]{values: haxmap.New[string, T]()}
}

func (r *hashmapRegistry[T]) Get(name string) (T, bool) {
	return r.values.Get(name)
}

func (r *hashmapRegistry[T]) Set(name string, value T) {
	r.values.Set(name, value)
}

func (r *hashmapRegistry[T]) GetOrCompute(name string, value func() T) (T, bool) {
	return r.values.GetOrCompute(name, value)
}

func (r *hashmapRegistry[T]) Delete(name string) {
	r.values.Del(name)
}

func (r *hashmapRegistry[T]) ForEach(fn func(name string, value T)) {
	r.values.ForEach(func(name string, value T) bool {
		fn(name, value)
		return true
	})
}

func (r *hashmapRegistry[T]) Len() int {
	return int(r.values.Len())
}
