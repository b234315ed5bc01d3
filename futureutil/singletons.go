package futureutil

import (
	"reflect"
	"sync"
)

// Optional is a small present/absent wrapper, standing in for
// java.util.Optional where a Future's value needs to distinguish "not
// present" from the zero value of T.
type Optional[T any] struct {
	value   T
	present bool
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// None is the absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the wrapped value and whether it was present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

var (
	trueFuture  = Completed(true)
	falseFuture = Completed(false)
)

// True returns a cached Future already resolved to true.
func True() *Future[bool] { return trueFuture }

// False returns a cached Future already resolved to false.
func False() *Future[bool] { return falseFuture }

// These caches memoize one value per distinct T instantiation, keyed by
// T's reflect.Type. Go has no native per-generic-instantiation static
// storage, so the original's single shared nullCompletedFuture becomes
// one lazily-built singleton per T here instead of one overall.
var (
	nullCache          sync.Map // reflect.Type -> *Future[T]
	emptyOptionalCache sync.Map // reflect.Type -> *Future[Optional[T]]
	emptySliceCache    sync.Map // reflect.Type -> *Future[[]T]
)

func loadOrBuild(cache *sync.Map, key reflect.Type, build func() any) any {
	if v, ok := cache.Load(key); ok {
		return v
	}
	actual, _ := cache.LoadOrStore(key, build())
	return actual
}

// Null returns a cached Future resolved to the zero value of T. Each
// distinct T gets its own lazily-initialized singleton.
func Null[T any]() *Future[T] {
	key := reflect.TypeFor[T]()
	v := loadOrBuild(&nullCache, key, func() any {
		var zero T
		return Completed(zero)
	})
	return v.(*Future[T])
}

// EmptyOptional returns a cached Future resolved to an absent
// Optional[T].
func EmptyOptional[T any]() *Future[Optional[T]] {
	key := reflect.TypeFor[T]()
	v := loadOrBuild(&emptyOptionalCache, key, func() any {
		return Completed(None[T]())
	})
	return v.(*Future[Optional[T]])
}

// EmptySlice returns a cached Future resolved to a nil (empty) []T.
func EmptySlice[T any]() *Future[[]T] {
	key := reflect.TypeFor[T]()
	v := loadOrBuild(&emptySliceCache, key, func() any {
		return Completed[[]T](nil)
	})
	return v.(*Future[[]T])
}
