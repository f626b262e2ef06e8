// Package cache provides small in-process caches for lookups that are
// read far more often than they change.
package cache

// Cache defines a generic cache interface
type Cache[K comparable, V any] interface {
	// Get retrieves a value from the cache
	Get(key K) (V, bool)

	// Set stores a value in the cache
	Set(key K, value V)

	// Delete removes a key from the cache
	Delete(key K)

	// Purge empties the cache
	Purge()

	// Size returns the current number of items in the cache
	Size() int
}

// Nop is a Cache that never stores anything.
type Nop[K comparable, V any] struct{}

func (Nop[K, V]) Get(K) (V, bool) {
	var zero V
	return zero, false
}

func (Nop[K, V]) Set(K, V)  {}
func (Nop[K, V]) Delete(K)  {}
func (Nop[K, V]) Purge()    {}
func (Nop[K, V]) Size() int { return 0 }
