// Package blockingpool provides a generic fixed-capacity object pool with
// blocking acquire and release semantics.
package blockingpool

// BlockingPool is a channel-backed pool that enforces strict back-pressure:
// the capacity fixed at creation bounds how many objects can be checked out
// at once.
//
//   - Get blocks until an object is available.
//   - Put blocks until there is room, i.e. until the number of outstanding
//     objects drops below capacity.
//
// The comparison engine uses it to recycle the plane buffers of forwarded
// reference frames without allocating per pair.
type BlockingPool[T any] struct {
	pool chan T
}

// NewBlockingPool creates a pool that admits at most capacity objects.
func NewBlockingPool[T any](capacity int) BlockingPool[T] {
	return BlockingPool[T]{pool: make(chan T, capacity)}
}

// Get acquires an object, blocking until one has been Put. The caller must
// eventually return it (or a replacement) with Put.
func (p *BlockingPool[T]) Get() T { return <-p.pool }

// Put returns an object to the pool, blocking while the pool is full.
func (p *BlockingPool[T]) Put(obj T) { p.pool <- obj }
