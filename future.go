package idbstore

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Future holds the outcome of an operation running on another goroutine. It
// is completed exactly once, with either a value or an error.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Go runs fn on a new goroutine and returns a Future for its result. A panic
// inside fn completes the future with an error.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				var zero T
				f.complete(zero, panicked{p, string(debug.Stack())})
			}
		}()
		f.complete(fn())
	}()
	return f
}

// complete settles the future. Only the first call has any effect; it
// reports whether this call was the one that settled it.
func (f *Future[T]) complete(val T, err error) bool {
	settled := false
	f.once.Do(func() {
		f.val, f.err = val, err
		close(f.done)
		settled = true
	})
	return settled
}

// Done is closed once the future is completed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future is completed and returns its outcome.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Poll returns the outcome if the future is completed, and ok=false otherwise.
func (f *Future[T]) Poll() (val T, err error, ok bool) {
	select {
	case <-f.done:
		return f.val, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

func (f *Future[T]) String() string {
	if val, err, ok := f.Poll(); !ok {
		return "Future(pending)"
	} else if err != nil {
		return fmt.Sprintf("Future(error: %v)", err)
	} else {
		return fmt.Sprintf("Future(%v)", val)
	}
}

// Async exposes Manager operations that return futures instead of blocking.
type Async struct {
	m *Manager
}

func (m *Manager) Async() Async {
	return Async{m}
}

func (a Async) Open(version int) *Future[struct{}] {
	return Go(func() (struct{}, error) {
		return struct{}{}, a.m.Open(version)
	})
}

func (a Async) AddItem(rec Record) *Future[int64] {
	return Go(func() (int64, error) {
		return a.m.AddItem(rec)
	})
}

func (a Async) GetAllItems() *Future[[]Record] {
	return Go(a.m.GetAllItems)
}

func (a Async) GetItemsByIndex(indexName string, value any) *Future[[]Record] {
	return Go(func() ([]Record, error) {
		return a.m.GetItemsByIndex(indexName, value)
	})
}

func (a Async) UpdateItem(key int64, patch Record) *Future[struct{}] {
	return Go(func() (struct{}, error) {
		return struct{}{}, a.m.UpdateItem(key, patch)
	})
}

func (a Async) DeleteItem(key int64) *Future[struct{}] {
	return Go(func() (struct{}, error) {
		return struct{}{}, a.m.DeleteItem(key)
	})
}
