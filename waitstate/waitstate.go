package waitstate

import (
	"context"
	"errors"
	"sync"
)

var ErrorClosed = errors.New("WaitState is closed")

// WaitState holds a value that goroutines can wait on. Every Set increments an
// update counter so waiters can ask for a value newer than the one they have seen.
type WaitState[T any] struct {
	sync.Mutex
	value T

	updateCount uint64
	updateChan  chan (struct{})

	closed bool
}

func (w *WaitState[T]) closeChan() {
	if w.updateChan != nil {
		close(w.updateChan)
		w.updateChan = nil
	}
}

func (w *WaitState[T]) Set(new T) {
	w.Lock()
	defer w.Unlock()

	w.value = new
	w.updateCount++
	w.closeChan()
}

// Update atomically replaces the value with the result of updateFunc. If updateFunc
// returns false the value is left alone and waiters are not woken.
func (w *WaitState[T]) Update(updateFunc func(current T) (T, bool)) bool {
	w.Lock()
	defer w.Unlock()

	new, ok := updateFunc(w.value)
	if !ok {
		return false
	}

	w.value = new
	w.updateCount++
	w.closeChan()
	return true
}

// Peek returns the current value without waiting
func (w *WaitState[T]) Peek() (uint64, T) {
	w.Lock()
	defer w.Unlock()

	return w.updateCount, w.value
}

func (w *WaitState[T]) Close() {
	w.Lock()
	defer w.Unlock()
	w.closed = true
	w.closeChan()
}

func (w *WaitState[T]) Get(ctx context.Context, checkFunc func(updateCount uint64, value T) bool) (uint64, T, error) {
	for {
		w.Lock()

		if w.closed {
			w.Unlock()
			var zero T
			return 0, zero, ErrorClosed
		}

		tmpCount := w.updateCount
		tmpValue := w.value

		if checkFunc == nil || checkFunc(w.updateCount, w.value) {
			w.Unlock()
			return tmpCount, tmpValue, nil
		}

		if w.updateChan == nil {
			w.updateChan = make(chan (struct{}))
		}
		c := w.updateChan
		w.Unlock()

		select {
		case <-ctx.Done():
			return tmpCount, tmpValue, ctx.Err()
		case <-c:
		}
	}
}

func (w *WaitState[T]) GetNewer(ctx context.Context, lastCount uint64) (uint64, T, error) {
	return w.Get(ctx, func(updateCount uint64, value T) bool {
		return updateCount > lastCount
	})
}
