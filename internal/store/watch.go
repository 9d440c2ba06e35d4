package store

import (
	"context"
	"log/slog"
	"sync"
)

type listener struct {
	path string
	fn   func(any)
}

// watchers is the in-process listener registry shared by the backends.
type watchers struct {
	mu        sync.Mutex
	next      int
	listeners map[int]listener
}

func (w *watchers) add(path string, fn func(any)) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.listeners == nil {
		w.listeners = make(map[int]listener)
	}

	w.next++
	w.listeners[w.next] = listener{path: path, fn: fn}

	return w.next
}

func (w *watchers) remove(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.listeners, id)
}

// notify calls every listener whose path is related to one of the written
// paths with the fresh value read through get.
func (w *watchers) notify(written []string, get func(ctx context.Context, path string) (any, error)) {
	w.mu.Lock()

	var hit []listener

	for _, l := range w.listeners {
		for _, p := range written {
			if related(l.path, p) {
				hit = append(hit, l)

				break
			}
		}
	}
	w.mu.Unlock()

	for _, l := range hit {
		v, err := get(context.Background(), l.path)
		if err != nil {
			slog.Warn("store listener read failed", "path", l.path, "error", err)

			continue
		}

		l.fn(v)
	}
}

// subscribe registers fn, delivers the current value and returns the
// unsubscribe func.
func (w *watchers) subscribe(path string, fn func(any), get func(ctx context.Context, path string) (any, error)) func() {
	p, err := Clean(path)
	if err != nil {
		slog.Warn("store listener rejected", "path", path, "error", err)

		return func() {}
	}

	id := w.add(p, fn)

	if v, err := get(context.Background(), p); err == nil {
		fn(v)
	} else {
		slog.Warn("store listener read failed", "path", p, "error", err)
	}

	var once sync.Once

	return func() { once.Do(func() { w.remove(id) }) }
}
