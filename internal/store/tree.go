package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidPath is returned for paths with forbidden characters.
	ErrInvalidPath = errors.New("invalid path")
	// ErrOverlappingUpdate is returned when one key of a multi-location
	// update is an ancestor of another.
	ErrOverlappingUpdate = errors.New("overlapping update paths")
)

// Tree is a hierarchical key-value document addressed by slash-separated paths.
type Tree interface {
	// Get returns the value at path, or nil when nothing is stored there.
	Get(ctx context.Context, path string) (any, error)
	// Set replaces the value at path. A nil value removes it.
	Set(ctx context.Context, path string, value any) error
	// Update writes every key of values relative to path in one atomic
	// step. Keys may contain slashes; nil values remove.
	Update(ctx context.Context, path string, values map[string]any) error
	// Remove deletes the value at path. Removing a missing path is not an error.
	Remove(ctx context.Context, path string) error
	// Push allocates a new child key under path without writing anything.
	Push(ctx context.Context, path string) (string, error)
	// OnValue calls fn with the current value at path, then again after
	// every write that touches path. The returned func unsubscribes.
	OnValue(path string, fn func(any)) func()
	// Close releases the backend.
	Close() error
}

// OpError describes a failed store operation.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewKey returns a fresh, time-ordered, unpredictable child key.
func NewKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// Join joins path segments with slashes.
func Join(parts ...string) string {
	return strings.Join(splitAll(parts...), "/")
}

// Clean normalizes a path and validates its segments.
func Clean(path string) (string, error) {
	segs := splitAll(path)
	for _, s := range segs {
		if strings.ContainsAny(s, ".$#[]") || strings.ContainsFunc(s, isControl) {
			return "", fmt.Errorf("%w: segment %q", ErrInvalidPath, s)
		}
	}

	return strings.Join(segs, "/"), nil
}

func splitAll(parts ...string) []string {
	var segs []string

	for _, p := range parts {
		for s := range strings.SplitSeq(p, "/") {
			if s != "" {
				segs = append(segs, s)
			}
		}
	}

	return segs
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

// related reports whether a write at b can change the value observed at a.
func related(a, b string) bool {
	return a == b || a == "" || b == "" ||
		strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

// absolute resolves the keys of a multi-location update against base and
// rejects keys that overlap each other.
func absolute(base string, values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))

	for k, v := range values {
		p, err := Clean(Join(base, k))
		if err != nil {
			return nil, err
		}

		if p == base && base == "" {
			return nil, fmt.Errorf("%w: empty key", ErrInvalidPath)
		}

		out[p] = v
	}

	for a := range out {
		for b := range out {
			if a != b && strings.HasPrefix(b, a+"/") {
				return nil, fmt.Errorf("%w: %q and %q", ErrOverlappingUpdate, a, b)
			}
		}
	}

	return out, nil
}
