package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const boltBucketTree = "tree" // key: full path -> JSON scalar

// Bolt is a Tree stored in a BoltDB file. Every scalar leaf is one key.
type Bolt struct {
	storage  *bbolt.DB
	watchers watchers
}

var _ Tree = (*Bolt)(nil)

// NewBolt opens (or creates) the tree database at path.
func NewBolt(path string) (*Bolt, error) {
	instance, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	if err := instance.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucketTree))

		return err
	}); err != nil {
		_ = instance.Close()

		return nil, err
	}

	return &Bolt{storage: instance}, nil
}

// Close closes the database.
func (b *Bolt) Close() error {
	return b.storage.Close()
}

// Get returns the value at path or nil.
func (b *Bolt) Get(_ context.Context, path string) (any, error) {
	p, err := Clean(path)
	if err != nil {
		return nil, err
	}

	leaves := map[string]any{}

	err = b.storage.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucketTree))

		if p != "" {
			if raw := bucket.Get([]byte(p)); raw != nil {
				v, err := decodeJSON(raw)
				if err != nil {
					return fmt.Errorf("%s: %w", p, err)
				}

				leaves[p] = v

				return nil
			}
		}

		prefix := []byte(p + "/")
		if p == "" {
			prefix = []byte{}
		}

		c := bucket.Cursor()

		k, raw := c.First()
		if len(prefix) > 0 {
			k, raw = c.Seek(prefix)
		}

		for ; k != nil && bytes.HasPrefix(k, prefix); k, raw = c.Next() {
			v, err := decodeJSON(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}

			leaves[string(k)] = v
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return assemble(p, leaves), nil
}

// Set replaces the value at path.
func (b *Bolt) Set(ctx context.Context, path string, value any) error {
	p, err := Clean(path)
	if err != nil {
		return err
	}

	return b.write(ctx, map[string]any{p: value})
}

// Update writes several locations relative to path in one transaction.
func (b *Bolt) Update(ctx context.Context, path string, values map[string]any) error {
	base, err := Clean(path)
	if err != nil {
		return err
	}

	abs, err := absolute(base, values)
	if err != nil {
		return err
	}

	return b.write(ctx, abs)
}

// Remove deletes the value at path.
func (b *Bolt) Remove(ctx context.Context, path string) error {
	return b.Set(ctx, path, nil)
}

// Push allocates a child key. Nothing is written until the caller sets it.
func (b *Bolt) Push(_ context.Context, path string) (string, error) {
	if _, err := Clean(path); err != nil {
		return "", err
	}

	return NewKey(), nil
}

// OnValue subscribes fn to changes at path.
func (b *Bolt) OnValue(path string, fn func(any)) func() {
	return b.watchers.subscribe(path, fn, b.Get)
}

func (b *Bolt) write(_ context.Context, values map[string]any) error {
	leaves := map[string]any{}

	for p, v := range values {
		if err := flatten(p, v, leaves); err != nil {
			return err
		}
	}

	err := b.storage.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucketTree))

		for _, p := range slices.Sorted(maps.Keys(values)) {
			if err := clearPath(bucket, p); err != nil {
				return err
			}
		}

		for p, v := range leaves {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode %s: %w", p, err)
			}

			if err := bucket.Put([]byte(p), data); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	b.watchers.notify(slices.Collect(maps.Keys(values)), b.Get)

	return nil
}

// clearPath removes the subtree at p and any scalar stored at one of its
// ancestors, so the following writes start from an empty location.
func clearPath(bucket *bbolt.Bucket, p string) error {
	segs := strings.Split(p, "/")
	for i := 1; i < len(segs); i++ {
		if err := bucket.Delete([]byte(strings.Join(segs[:i], "/"))); err != nil {
			return err
		}
	}

	var doomed [][]byte

	if p == "" {
		if err := bucket.ForEach(func(k, _ []byte) error {
			doomed = append(doomed, bytes.Clone(k))

			return nil
		}); err != nil {
			return err
		}
	} else {
		doomed = append(doomed, []byte(p))

		prefix := []byte(p + "/")
		c := bucket.Cursor()

		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			doomed = append(doomed, bytes.Clone(k))
		}
	}

	for _, k := range doomed {
		if err := bucket.Delete(k); err != nil {
			return err
		}
	}

	return nil
}
