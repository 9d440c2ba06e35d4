package store

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/inovacc/pagewright/internal/model"
)

// TimeFormat is the layout of createdAt and updatedAt stamps.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Stamper hands out UTC timestamps at millisecond precision that strictly
// increase within the process.
type Stamper struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewStamper returns a stamper reading the given clock (time.Now when nil).
func NewStamper(now func() time.Time) *Stamper {
	if now == nil {
		now = time.Now
	}

	return &Stamper{now: now}
}

// Next returns the next timestamp.
func (s *Stamper) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().UTC().Truncate(time.Millisecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Millisecond)
	}

	s.last = t

	return t.Format(TimeFormat)
}

// Client performs record operations on a Tree.
type Client struct {
	tree   Tree
	stamp  *Stamper
	logger *slog.Logger
}

// NewClient wraps tree. A nil logger uses slog.Default.
func NewClient(tree Tree, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{tree: tree, stamp: NewStamper(nil), logger: logger}
}

// WithStamper replaces the timestamp source, mainly for tests.
func (c *Client) WithStamper(s *Stamper) *Client {
	c.stamp = s

	return c
}

// Tree returns the underlying tree.
func (c *Client) Tree() Tree {
	return c.tree
}

// Now returns a fresh timestamp from the client's stamper.
func (c *Client) Now() string {
	return c.stamp.Next()
}

func (c *Client) fail(op, path string, err error) error {
	c.logger.Error("store operation failed", "op", op, "path", path, "error", err)

	return &OpError{Op: op, Path: path, Err: err}
}

// Get returns the raw value at path, or nil when absent.
func (c *Client) Get(ctx context.Context, path string) (any, error) {
	v, err := c.tree.Get(ctx, path)
	if err != nil {
		return nil, c.fail("get", path, err)
	}

	return v, nil
}

// Set replaces the value at path.
func (c *Client) Set(ctx context.Context, path string, value any) error {
	if err := c.tree.Set(ctx, path, value); err != nil {
		return c.fail("set", path, err)
	}

	return nil
}

// Patch writes several locations below path in one atomic step.
func (c *Client) Patch(ctx context.Context, path string, values map[string]any) error {
	if err := c.tree.Update(ctx, path, values); err != nil {
		return c.fail("patch", path, err)
	}

	return nil
}

// GetAll returns the records stored under path in canonical form, or nil
// when nothing is stored there.
func (c *Client) GetAll(ctx context.Context, path string) ([]model.Record, error) {
	v, err := c.tree.Get(ctx, path)
	if err != nil {
		return nil, c.fail("getAll", path, err)
	}

	return Records(v), nil
}

// GetByID returns {id, ...fields} for one record, or nil when absent.
func (c *Client) GetByID(ctx context.Context, path, id string) (model.Record, error) {
	p := Join(path, id)

	v, err := c.tree.Get(ctx, p)
	if err != nil {
		return nil, c.fail("getById", p, err)
	}

	rec, ok := model.AsRecord(v)
	if !ok {
		return nil, nil
	}

	rec = rec.Clone()
	rec[model.FieldID] = id

	return rec, nil
}

// Create stores data under a newly allocated key and returns the written record.
func (c *Client) Create(ctx context.Context, path string, data model.Record) (model.Record, error) {
	id, err := c.tree.Push(ctx, path)
	if err != nil {
		return nil, c.fail("create", path, err)
	}

	now := c.stamp.Next()

	rec := data.Without(model.FieldID)
	rec[model.FieldID] = id
	rec[model.FieldCreatedAt] = now
	rec[model.FieldUpdatedAt] = now

	p := Join(path, id)
	if err := c.tree.Set(ctx, p, map[string]any(rec)); err != nil {
		return nil, c.fail("create", p, err)
	}

	c.logger.Debug("record created", "path", p)

	return rec, nil
}

// Update merges data into the record at path/id. Fields not named in data
// are kept. The returned record is what was sent plus id and updatedAt.
func (c *Client) Update(ctx context.Context, path, id string, data model.Record) (model.Record, error) {
	patch := data.Without(model.FieldID, model.FieldCreatedAt)
	patch[model.FieldUpdatedAt] = c.stamp.Next()

	p := Join(path, id)
	if err := c.tree.Update(ctx, p, patch); err != nil {
		return nil, c.fail("update", p, err)
	}

	out := patch.Clone()
	out[model.FieldID] = id

	return out, nil
}

// Delete removes the record at path/id. Missing records are not an error.
func (c *Client) Delete(ctx context.Context, path, id string) error {
	p := Join(path, id)
	if err := c.tree.Remove(ctx, p); err != nil {
		return c.fail("delete", p, err)
	}

	return nil
}

// UpdateMultiple merges several records in one atomic write. Each record
// gets its own updatedAt. Either every record is written or none is.
func (c *Client) UpdateMultiple(ctx context.Context, path string, updates map[string]model.Record) error {
	if len(updates) == 0 {
		return nil
	}

	values := map[string]any{}

	for _, id := range slices.Sorted(maps.Keys(updates)) {
		for field, v := range updates[id] {
			if field == model.FieldID || field == model.FieldCreatedAt {
				continue
			}

			values[Join(id, field)] = v
		}

		values[Join(id, model.FieldUpdatedAt)] = c.stamp.Next()
	}

	if err := c.tree.Update(ctx, path, values); err != nil {
		return c.fail("updateMultiple", path, err)
	}

	return nil
}

// Watch calls fn with the records under path now and after every change.
func (c *Client) Watch(path string, fn func([]model.Record)) func() {
	return c.tree.OnValue(path, func(v any) { fn(Records(v)) })
}

// Records normalizes a raw collection value into identified records.
// A map yields one record per key in key order, with the key as id.
// A slice yields one record per non-empty element, with the index as id.
// Children that are not records are skipped. Absent values yield nil.
func Records(v any) []model.Record {
	var out []model.Record

	switch t := v.(type) {
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(t)) {
			if rec, ok := model.AsRecord(t[k]); ok {
				rec = rec.Clone()
				rec[model.FieldID] = k
				out = append(out, rec)
			}
		}
	case []any:
		for i, child := range t {
			if rec, ok := model.AsRecord(child); ok {
				rec = rec.Clone()
				rec[model.FieldID] = strconv.Itoa(i)
				out = append(out, rec)
			}
		}
	}

	return out
}
