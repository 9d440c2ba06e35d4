// Package content maps the site's logical sections and collections onto
// tree paths and gives every consumer one canonical shape for them.
package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inovacc/pagewright/internal/model"
	"github.com/inovacc/pagewright/internal/store"
)

// Service reads and writes site content through a store client.
type Service struct {
	client *store.Client
	logger *slog.Logger
}

// NewService returns a content service. A nil logger uses slog.Default.
func NewService(client *store.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{client: client, logger: logger}
}

// GetAllContent reads every registered section and collection, one store
// call per name (two for the navbar). Missing entries come back empty.
func (s *Service) GetAllContent(ctx context.Context) (*Snapshot, error) {
	snap := newSnapshot()

	for _, e := range registry {
		switch e.Kind {
		case Section:
			raw, err := s.client.Get(ctx, e.Path)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", e.Name, err)
			}

			snap.setSection(e.Name, raw)
		case Collection:
			recs, err := s.client.GetAll(ctx, e.Path)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", e.Name, err)
			}

			snap.setItems(e.Name, recs)
		case Navbar:
			raw, err := s.client.Get(ctx, e.Path)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", e.Name, err)
			}

			recs, err := s.client.GetAll(ctx, e.ItemsPath)
			if err != nil {
				return nil, fmt.Errorf("load %s items: %w", e.Name, err)
			}

			snap.sections[e.Name] = navbarFields(raw)
			snap.setItems(e.Name, recs)
		}
	}

	return snap, nil
}

// Export reads the whole content root in one call and returns the
// normalized snapshot together with the raw tree.
func (s *Service) Export(ctx context.Context) (*Snapshot, any, error) {
	raw, err := s.client.Get(ctx, BasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("export content: %w", err)
	}

	return FromTree(raw), raw, nil
}

// Import replaces the whole content root with raw.
func (s *Service) Import(ctx context.Context, raw map[string]any) error {
	if err := s.client.Set(ctx, BasePath, raw); err != nil {
		return fmt.Errorf("import content: %w", err)
	}

	s.logger.Info("content imported", "sections", len(raw))

	return nil
}

// GetSection returns the normalized fields of a section.
func (s *Service) GetSection(ctx context.Context, name string) (model.Record, error) {
	e, err := section(name)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, e.Path)
	if err != nil {
		return nil, err
	}

	if e.Kind == Navbar {
		return navbarFields(raw), nil
	}

	return normalizeSection(raw), nil
}

// SaveSection overwrites a section with data plus a fresh updatedAt and
// returns what was written. The navbar keeps its items.
func (s *Service) SaveSection(ctx context.Context, name string, data model.Record) (model.Record, error) {
	e, err := section(name)
	if err != nil {
		return nil, err
	}

	rec := data.Without(model.FieldID, itemsKey)
	rec[model.FieldUpdatedAt] = s.client.Now()

	if e.Kind != Navbar {
		if err := s.client.Set(ctx, e.Path, map[string]any(rec)); err != nil {
			return nil, err
		}

		s.logger.Info("section saved", "section", name)

		return rec, nil
	}

	current, err := s.client.Get(ctx, e.Path)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	for k := range navbarFields(current) {
		values[k] = nil
	}

	for k, v := range rec {
		values[k] = v
	}

	if err := s.client.Patch(ctx, e.Path, values); err != nil {
		return nil, err
	}

	s.logger.Info("section saved", "section", name)

	return rec, nil
}

// ListItems returns the items of a collection sorted by order.
func (s *Service) ListItems(ctx context.Context, name string) ([]model.Record, error) {
	e, err := collection(name)
	if err != nil {
		return nil, err
	}

	recs, err := s.client.GetAll(ctx, e.CollectionPath())
	if err != nil {
		return nil, err
	}

	SortItems(recs)

	return recs, nil
}

// GetItem returns one item or nil when absent.
func (s *Service) GetItem(ctx context.Context, name, id string) (model.Record, error) {
	e, err := collection(name)
	if err != nil {
		return nil, err
	}

	return s.client.GetByID(ctx, e.CollectionPath(), id)
}

// CreateItem adds an item to a collection.
func (s *Service) CreateItem(ctx context.Context, name string, data model.Record) (model.Record, error) {
	e, err := collection(name)
	if err != nil {
		return nil, err
	}

	rec, err := s.client.Create(ctx, e.CollectionPath(), data)
	if err != nil {
		return nil, err
	}

	s.logger.Info("item created", "collection", name, "id", rec.ID())

	return rec, nil
}

// UpdateItem merges data into an existing item.
func (s *Service) UpdateItem(ctx context.Context, name, id string, data model.Record) (model.Record, error) {
	e, err := collection(name)
	if err != nil {
		return nil, err
	}

	rec, err := s.client.Update(ctx, e.CollectionPath(), id, data)
	if err != nil {
		return nil, err
	}

	s.logger.Info("item updated", "collection", name, "id", id)

	return rec, nil
}

// DeleteItem removes an item. Deleting a missing id is not an error.
func (s *Service) DeleteItem(ctx context.Context, name, id string) error {
	e, err := collection(name)
	if err != nil {
		return err
	}

	if err := s.client.Delete(ctx, e.CollectionPath(), id); err != nil {
		return err
	}

	s.logger.Info("item deleted", "collection", name, "id", id)

	return nil
}

// Reorder sets order = position for each id in one batched write.
func (s *Service) Reorder(ctx context.Context, name string, ids []string) error {
	e, err := collection(name)
	if err != nil {
		return err
	}

	updates := make(map[string]model.Record, len(ids))
	for i, id := range ids {
		updates[id] = model.Record{model.FieldOrder: i}
	}

	return s.client.UpdateMultiple(ctx, e.CollectionPath(), updates)
}

// Watch calls fn whenever anything below the content root changes.
func (s *Service) Watch(fn func()) func() {
	return s.client.Tree().OnValue(BasePath, func(any) { fn() })
}
