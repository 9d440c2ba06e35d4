package content

import (
	"cmp"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/inovacc/pagewright/internal/model"
	"github.com/inovacc/pagewright/internal/store"
)

const itemsKey = "items"

// Snapshot is one consistent read of all registered content.
type Snapshot struct {
	sections    map[string]model.Record
	collections map[string][]model.Record
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		sections:    map[string]model.Record{},
		collections: map[string][]model.Record{},
	}
}

// Section returns the fields of a section. Absent sections are empty, never nil.
func (s *Snapshot) Section(name string) model.Record {
	if r, ok := s.sections[name]; ok {
		return r
	}

	return model.Record{}
}

// Items returns the items of a collection sorted by order, then id.
func (s *Snapshot) Items(name string) []model.Record {
	return s.collections[name]
}

// Item returns one item by id, or nil.
func (s *Snapshot) Item(name, id string) model.Record {
	for _, it := range s.collections[name] {
		if it.ID() == id {
			return it
		}
	}

	return nil
}

// MarshalJSON renders the aggregate object keyed by logical name:
// sections as flat objects, collections as {"items": {id: record}}, and the
// navbar as its fields plus "items".
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := map[string]any{}

	for _, e := range registry {
		switch e.Kind {
		case Section:
			out[e.Name] = s.Section(e.Name)
		case Collection:
			out[e.Name] = map[string]any{itemsKey: byID(s.Items(e.Name))}
		case Navbar:
			nav := map[string]any(s.Section(e.Name).Clone())
			nav[itemsKey] = byID(s.Items(e.Name))
			out[e.Name] = nav
		}
	}

	return json.Marshal(out)
}

func (s *Snapshot) setSection(name string, raw any) {
	s.sections[name] = normalizeSection(raw)
}

func (s *Snapshot) setItems(name string, recs []model.Record) {
	SortItems(recs)

	if recs == nil {
		recs = []model.Record{}
	}

	s.collections[name] = recs
}

func byID(recs []model.Record) map[string]model.Record {
	out := make(map[string]model.Record, len(recs))
	for _, r := range recs {
		out[r.ID()] = r
	}

	return out
}

// SortItems orders records by their order field, breaking ties by id.
func SortItems(recs []model.Record) {
	slices.SortStableFunc(recs, func(a, b model.Record) int {
		return cmp.Or(cmp.Compare(a.Order(), b.Order()), strings.Compare(a.ID(), b.ID()))
	})
}

// normalizeSection turns a raw section value into a flat record. A value
// holding exactly one key whose child is itself a record is a legacy
// wrapper and is unwrapped. Non-record values yield an empty record.
func normalizeSection(raw any) model.Record {
	rec, ok := model.AsRecord(raw)
	if !ok {
		return model.Record{}
	}

	if len(rec) == 1 {
		for k, v := range rec {
			if inner, ok := model.AsRecord(v); ok && k != itemsKey {
				return inner.Clone()
			}
		}
	}

	return rec.Clone()
}

// navbarFields returns the navbar record without its items subtree.
func navbarFields(raw any) model.Record {
	rec, ok := model.AsRecord(raw)
	if !ok {
		return model.Record{}
	}

	return rec.Without(itemsKey)
}

// FromTree builds a snapshot from a single read of the content root.
func FromTree(root any) *Snapshot {
	snap := newSnapshot()

	for _, e := range registry {
		rel := strings.TrimPrefix(e.Path, BasePath+"/")

		switch e.Kind {
		case Section:
			snap.setSection(e.Name, descend(root, rel))
		case Collection:
			snap.setItems(e.Name, store.Records(descend(root, rel)))
		case Navbar:
			nav := descend(root, rel)
			snap.sections[e.Name] = navbarFields(nav)
			snap.setItems(e.Name, store.Records(descend(nav, itemsKey)))
		}
	}

	return snap
}

// descend follows a relative slash path through nested maps and slices.
func descend(v any, rel string) any {
	for seg := range strings.SplitSeq(rel, "/") {
		switch t := v.(type) {
		case map[string]any:
			v = t[seg]
		case model.Record:
			v = t[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(t) {
				return nil
			}

			v = t[i]
		default:
			return nil
		}
	}

	return v
}
