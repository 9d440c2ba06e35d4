package content

import (
	"errors"
	"fmt"
	"slices"
)

// BasePath is the root of all site content in the tree.
const BasePath = "content"

var (
	ErrUnknownSection    = errors.New("unknown section")
	ErrUnknownCollection = errors.New("unknown collection")
)

// EntryKind tells how a registered name is stored.
type EntryKind int

const (
	// Section is a singleton record overwritten as a whole.
	Section EntryKind = iota
	// Collection is a map of items keyed by identity.
	Collection
	// Navbar is a singleton with a nested items collection.
	Navbar
)

// Entry maps a logical name onto its tree location.
type Entry struct {
	Name string
	Kind EntryKind
	Path string
	// ItemsPath is the nested collection of a Navbar entry.
	ItemsPath string
}

// CollectionPath returns where the entry's items live.
func (e Entry) CollectionPath() string {
	if e.Kind == Navbar {
		return e.ItemsPath
	}

	return e.Path
}

var registry = []Entry{
	{Name: "hero", Kind: Section, Path: BasePath + "/hero"},
	{Name: "services", Kind: Section, Path: BasePath + "/services"},
	{Name: "banner", Kind: Section, Path: BasePath + "/banner"},
	{Name: "process", Kind: Section, Path: BasePath + "/process"},
	{Name: "ctaBanner", Kind: Section, Path: BasePath + "/ctaBanner"},
	{Name: "arequipaInfo", Kind: Section, Path: BasePath + "/arequipaInfo"},
	{Name: "footer", Kind: Section, Path: BasePath + "/footer"},
	{Name: "navbar", Kind: Navbar, Path: BasePath + "/navbar", ItemsPath: BasePath + "/navbar/items"},
	{Name: "projects", Kind: Collection, Path: BasePath + "/projects/items"},
	{Name: "testimonials", Kind: Collection, Path: BasePath + "/testimonials/items"},
	{Name: "faq", Kind: Collection, Path: BasePath + "/faq/items"},
	{Name: "servicesCards", Kind: Collection, Path: BasePath + "/servicesCards/items"},
	{Name: "localities", Kind: Collection, Path: BasePath + "/localities/cities"},
	{Name: "gallery", Kind: Collection, Path: BasePath + "/gallery/items"},
}

// Lookup returns the registry entry for name.
func Lookup(name string) (Entry, bool) {
	i := slices.IndexFunc(registry, func(e Entry) bool { return e.Name == name })
	if i < 0 {
		return Entry{}, false
	}

	return registry[i], true
}

// Entries returns all registered entries in display order.
func Entries() []Entry {
	return slices.Clone(registry)
}

// SectionNames returns the names that can be read and saved as sections.
func SectionNames() []string {
	var out []string

	for _, e := range registry {
		if e.Kind != Collection {
			out = append(out, e.Name)
		}
	}

	return out
}

// CollectionNames returns the names that hold items, navbar included.
func CollectionNames() []string {
	var out []string

	for _, e := range registry {
		if e.Kind != Section {
			out = append(out, e.Name)
		}
	}

	return out
}

func section(name string) (Entry, error) {
	e, ok := Lookup(name)
	if !ok || e.Kind == Collection {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownSection, name)
	}

	return e, nil
}

func collection(name string) (Entry, error) {
	e, ok := Lookup(name)
	if !ok || e.Kind == Section {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}

	return e, nil
}
