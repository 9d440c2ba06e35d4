// Package model defines the content records shared by the store, the
// content service, the admin panel and the site generator.
//
// # Record
//
// A [Record] is a plain field map as read from the content tree. Values are
// scalars (string, bool, number) or nested maps for composite entries such
// as navbar menu items with a submenu:
//
//	rec := model.Record{"id": "0190...", "title": "Casa Sur", "order": 2}
//	rec.String("title") // "Casa Sur"
//	rec.Int("order")    // 2
//
// # Kinds and forms
//
// Every collection item belongs to a [Kind]. A kind knows which collection
// it is stored in and which form fields the admin panel shows for it.
// Sections have their own form definitions, looked up with [SectionForm].
//
// Use [Validate] before writing so required fields never reach the store
// empty.
package model
