// Package store provides the path-addressed content tree and the CRUD
// client built on top of it.
//
// # Tree
//
// The [Tree] interface is the whole persistence surface the rest of the
// program needs: get, set, update, remove, push and onValue over
// slash-separated paths. Two backends implement it:
//   - [Bolt]: an embedded BoltDB file, one leaf per key
//   - [RTDB]: a Firebase Realtime Database reached over its REST API
//
// The tree has no native arrays. Values written as slices are stored as
// maps keyed by index and read back as slices only when the keys look like
// a dense index range, the same rule the Realtime Database applies.
//
// # Client
//
// [Client] wraps a tree with record operations (GetAll, GetByID, Create,
// Update, Delete, UpdateMultiple). Whatever shape a collection has in the
// tree, GetAll returns an ordered slice of records that each carry their
// key as "id":
//
//	client := store.NewClient(tree, slog.Default())
//	items, err := client.GetAll(ctx, "content/projects/items")
package store
