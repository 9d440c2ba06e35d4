package site

import "github.com/inovacc/pagewright/internal/model"

// Carousel page sizes.
const (
	ProjectsPerPage   = 3
	LocalitiesPerPage = 2
)

// Page is one carousel page.
type Page[T any] struct {
	Index  int
	Active bool
	Items  []T
}

// Number is the 1-based page number.
func (p Page[T]) Number() int {
	return p.Index + 1
}

// Paginate splits items into pages of size. The first page is active.
func Paginate[T any](items []T, size int) []Page[T] {
	if size <= 0 || len(items) == 0 {
		return nil
	}

	pages := make([]Page[T], 0, (len(items)+size-1)/size)

	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		pages = append(pages, Page[T]{
			Index:  len(pages),
			Active: i == 0,
			Items:  items[i:end],
		})
	}

	return pages
}

// withField keeps the records that have a non-empty value for field.
// Input order is preserved, so callers sort first.
func withField(recs []model.Record, field string) []model.Record {
	var out []model.Record

	for _, r := range recs {
		if r.Has(field) {
			out = append(out, r)
		}
	}

	return out
}
