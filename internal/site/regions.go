package site

import (
	"slices"

	"github.com/inovacc/pagewright/internal/content"
	"github.com/inovacc/pagewright/internal/link"
	"github.com/inovacc/pagewright/internal/model"
)

// Slot binds one template anchor to content-derived output. Exactly one of
// Text, Fragment or Link is used; Attrs are applied in every case.
type Slot struct {
	Region string
	Anchor Selector

	Text     *string
	Attrs    map[string]string
	Link     *link.Target
	Fragment string
	Data     any
}

func textSlot(region, anchor, value string) Slot {
	return Slot{Region: region, Anchor: mustSelector(anchor), Text: &value}
}

type menuEntry struct {
	Text     string
	Link     link.Target
	Children []menuEntry
}

type indicatorData struct {
	Prefix string
	Pages  any
}

type testimonialView struct {
	Name, Position, Text, AvatarURL string
	Alternate                       bool
}

type faqView struct {
	Index            int
	Question, Answer string
	Expanded         bool
}

type slideView struct {
	ImageURL, Alt string
	Active        bool
}

type cardView struct {
	ImageURL, Title, Text string
	Active                bool
}

// Slots derives every template binding from a snapshot. Regions whose
// content is empty produce no slot, leaving the template default.
func Slots(snap *content.Snapshot) []Slot {
	var slots []Slot

	slots = append(slots, heroSlots(snap.Section("hero"))...)
	slots = append(slots, servicesSlots(snap.Section("services"))...)
	slots = append(slots, navbarSlots(snap.Section("navbar"), snap.Items("navbar"))...)
	slots = append(slots, carouselSlots("projects", withField(snap.Items("projects"), "title"), ProjectsPerPage)...)
	slots = append(slots, carouselSlots("localities", withField(snap.Items("localities"), "name"), LocalitiesPerPage)...)

	if items := snap.Items("testimonials"); len(items) > 0 {
		slots = append(slots, Slot{Region: "testimonials", Anchor: mustSelector(".testimonials-list"), Fragment: "testimonials", Data: testimonials(items)})
	}

	if items := snap.Items("faq"); len(items) > 0 {
		slots = append(slots, Slot{Region: "faq", Anchor: mustSelector(".faq-list"), Fragment: "faq", Data: faqEntries(items)})
	}

	if items := withField(snap.Items("gallery"), "imageUrl"); len(items) > 0 {
		slides := make([]slideView, len(items))
		for i, it := range items {
			slides[i] = slideView{ImageURL: it.String("imageUrl"), Alt: it.String("alt"), Active: i == 0}
		}

		slots = append(slots, Slot{Region: "gallery", Anchor: mustSelector(".gallery-track"), Fragment: "gallery", Data: slides})
	}

	if items := withField(snap.Items("servicesCards"), "title"); len(items) > 0 {
		cards := make([]cardView, len(items))
		for i, it := range items {
			cards[i] = cardView{ImageURL: it.String("imageUrl"), Title: it.String("title"), Text: it.String("text"), Active: i == 0}
		}

		slots = append(slots, Slot{Region: "servicesCards", Anchor: mustSelector(".services-cards"), Fragment: "services-cards", Data: cards})
	}

	return slots
}

func heroSlots(hero model.Record) []Slot {
	var slots []Slot

	if hero.Has("imageUrl") {
		slots = append(slots, Slot{Region: "hero", Anchor: mustSelector("#hero-image"), Attrs: map[string]string{"src": hero.String("imageUrl")}})
	}

	if hero.Has("pretitle") {
		slots = append(slots, textSlot("hero", "#hero-pretitle", hero.String("pretitle")))
	}

	if hero.Has("title") {
		slots = append(slots, textSlot("hero", "#hero-title", hero.String("title")))
	}

	if len(hero) > 0 {
		button := Slot{Region: "hero", Anchor: mustSelector("#hero-button")}
		if hero.Has("buttonText") {
			text := hero.String("buttonText")
			button.Text = &text
		}

		target := link.Classify(hero.String("buttonLink"))
		button.Link = &target
		slots = append(slots, button)
	}

	return slots
}

func servicesSlots(services model.Record) []Slot {
	var slots []Slot

	for _, f := range []struct{ field, anchor string }{
		{"header", ".services-header"},
		{"title", ".services-title"},
		{"text", ".services-text"},
		{"buttonText", ".btn-services"},
	} {
		if services.Has(f.field) {
			slots = append(slots, textSlot("services", f.anchor, services.String(f.field)))
		}
	}

	return slots
}

func navbarSlots(nav model.Record, items []model.Record) []Slot {
	var slots []Slot

	if nav.Has("logoText") {
		slots = append(slots, textSlot("navbar", ".navbar-logo", nav.String("logoText")))
	}

	items = withField(items, "text")
	if len(items) == 0 {
		return slots
	}

	entries := make([]menuEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, menuEntry{
			Text:     it.String("text"),
			Link:     link.Classify(it.String("link")),
			Children: submenu(it),
		})
	}

	return append(slots, Slot{Region: "navbar", Anchor: mustSelector(".navbar-menu"), Fragment: "navbar-menu", Data: entries})
}

// submenu reads the read-only child links of a menu item, stored either as
// a list or as a keyed map.
func submenu(item model.Record) []menuEntry {
	raw, ok := item["submenu"]
	if !ok {
		return nil
	}

	var children []model.Record

	switch t := raw.(type) {
	case []any:
		for _, c := range t {
			if r, ok := model.AsRecord(c); ok {
				children = append(children, r)
			}
		}
	case map[string]any:
		for _, c := range t {
			if r, ok := model.AsRecord(c); ok {
				children = append(children, r)
			}
		}

		content.SortItems(children)
	}

	var out []menuEntry

	for _, c := range withField(children, "text") {
		out = append(out, menuEntry{Text: c.String("text"), Link: link.Classify(c.String("link"))})
	}

	return out
}

func carouselSlots(prefix string, items []model.Record, perPage int) []Slot {
	pages := Paginate(items, perPage)
	if len(pages) == 0 {
		return nil
	}

	return []Slot{
		{Region: prefix, Anchor: mustSelector("." + prefix + "-track"), Fragment: prefix + "-track", Data: pages},
		{Region: prefix, Anchor: mustSelector("." + prefix + "-indicators"), Fragment: "indicators", Data: indicatorData{Prefix: prefix, Pages: pages}},
	}
}

// alternatePositions is the placement pattern repeated every six testimonials.
var alternatePositions = []int{0, 2, 3, 5}

// Alternate reports whether a testimonial renders on the alternate side.
// An explicit "alternate" field on the item wins over the positional pattern.
func Alternate(item model.Record, index int) bool {
	if _, ok := item["alternate"]; ok {
		return item.Bool("alternate")
	}

	return slices.Contains(alternatePositions, index%6)
}

func testimonials(items []model.Record) []testimonialView {
	out := make([]testimonialView, len(items))
	for i, it := range items {
		out[i] = testimonialView{
			Name:      it.String("name"),
			Position:  it.String("position"),
			Text:      it.String("text"),
			AvatarURL: it.String("avatarUrl"),
			Alternate: Alternate(it, i),
		}
	}

	return out
}

// Expanded returns, for each FAQ item, whether it renders open. Items
// flagged isActive are open; with no flag set anywhere, the first one is.
func Expanded(items []model.Record) []bool {
	out := make([]bool, len(items))
	flagged := false

	for i, it := range items {
		if it.Bool("isActive") {
			out[i] = true
			flagged = true
		}
	}

	if !flagged && len(out) > 0 {
		out[0] = true
	}

	return out
}

func faqEntries(items []model.Record) []faqView {
	open := Expanded(items)
	out := make([]faqView, len(items))

	for i, it := range items {
		out[i] = faqView{Index: i, Question: it.String("question"), Answer: it.String("answer"), Expanded: open[i]}
	}

	return out
}
