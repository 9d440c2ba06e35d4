package site

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"slices"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/inovacc/pagewright/internal/content"
	"github.com/inovacc/pagewright/internal/link"
)

//go:embed templates/*.html
var templateFS embed.FS

var fragments = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// DataScriptID is the id of the embedded JSON snapshot.
const DataScriptID = "static-content-data"

// loaderScripts are the runtime loaders that the static output no longer needs.
var loaderScripts = []string{"firebase-init.js", "load-content.js"}

// Splicer fills a template document with content.
type Splicer struct {
	Logger *slog.Logger
}

// Splice parses page, applies every slot derived from snap, removes the
// runtime loader scripts and embeds raw as a JSON data block. Anchors that
// are missing are reported as warnings and leave the template untouched.
func (s *Splicer) Splice(page []byte, snap *content.Snapshot, raw any) ([]byte, []string, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, nil, fmt.Errorf("parse template: %w", err)
	}

	var warnings []string

	for _, slot := range Slots(snap) {
		n := find(doc, slot.Anchor)
		if n == nil {
			msg := fmt.Sprintf("region %s: anchor %s not found, keeping template default", slot.Region, slot.Anchor)
			logger.Warn("template anchor missing", "region", slot.Region, "anchor", slot.Anchor.String())
			warnings = append(warnings, msg)

			continue
		}

		if err := apply(n, slot); err != nil {
			msg := fmt.Sprintf("region %s: %v", slot.Region, err)
			logger.Warn("template region skipped", "region", slot.Region, "error", err)
			warnings = append(warnings, msg)
		}
	}

	bindFields(doc, snap)

	if n := removeScripts(doc, loaderScripts...); n > 0 {
		logger.Debug("removed loader scripts", "count", n)
	}

	if raw == nil {
		raw = map[string]any{}
	}

	payload, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, warnings, fmt.Errorf("encode content snapshot: %w", err)
	}

	if err := appendDataScript(doc, DataScriptID, payload); err != nil {
		return nil, warnings, err
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, warnings, fmt.Errorf("render document: %w", err)
	}

	return buf.Bytes(), warnings, nil
}

func apply(n *html.Node, slot Slot) error {
	for k, v := range slot.Attrs {
		setAttr(n, k, v)
	}

	switch {
	case slot.Fragment != "":
		var buf bytes.Buffer
		if err := fragments.ExecuteTemplate(&buf, slot.Fragment, slot.Data); err != nil {
			return err
		}

		if err := setInner(n, buf.String()); err != nil {
			return err
		}
	case slot.Text != nil:
		setText(n, *slot.Text)
	}

	if slot.Link != nil {
		applyLink(n, *slot.Link)
	}

	return nil
}

// applyLink turns the anchor into a link to t. Buttons become anchors so
// the static page works without scripts.
func applyLink(n *html.Node, t link.Target) {
	if n.DataAtom != atom.A {
		n.Data = "a"
		n.DataAtom = atom.A
		removeAttr(n, "type")
	}

	setAttr(n, "href", t.Href)
	removeAttr(n, "target")
	removeAttr(n, "rel")
	removeAttr(n, "aria-disabled")
	removeAttr(n, "tabindex")

	switch t.Kind {
	case link.External:
		setAttr(n, "target", t.Target)
		setAttr(n, "rel", t.Rel)
	case link.Disabled:
		setAttr(n, "aria-disabled", "true")
		setAttr(n, "tabindex", "-1")
		addClass(n, "is-disabled")
	}
}

// slottedSections have dedicated slots and are skipped by bindFields.
var slottedSections = []string{"hero", "services", "navbar"}

// boundAttrs are the attributes data-cms-attr may target besides href.
var boundAttrs = []string{"src", "alt", "title", "aria-label", "content"}

// bindFields fills elements marked data-cms-field inside an ancestor marked
// data-cms-section with the matching section field. data-cms-attr names an
// attribute to set instead of the text. Empty fields keep the template text.
func bindFields(doc *html.Node, snap *content.Snapshot) {
	walk(doc, func(sec *html.Node) {
		name, ok := attr(sec, "data-cms-section")
		if !ok || slices.Contains(slottedSections, name) {
			return
		}

		rec := snap.Section(name)
		if len(rec) == 0 {
			return
		}

		walk(sec, func(n *html.Node) {
			field, ok := attr(n, "data-cms-field")
			if !ok || !rec.Has(field) {
				return
			}

			if a, ok := attr(n, "data-cms-attr"); ok && a != "" {
				switch {
				case a == "href":
					setAttr(n, a, link.Classify(rec.String(field)).Href)
				case slices.Contains(boundAttrs, a):
					setAttr(n, a, rec.String(field))
				}

				return
			}

			setText(n, rec.String(field))
		})
	})
}
