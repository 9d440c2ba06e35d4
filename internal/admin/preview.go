package admin

import (
	"github.com/inovacc/pagewright/internal/link"
	"github.com/inovacc/pagewright/internal/model"
)

// PlaceholderImage is shown in the hero preview until an image is set.
const PlaceholderImage = "https://via.placeholder.com/800x450?text=Hero+image"

// HeroPreview is the read-only rendering of the hero form as typed.
type HeroPreview struct {
	ImageURL   string
	Pretitle   string
	Title      string
	ButtonText string
	Link       link.Target
}

// Preview mirrors the hero form fields into a preview. Empty fields fall
// back to the form placeholders. The button link goes through the same
// classification as the generated site.
func Preview(fields model.Record) HeroPreview {
	form := model.SectionForm("hero")

	value := func(name string) string {
		if fields.Has(name) {
			return fields.String(name)
		}

		if f, ok := form.Field(name); ok {
			return f.Placeholder
		}

		return ""
	}

	p := HeroPreview{
		ImageURL:   value("imageUrl"),
		Pretitle:   value("pretitle"),
		Title:      value("title"),
		ButtonText: value("buttonText"),
		Link:       link.Classify(fields.String("buttonLink")),
	}

	if p.ImageURL == "" {
		p.ImageURL = PlaceholderImage
	}

	return p
}
