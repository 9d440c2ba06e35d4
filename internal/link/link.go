// Package link classifies stored call-to-action links. The admin preview
// and the site generator both render links through Classify so the two
// always agree.
package link

import "strings"

// Kind is the category of a classified link.
type Kind int

const (
	// Disabled means no link was stored; the control is not clickable.
	Disabled Kind = iota
	// Anchor is an in-page target.
	Anchor
	// External is an absolute http(s) URL opened in a new tab.
	External
)

func (k Kind) String() string {
	switch k {
	case Anchor:
		return "anchor"
	case External:
		return "external"
	default:
		return "disabled"
	}
}

// Target is the rendered form of a link.
type Target struct {
	Href   string
	Kind   Kind
	Target string
	Rel    string
}

// Disabled reports whether the link should render as a non-clickable control.
func (t Target) Disabled() bool {
	return t.Kind == Disabled
}

// Classify maps a stored link value to its rendered target:
//
//	"#contact"            -> "#contact" (anchor)
//	"https://example.com" -> "https://example.com" (external, new tab, no referrer)
//	"contact"             -> "#contact" (anchor)
//	""                    -> "#" (disabled)
func Classify(raw string) Target {
	v := strings.TrimSpace(raw)

	switch {
	case v == "":
		return Target{Href: "#", Kind: Disabled}
	case strings.HasPrefix(v, "#"):
		return Target{Href: v, Kind: Anchor}
	case strings.HasPrefix(v, "http://"), strings.HasPrefix(v, "https://"):
		return Target{Href: v, Kind: External, Target: "_blank", Rel: "noopener noreferrer"}
	default:
		return Target{Href: "#" + v, Kind: Anchor}
	}
}
