package model

import "slices"

// Kind identifies the type of a collection item.
type Kind string

const (
	KindProject     Kind = "project"
	KindTestimonial Kind = "testimonial"
	KindFAQ         Kind = "faq"
	KindLocality    Kind = "locality"
	KindGalleryItem Kind = "galleryItem"
	KindMenuItem    Kind = "menuItem"
	KindServiceCard Kind = "serviceCard"
)

// FieldType selects the input control used for a form field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldURL      FieldType = "url"
	FieldImage    FieldType = "image"
	FieldNumber   FieldType = "number"
	FieldCheckbox FieldType = "checkbox"
)

// Field describes one input of an admin form.
type Field struct {
	Name        string
	Label       string
	Type        FieldType
	Required    bool
	Placeholder string
}

// Form describes the inputs of a section or an item kind.
type Form struct {
	Name       string
	Title      string
	Collection string
	Fields     []Field
}

// Required returns the names of the required fields.
func (f Form) Required() []string {
	var out []string

	for _, field := range f.Fields {
		if field.Required {
			out = append(out, field.Name)
		}
	}

	return out
}

// Field returns the field definition with the given name.
func (f Form) Field(name string) (Field, bool) {
	i := slices.IndexFunc(f.Fields, func(fd Field) bool { return fd.Name == name })
	if i < 0 {
		return Field{}, false
	}

	return f.Fields[i], true
}

var orderField = Field{Name: FieldOrder, Label: "Order", Type: FieldNumber, Placeholder: "0"}

var kindForms = map[Kind]Form{
	KindProject: {
		Name: string(KindProject), Title: "Project", Collection: "projects",
		Fields: []Field{
			{Name: "imageUrl", Label: "Image", Type: FieldImage, Required: true},
			{Name: "title", Label: "Title", Type: FieldText, Required: true},
			{Name: "subtitle", Label: "Subtitle", Type: FieldText},
			orderField,
		},
	},
	KindTestimonial: {
		Name: string(KindTestimonial), Title: "Testimonial", Collection: "testimonials",
		Fields: []Field{
			{Name: "avatarUrl", Label: "Avatar", Type: FieldImage},
			{Name: "name", Label: "Name", Type: FieldText, Required: true},
			{Name: "position", Label: "Position", Type: FieldText},
			{Name: "text", Label: "Testimonial", Type: FieldTextarea, Required: true},
			{Name: "alternate", Label: "Alternate placement", Type: FieldCheckbox},
			orderField,
		},
	},
	KindFAQ: {
		Name: string(KindFAQ), Title: "FAQ entry", Collection: "faq",
		Fields: []Field{
			{Name: "question", Label: "Question", Type: FieldText, Required: true},
			{Name: "answer", Label: "Answer", Type: FieldTextarea, Required: true},
			{Name: "isActive", Label: "Expanded by default", Type: FieldCheckbox},
			orderField,
		},
	},
	KindLocality: {
		Name: string(KindLocality), Title: "Locality", Collection: "localities",
		Fields: []Field{
			{Name: "name", Label: "Name", Type: FieldText, Required: true},
			{Name: "description", Label: "Description", Type: FieldTextarea, Required: true},
			orderField,
		},
	},
	KindGalleryItem: {
		Name: string(KindGalleryItem), Title: "Gallery image", Collection: "gallery",
		Fields: []Field{
			{Name: "imageUrl", Label: "Image", Type: FieldImage, Required: true},
			{Name: "alt", Label: "Alt text", Type: FieldText},
			orderField,
		},
	},
	KindMenuItem: {
		Name: string(KindMenuItem), Title: "Menu entry", Collection: "navbar",
		Fields: []Field{
			{Name: "text", Label: "Text", Type: FieldText, Required: true},
			{Name: "link", Label: "Link", Type: FieldText, Required: true, Placeholder: "#section or https://..."},
			orderField,
		},
	},
	KindServiceCard: {
		Name: string(KindServiceCard), Title: "Service card", Collection: "servicesCards",
		Fields: []Field{
			{Name: "imageUrl", Label: "Image", Type: FieldImage},
			{Name: "title", Label: "Title", Type: FieldText, Required: true},
			{Name: "text", Label: "Text", Type: FieldTextarea},
			orderField,
		},
	},
}

var sectionForms = map[string]Form{
	"hero": {
		Name: "hero", Title: "Hero",
		Fields: []Field{
			{Name: "imageUrl", Label: "Background image", Type: FieldImage},
			{Name: "pretitle", Label: "Pretitle", Type: FieldText, Placeholder: "Pretitle"},
			{Name: "title", Label: "Title", Type: FieldText, Placeholder: "Hero title"},
			{Name: "buttonText", Label: "Button text", Type: FieldText, Placeholder: "Button"},
			{Name: "buttonLink", Label: "Button link", Type: FieldText, Placeholder: "#contact or https://..."},
		},
	},
	"services": {
		Name: "services", Title: "Services",
		Fields: []Field{
			{Name: "header", Label: "Header", Type: FieldText},
			{Name: "title", Label: "Title", Type: FieldText, Required: true},
			{Name: "text", Label: "Text", Type: FieldTextarea},
			{Name: "buttonText", Label: "Button text", Type: FieldText},
		},
	},
	"banner": {
		Name: "banner", Title: "Banner",
		Fields: []Field{
			{Name: "header", Label: "Header", Type: FieldText},
			{Name: "title", Label: "Title", Type: FieldText, Required: true},
			{Name: "text", Label: "Text", Type: FieldTextarea},
			{Name: "imageUrl", Label: "Image", Type: FieldImage},
		},
	},
	"process": {
		Name: "process", Title: "Process",
		Fields: []Field{
			{Name: "header", Label: "Header", Type: FieldText},
			{Name: "title", Label: "Title", Type: FieldText, Required: true},
			{Name: "text", Label: "Text", Type: FieldTextarea},
		},
	},
	"ctaBanner": {
		Name: "ctaBanner", Title: "Call to action",
		Fields: []Field{
			{Name: "title", Label: "Title", Type: FieldText, Required: true},
			{Name: "buttonText", Label: "Button text", Type: FieldText},
			{Name: "buttonLink", Label: "Button link", Type: FieldText},
		},
	},
	"arequipaInfo": {
		Name: "arequipaInfo", Title: "Area information",
		Fields: []Field{
			{Name: "title", Label: "Title", Type: FieldText, Required: true},
			{Name: "text", Label: "Text", Type: FieldTextarea},
			{Name: "imageUrl", Label: "Image", Type: FieldImage},
		},
	},
	"footer": {
		Name: "footer", Title: "Footer",
		Fields: []Field{
			{Name: "description", Label: "Description", Type: FieldTextarea},
			{Name: "address", Label: "Address", Type: FieldText},
			{Name: "phone", Label: "Phone", Type: FieldText},
			{Name: "email", Label: "Email", Type: FieldText},
			{Name: "copyright", Label: "Copyright", Type: FieldText},
		},
	},
	"navbar": {
		Name: "navbar", Title: "Navigation",
		Fields: []Field{
			{Name: "logoText", Label: "Logo text", Type: FieldText},
		},
	},
}

// KindForm returns the form of an item kind.
func KindForm(k Kind) (Form, bool) {
	f, ok := kindForms[k]

	return f, ok
}

// KindOf returns the item kind stored in the named collection.
func KindOf(collection string) (Kind, bool) {
	for k, f := range kindForms {
		if f.Collection == collection {
			return k, true
		}
	}

	return "", false
}

// SectionForm returns the form of a section. Sections without a declared
// form get an empty one, and the admin panel renders their stored keys.
func SectionForm(name string) Form {
	if f, ok := sectionForms[name]; ok {
		return f
	}

	return Form{Name: name, Title: name}
}

// Kinds returns every item kind in a stable order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindForms))
	for k := range kindForms {
		out = append(out, k)
	}

	slices.Sort(out)

	return out
}
