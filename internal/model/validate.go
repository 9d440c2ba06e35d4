package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError lists the required fields left empty on a form.
type ValidationError struct {
	Form    string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: required fields missing: %s", e.Form, strings.Join(e.Missing, ", "))
}

// Validate checks that every required field of the form is set on data.
// When partial is true only fields present in data are checked, which is
// what an update that names a subset of fields needs.
func Validate(f Form, data Record, partial bool) error {
	var missing []string

	for _, name := range f.Required() {
		if _, present := data[name]; partial && !present {
			continue
		}

		if !data.Has(name) {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return &ValidationError{Form: f.Name, Missing: missing}
	}

	return nil
}

// Coerce converts submitted form values into typed record fields.
// Number fields become ints (0 when blank or invalid), checkbox fields
// become bools (absent means false), everything else is trimmed text.
// Values for names the form does not declare are kept as trimmed strings.
func Coerce(f Form, values map[string][]string) Record {
	out := Record{}

	for name, vs := range values {
		if len(vs) == 0 {
			continue
		}

		out[name] = strings.TrimSpace(vs[len(vs)-1])
	}

	for _, field := range f.Fields {
		switch field.Type {
		case FieldNumber:
			s, _ := out[field.Name].(string)
			n, err := strconv.Atoi(s)
			if err != nil {
				n = 0
			}

			out[field.Name] = n
		case FieldCheckbox:
			out[field.Name] = out.Bool(field.Name)
		}
	}

	return out
}
