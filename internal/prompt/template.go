package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// Reserved fields filled by the Renderer rather than by callers.
const (
	FieldPrefix = "Prefix"
	FieldSuffix = "Suffix"
)

// ErrMissingField is returned when a declared field has no value.
var ErrMissingField = errors.New("missing template field")

// Vars holds the values of a template's fields.
type Vars map[string]any

// Template is a named, versioned prompt.
type Template struct {
	ID      string
	Version int
	Text    string
	Fields  []string

	tmpl *template.Template
}

// MustNew parses text and panics if it is not a valid template. It is meant
// for package-level template definitions.
func MustNew(id string, version int, text string, fields ...string) Template {
	t, err := New(id, version, text, fields...)
	if err != nil {
		// ALLOW-PANIC: templates are compiled into the binary
		panic(err)
	}
	return t
}

// New parses text into a Template.
func New(id string, version int, text string, fields ...string) (Template, error) {
	if id == "" || version < 1 {
		return Template{}, fmt.Errorf("invalid template identity %q@v%d", id, version)
	}
	parsed, err := template.New(id).Option("missingkey=error").Parse(text)
	if err != nil {
		return Template{}, fmt.Errorf("failed to parse template %s: %w", id, err)
	}
	return Template{
		ID:      id,
		Version: version,
		Text:    text,
		Fields:  fields,
		tmpl:    parsed,
	}, nil
}

// Key returns the versioned identifier, e.g. "rate_answer@v1".
func (t Template) Key() string {
	return fmt.Sprintf("%s@v%d", t.ID, t.Version)
}

// Canonical renders the template with placeholders in place of field values
// and with an empty prefix and suffix.
func (t Template) Canonical() string {
	vars := make(map[string]any, len(t.Fields)+2)
	for _, f := range t.Fields {
		vars[f] = "<" + f + ">"
	}
	vars[FieldPrefix] = ""
	vars[FieldSuffix] = ""

	out, err := t.execute(vars)
	if err != nil {
		// Fields are declared alongside the text, so this only fails for
		// a template whose text references an undeclared field.
		return strings.TrimSpace(t.Text)
	}
	return out
}

func (t Template) execute(vars map[string]any) (string, error) {
	if t.tmpl == nil {
		return "", fmt.Errorf("template %s was not parsed", t.Key())
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %s: %w", t.Key(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Renderer renders templates for one model, wrapping each prompt in the
// model's prefix and suffix.
type Renderer struct {
	Prefix string
	Suffix string
}

// Render executes t with vars. Every declared field must be present.
func (r Renderer) Render(t Template, vars Vars) (string, error) {
	data := make(map[string]any, len(vars)+2)
	for _, f := range t.Fields {
		v, ok := vars[f]
		if !ok {
			return "", fmt.Errorf("%w: %s in %s", ErrMissingField, f, t.Key())
		}
		data[f] = v
	}
	data[FieldPrefix] = r.Prefix
	data[FieldSuffix] = r.Suffix
	return t.execute(data)
}
