package querymeta

// Template is a named, reusable metadata definition which other markers (and templates) include.
// It is resolved once when it is built, including it later never looks anything up.
type Template struct {
	name string
	meta Meta
}

// NewTemplate builds a Template with the given name from the given options.
func NewTemplate(name string, options ...Option) (Template, error) {
	if name == "" {
		return Template{}, ErrEmptyTemplateName
	}

	meta, err := New(options...)
	if err != nil {
		return Template{}, err
	}

	return Template{name: name, meta: meta}, nil
}

// MustNewTemplate is like NewTemplate but panics on error.
func MustNewTemplate(name string, options ...Option) Template {
	template, err := NewTemplate(name, options...)
	if err != nil {
		panic(err)
	}

	return template
}

// Name returns the name the Template was declared with.
func (t Template) Name() string {
	return t.name
}

// Meta returns the resolved Meta, including everything inherited from nested templates.
func (t Template) Meta() Meta {
	return t.meta
}
