package querymeta

import (
	"errors"
)

var (
	// ErrConflictingComment is returned when more than one option tries to assign the comment of a marker.
	ErrConflictingComment = errors.New("conflicting comment sources for query metadata")

	// ErrEmptyTemplateName is returned when a Template is created without a name.
	ErrEmptyTemplateName = errors.New("template name must not be empty")
)

// Meta is the metadata attached to a repository operation.
//
// The zero value is valid and carries an empty comment.
// Meta is immutable, so it can be shared between goroutines without coordination.
type Meta struct {
	comment string
}

// Comment returns the comment exactly as it was assigned, or "" if none was assigned.
func (m Meta) Comment() string {
	return m.comment
}

// HasComment reports whether the comment is non-empty.
func (m Meta) HasComment() bool {
	return m.comment != ""
}

// metaBuilder collects the options for a Meta and tracks which option assigned the comment.
type metaBuilder struct {
	meta       Meta
	commentSet bool
}

func (b *metaBuilder) assignComment(comment string) error {
	if b.commentSet {
		return ErrConflictingComment
	}

	b.meta.comment = comment
	b.commentSet = true

	return nil
}

// Option defines a functional option for building a Meta or a Template.
type Option func(*metaBuilder) error

// WithComment sets the comment. The text is stored verbatim, an explicit "" included.
func WithComment(comment string) Option {
	return func(b *metaBuilder) error {
		return b.assignComment(comment)
	}
}

// Including copies the resolved metadata of the given Template.
// It is a pass-through: the result carries the template's literal comment.
func Including(template Template) Option {
	return func(b *metaBuilder) error {
		return b.assignComment(template.meta.comment)
	}
}

// New builds a Meta from the given options.
// It fails with ErrConflictingComment if two options assign the comment.
func New(options ...Option) (Meta, error) {
	builder := metaBuilder{}

	for _, option := range options {
		if err := option(&builder); err != nil {
			return Meta{}, err
		}
	}

	return builder.meta, nil
}

// MustNew is like New but panics on error.
// It is meant for package level declarations where the options are static.
func MustNew(options ...Option) Meta {
	meta, err := New(options...)
	if err != nil {
		panic(err)
	}

	return meta
}
