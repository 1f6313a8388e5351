package report

import (
	"errors"
	"fmt"
)

// ErrMalformedInput matches every *MalformedInputError.
var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError is returned when the decomposed multipart structure
// itself is invalid, as opposed to its content.
type MalformedInputError struct {
	Message string
}

func (e *MalformedInputError) Error() string {
	return e.Message
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

func malformed(format string, args ...any) error {
	return &MalformedInputError{Message: fmt.Sprintf(format, args...)}
}

// Part is one named segment of an already decoded multipart body.
type Part interface {
	// Name is the form field name of the part.
	Name() string

	// IsFile reports whether the part carries a filename.
	IsFile() bool

	Filename() string
	Body() []byte

	// IsMultipart reports whether the part consists of nested parts.
	IsMultipart() bool
	Parts() []Part
}

// Factory creates reports from decomposed multipart bodies.
type Factory struct {
	builderOpts []BuilderOption
}

// NewFactory creates a Factory whose builders are configured with opts.
func NewFactory(opts ...BuilderOption) *Factory {
	return &Factory{builderOpts: opts}
}

// FromMultipart feeds every part of root into a new Builder and builds the
// Report. Scalar parts become values or labels, file parts become files.
func (f *Factory) FromMultipart(root Part) (*Report, error) {
	if !root.IsMultipart() {
		return nil, malformed("Expected a multi-part element")
	}

	b := NewBuilder(f.builderOpts...)
	for _, part := range root.Parts() {
		if part.IsMultipart() {
			return nil, malformed("Unexpected multi-part element with name %q", part.Name())
		}
		if part.Name() == "" {
			return nil, malformed("Header option name in part element is missing")
		}

		if part.IsFile() {
			if part.Filename() == "" {
				return nil, malformed("Header option filename in part element with name %q is missing", part.Name())
			}
			if err := b.AddFile(part.Name(), part.Filename(), part.Body()); err != nil {
				return nil, err
			}
			continue
		}

		if err := b.Add(part.Name(), string(part.Body())); err != nil {
			return nil, err
		}
	}

	return b.Build()
}

// FieldPart is a scalar part.
type FieldPart struct {
	FieldName string
	Value     []byte
}

func (p FieldPart) Name() string      { return p.FieldName }
func (p FieldPart) IsFile() bool      { return false }
func (p FieldPart) Filename() string  { return "" }
func (p FieldPart) Body() []byte      { return p.Value }
func (p FieldPart) IsMultipart() bool { return false }
func (p FieldPart) Parts() []Part     { return nil }

// FilePart is a part that carries a filename.
type FilePart struct {
	FieldName string
	FileName  string
	Content   []byte
}

func (p FilePart) Name() string      { return p.FieldName }
func (p FilePart) IsFile() bool      { return true }
func (p FilePart) Filename() string  { return p.FileName }
func (p FilePart) Body() []byte      { return p.Content }
func (p FilePart) IsMultipart() bool { return false }
func (p FilePart) Parts() []Part     { return nil }

// MultiPart is a part made of nested parts.
type MultiPart struct {
	FieldName string
	Children  []Part
}

func (p MultiPart) Name() string      { return p.FieldName }
func (p MultiPart) IsFile() bool      { return false }
func (p MultiPart) Filename() string  { return "" }
func (p MultiPart) Body() []byte      { return nil }
func (p MultiPart) IsMultipart() bool { return true }
func (p MultiPart) Parts() []Part     { return p.Children }
