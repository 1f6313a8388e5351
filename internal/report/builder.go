package report

import (
	"errors"
	"maps"
	"slices"

	"github.com/luki-ev/synod-bug-report/internal/validation"
)

// LabelKey is the part name that adds a label instead of a value.
const LabelKey = "label"

// ErrBuilderSpent is returned when a Builder is used after Build.
var ErrBuilderSpent = errors.New("report builder already built")

// Builder accumulates values, files and labels of one submission and
// validates each addition immediately. A Builder belongs to a single
// request and is not safe for concurrent use.
type Builder struct {
	checker validation.Checker

	values    map[string]string
	files     map[string]map[string][]byte
	fileCount int
	labels    []string

	spent bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithChecker sets the checks run on every addition and on Build.
func WithChecker(c validation.Checker) BuilderOption {
	return func(b *Builder) {
		b.checker = c
	}
}

// NewBuilder creates an empty Builder. Without WithChecker it validates
// against validation.DefaultLimits.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		values: make(map[string]string),
		files:  make(map[string]map[string][]byte),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.checker == nil {
		b.checker = validation.NewDefault()
	}
	return b
}

// Add adds a value, or a label if key is LabelKey.
//
// Count limits are checked before the content of the addition, so a flood
// of invalid items still yields the count error first.
func (b *Builder) Add(key, value string) error {
	if b.spent {
		return ErrBuilderSpent
	}
	if key == LabelKey {
		return b.addLabel(value)
	}
	return b.addValue(key, value)
}

// AddFile adds a file under key. The content is copied.
func (b *Builder) AddFile(key, filename string, content []byte) error {
	if b.spent {
		return ErrBuilderSpent
	}

	if err := b.checker.ValidateFileCount(b.fileCount + 1); err != nil {
		return err
	}
	if err := b.checker.ValidateFile(key, filename, content); err != nil {
		return err
	}
	if _, exists := b.files[key][filename]; exists {
		return validation.Duplicate("Only one file is allowed for the combination of key %q and filename %q", key, filename)
	}

	if b.files[key] == nil {
		b.files[key] = make(map[string][]byte)
	}
	b.files[key][filename] = slices.Clone(content)
	b.fileCount++

	return nil
}

// Build runs the final checks and returns the Report. After Build the
// Builder is spent, whether or not it succeeded.
func (b *Builder) Build() (*Report, error) {
	if b.spent {
		return nil, ErrBuilderSpent
	}
	b.spent = true

	if err := b.checker.ValidateFinalFiles(b.files); err != nil {
		return nil, err
	}
	if err := b.checker.ValidateFinalLabels(b.labels); err != nil {
		return nil, err
	}
	if err := b.checker.ValidateFinalValues(b.values); err != nil {
		return nil, err
	}

	files := make(map[string]map[string][]byte, len(b.files))
	for key, named := range b.files {
		files[key] = maps.Clone(named)
	}

	return &Report{
		values: maps.Clone(b.values),
		files:  files,
		labels: slices.Clone(b.labels),
	}, nil
}

func (b *Builder) addLabel(label string) error {
	if err := b.checker.ValidateLabelCount(len(b.labels) + 1); err != nil {
		return err
	}
	if err := b.checker.ValidateLabel(label); err != nil {
		return err
	}

	b.labels = append(b.labels, label)
	return nil
}

func (b *Builder) addValue(key, value string) error {
	if err := b.checker.ValidateValueCount(len(b.values) + 1); err != nil {
		return err
	}
	if err := b.checker.ValidateValue(key, value); err != nil {
		return err
	}
	if _, exists := b.values[key]; exists {
		return validation.Duplicate("Only one value is allowed for key %q", key)
	}

	b.values[key] = value
	return nil
}
