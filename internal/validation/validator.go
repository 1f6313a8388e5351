package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/gobwas/glob"

	"github.com/luki-ev/synod-bug-report/internal/mediatype"
)

// Checker is the set of checks a report builder runs while accumulating a
// report. Count checks receive the count after the pending addition.
type Checker interface {
	ValidateFile(key, filename string, content []byte) error
	ValidateFileCount(count int) error
	ValidateLabel(label string) error
	ValidateLabelCount(count int) error
	ValidateValue(key, value string) error
	ValidateValueCount(count int) error
	ValidateFinalFiles(files map[string]map[string][]byte) error
	ValidateFinalLabels(labels []string) error
	ValidateFinalValues(values map[string]string) error
}

// Limits configures the Validator. The zero value is not usable, start
// from DefaultLimits.
type Limits struct {
	KeyMaxLength      int
	LabelMaxCount     int
	LabelMaxLength    int
	ValueMaxCount     int
	ValueMaxLength    int
	TextMaxLength     int
	FilenameMaxLength int
	FilenamePattern   *regexp.Regexp
	FileMaxCount      int
	FileMaxSize       int64

	// FileAllowedMediaTypes are globs matched against the sniffed media
	// type. Every listed type must be one the guesser can produce.
	FileAllowedMediaTypes []string

	ValueKeysRequired []string
}

// DefaultLimits returns the limits bug reports are accepted with unless
// configured otherwise.
func DefaultLimits() Limits {
	return Limits{
		KeyMaxLength:      256,
		LabelMaxCount:     20,
		LabelMaxLength:    256,
		ValueMaxCount:     30,
		ValueMaxLength:    256,
		TextMaxLength:     1000,
		FilenameMaxLength: 256,
		FilenamePattern:   DefaultFilenameRegex,
		FileMaxCount:      50,
		FileMaxSize:       5 * 1024 * 1024,
		FileAllowedMediaTypes: []string{
			mediatype.Gzip,
			mediatype.PNG,
			mediatype.TextPlain,
		},
		ValueKeysRequired: []string{
			TextKey,
			"user_agent",
			"user_id",
			"device",
			"device_id",
		},
	}
}

// Validate checks that the limits are usable.
func (l Limits) Validate() error {
	positive := map[string]int64{
		"key max length":      int64(l.KeyMaxLength),
		"label max count":     int64(l.LabelMaxCount),
		"label max length":    int64(l.LabelMaxLength),
		"value max count":     int64(l.ValueMaxCount),
		"value max length":    int64(l.ValueMaxLength),
		"text max length":     int64(l.TextMaxLength),
		"filename max length": int64(l.FilenameMaxLength),
		"file max count":      int64(l.FileMaxCount),
		"file max size":       l.FileMaxSize,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive (got: %d)", name, v)
		}
	}
	for _, pattern := range l.FileAllowedMediaTypes {
		if _, err := compileMediaType(pattern); err != nil {
			return fmt.Errorf("invalid media type pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func (l Limits) filenameRegex() *regexp.Regexp {
	if l.FilenamePattern == nil {
		return DefaultFilenameRegex
	}
	return l.FilenamePattern
}

// clone copies the slices so a Validator never shares them with its caller
func (l Limits) clone() Limits {
	l.FileAllowedMediaTypes = append([]string(nil), l.FileAllowedMediaTypes...)
	l.ValueKeysRequired = append([]string(nil), l.ValueKeysRequired...)
	return l
}

// Validator implements Checker over a fixed set of Limits. It is immutable
// and safe for concurrent use; reconfigure by constructing a new one.
type Validator struct {
	limits     Limits
	guesser    mediatype.Guesser
	mediaGlobs []glob.Glob
}

// Option configures a Validator.
type Option func(*Validator)

// WithGuesser replaces the media type guesser used for file content.
func WithGuesser(g mediatype.Guesser) Option {
	return func(v *Validator) {
		v.guesser = g
	}
}

// New creates a Validator for the given limits.
func New(limits Limits, opts ...Option) (*Validator, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	v := &Validator{
		limits:  limits.clone(),
		guesser: mediatype.NewGuesser(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.guesser == nil {
		return nil, errors.New("media type guesser must not be nil")
	}

	for _, pattern := range v.limits.FileAllowedMediaTypes {
		g, err := compileMediaType(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid media type pattern %q: %w", pattern, err)
		}
		v.mediaGlobs = append(v.mediaGlobs, g)
	}

	return v, nil
}

// NewDefault creates a Validator with DefaultLimits.
func NewDefault() *Validator {
	v, err := New(DefaultLimits())
	if err != nil {
		panic(fmt.Sprintf("validation: default limits rejected: %v", err))
	}
	return v
}

// ValidateFile checks key, filename, size and sniffed media type of a file.
func (v *Validator) ValidateFile(key, filename string, content []byte) error {
	if err := ValidateKey(v.limits, key); err != nil {
		return err
	}
	if err := ValidateFilename(v.limits, filename); err != nil {
		return err
	}

	fieldPath := key + "/" + filename
	if err := ValidateFileSize(v.limits, int64(len(content)), fieldPath); err != nil {
		return err
	}

	if err := matchMediaType(v.guesser.Guess(content), v.mediaGlobs); err != nil {
		err.FieldPath = fieldPath
		return err
	}
	return nil
}

func (v *Validator) ValidateFileCount(count int) error {
	return ValidateFileCount(v.limits, count)
}

func (v *Validator) ValidateLabel(label string) error {
	return ValidateLabel(v.limits, label)
}

func (v *Validator) ValidateLabelCount(count int) error {
	return ValidateLabelCount(v.limits, count)
}

func (v *Validator) ValidateValue(key, value string) error {
	return ValidateValue(v.limits, key, value)
}

func (v *Validator) ValidateValueCount(count int) error {
	return ValidateValueCount(v.limits, count)
}

// ValidateFinalFiles places no constraint on the complete file set.
func (v *Validator) ValidateFinalFiles(map[string]map[string][]byte) error {
	return nil
}

func (v *Validator) ValidateFinalLabels(labels []string) error {
	return ValidateFinalLabels(labels)
}

func (v *Validator) ValidateFinalValues(values map[string]string) error {
	return ValidateFinalValues(v.limits.ValueKeysRequired, values)
}

var _ Checker = (*Validator)(nil)
