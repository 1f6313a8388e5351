// Package validation holds the rules a bug report has to satisfy.
//
// Rules are pure functions over a Limits value. The Validator composes them
// and adds file content sniffing.
package validation

import (
	"regexp"
	"unicode/utf8"

	"github.com/gobwas/glob"
)

var (
	// printableASCIIRegex accepts the characters from space to tilde only
	printableASCIIRegex = regexp.MustCompile(`^[ -~]*$`)

	// textRegex rejects control codes except \t, \n and \r
	textRegex = regexp.MustCompile(`^[^\x00-\x08\x0B\x0C\x0E-\x1F\x7F]*$`)

	// DefaultFilenameRegex is the default for Limits.FilenamePattern
	DefaultFilenameRegex = regexp.MustCompile(`^[0-9a-zA-Z-._]+$`)
)

// TextKey is the value key whose value may span multiple lines.
const TextKey = "text"

// ValidateKey checks a value or file key.
func ValidateKey(l Limits, key string) error {
	if key == "" {
		return Failed("A key must not be empty")
	}
	if utf8.RuneCountInString(key) > l.KeyMaxLength {
		return Failed("A key must not have more than %d characters", l.KeyMaxLength)
	}
	if !printableASCIIRegex.MatchString(key) {
		return Failed("A key must only contain printable ASCII characters")
	}
	return nil
}

// ValidateValue checks a value together with its key. The value for
// TextKey follows its own rule, see ValidateText.
func ValidateValue(l Limits, key, value string) error {
	if key == TextKey {
		return ValidateText(l, value)
	}

	if err := ValidateKey(l, key); err != nil {
		return err
	}
	if utf8.RuneCountInString(value) > l.ValueMaxLength {
		return Failed("A value for key %q must not have more than %d characters", key, l.ValueMaxLength)
	}
	if !printableASCIIRegex.MatchString(value) {
		return Failed("A value for key %q may only contain printable ASCII", key)
	}
	return nil
}

// ValidateText checks the free-form description of a report.
func ValidateText(l Limits, text string) error {
	if utf8.RuneCountInString(text) > l.TextMaxLength {
		return Failed("A value for key %q must not have more than %d characters", TextKey, l.TextMaxLength)
	}
	if !utf8.ValidString(text) || !textRegex.MatchString(text) {
		return Failed(`A value for key %q must not contain control code characters, but \r, \n, and \t`, TextKey)
	}
	return nil
}

// ValidateLabel checks a single label.
func ValidateLabel(l Limits, label string) error {
	if label == "" {
		return Failed("A label must not be empty")
	}
	if utf8.RuneCountInString(label) > l.LabelMaxLength {
		return Failed("A label must not have more than %d characters", l.LabelMaxLength)
	}
	if !printableASCIIRegex.MatchString(label) {
		return Failed("A label must only contain printable ASCII characters")
	}
	return nil
}

// ValidateFilename checks the name of an attached file.
func ValidateFilename(l Limits, filename string) error {
	if filename == "" {
		return Failed("A filename must not be empty")
	}
	if utf8.RuneCountInString(filename) > l.FilenameMaxLength {
		return Failed("A filename must not have more than %d characters", l.FilenameMaxLength)
	}
	if !l.filenameRegex().MatchString(filename) {
		return Failed("Value %q is not an allowed filename", filename)
	}
	return nil
}

// ValidateFileSize checks the byte length of an attached file.
func ValidateFileSize(l Limits, size int64, fieldPath string) error {
	if size > l.FileMaxSize {
		return Failed("A file must not have more than %d bytes", l.FileMaxSize).withPath(fieldPath)
	}
	return nil
}

// ValidateValueCount checks the number of values after a pending addition.
func ValidateValueCount(l Limits, count int) error {
	if count > l.ValueMaxCount {
		return Failed("More than %d values are not allowed", l.ValueMaxCount)
	}
	return nil
}

// ValidateLabelCount checks the number of labels after a pending addition.
func ValidateLabelCount(l Limits, count int) error {
	if count > l.LabelMaxCount {
		return Failed("More than %d labels are not allowed", l.LabelMaxCount)
	}
	return nil
}

// ValidateFileCount checks the number of files after a pending addition.
func ValidateFileCount(l Limits, count int) error {
	if count > l.FileMaxCount {
		return Failed("More than %d files are not allowed", l.FileMaxCount)
	}
	return nil
}

// ValidateFinalLabels requires at least one label.
func ValidateFinalLabels(labels []string) error {
	if len(labels) == 0 {
		return Failed("At least one label is required")
	}
	return nil
}

// ValidateFinalValues requires a value for every key in required.
func ValidateFinalValues(required []string, values map[string]string) error {
	for _, key := range required {
		if _, ok := values[key]; !ok {
			return Failed("A value for %q is missing", key)
		}
	}
	return nil
}

// InMediaTypes checks that mediaType matches at least one of the glob
// patterns. Globs are case-sensitive and "*" does not cross "/", so
// "text/*" matches "text/plain" but not "text/plain/extra". Patterns that
// fail to compile never match.
func InMediaTypes(mediaType string, patterns []string) error {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		if g, err := compileMediaType(pattern); err == nil {
			globs = append(globs, g)
		}
	}
	if err := matchMediaType(mediaType, globs); err != nil {
		return err
	}
	return nil
}

// matchMediaType is the single media type check behind InMediaTypes and
// Validator.ValidateFile.
func matchMediaType(mediaType string, globs []glob.Glob) *Error {
	for _, g := range globs {
		if g.Match(mediaType) {
			return nil
		}
	}
	return &Error{
		Kind:    KindValidationFailed,
		Message: `"` + mediaType + `" does not match any of the allowed media types.`,
		Code:    CodeInvalidMediaType,
	}
}

func compileMediaType(pattern string) (glob.Glob, error) {
	return glob.Compile(pattern, '/')
}
