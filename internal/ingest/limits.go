package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrTooManyParts is returned when a body has more parts than allowed
	ErrTooManyParts = errors.New("too many parts")

	// ErrTooDeep is returned when multipart bodies are nested too deeply
	ErrTooDeep = errors.New("multipart nesting too deep")
)

// UploadLimits defines the structural limits of a report upload. Content
// limits (counts, sizes, media types) are enforced by the report builder.
type UploadLimits struct {
	MaxTotalBytes int64 // Maximum body size in bytes
	MaxParts      int   // Maximum number of parts over all nesting levels
	MaxDepth      int   // Maximum multipart nesting below the body
}

// DefaultUploadLimits returns the default upload limits
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		MaxTotalBytes: 64 * 1024 * 1024, // 64MB
		MaxParts:      512,
		MaxDepth:      1,
	}
}

// NewUploadLimits creates upload limits from configuration
func NewUploadLimits(maxTotalBytes int64) UploadLimits {
	limits := DefaultUploadLimits()
	if maxTotalBytes > 0 {
		limits.MaxTotalBytes = maxTotalBytes
	}
	return limits
}

// ValidatePartCount checks if the part count is within limits
func (l UploadLimits) ValidatePartCount(count int) error {
	if count > l.MaxParts {
		return fmt.Errorf("%w: got more than %d parts", ErrTooManyParts, l.MaxParts)
	}
	return nil
}

// ValidateDepth checks if a nesting depth is within limits
func (l UploadLimits) ValidateDepth(depth int) error {
	if depth > l.MaxDepth {
		return fmt.Errorf("%w: depth %d, limit is %d", ErrTooDeep, depth, l.MaxDepth)
	}
	return nil
}
