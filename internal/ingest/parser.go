package ingest

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/luki-ev/synod-bug-report/internal/report"
)

// ErrNotMultipart is returned for bodies that are not multipart encoded.
var ErrNotMultipart = errors.New("request body is not multipart")

// counter tracks the parts read over all nesting levels of one body.
type counter struct {
	parts int
}

// ParseMultipart decomposes a multipart body into report parts. Parts whose
// own Content-Type is multipart are decomposed recursively up to
// limits.MaxDepth; the report factory decides whether nesting is acceptable.
func ParseMultipart(body io.Reader, contentType string, limits UploadLimits) (report.MultiPart, error) {
	boundary, err := multipartBoundary(contentType)
	if err != nil {
		return report.MultiPart{}, err
	}

	children, err := parseParts(multipart.NewReader(body, boundary), limits, 0, &counter{})
	if err != nil {
		return report.MultiPart{}, err
	}
	return report.MultiPart{Children: children}, nil
}

func multipartBoundary(contentType string) (string, error) {
	if contentType == "" {
		return "", fmt.Errorf("%w: missing Content-Type", ErrNotMultipart)
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("%w: got %s", ErrNotMultipart, mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", fmt.Errorf("%w: missing boundary", ErrNotMultipart)
	}
	return boundary, nil
}

func parseParts(mr *multipart.Reader, limits UploadLimits, depth int, c *counter) ([]report.Part, error) {
	var parts []report.Part
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return parts, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read part: %w", err)
		}

		c.parts++
		if err := limits.ValidatePartCount(c.parts); err != nil {
			p.Close()
			return nil, err
		}

		part, err := parsePart(p, limits, depth, c)
		p.Close()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
}

func parsePart(p *multipart.Part, limits UploadLimits, depth int, c *counter) (report.Part, error) {
	name, filename, hasFilename := dispositionParams(p.Header.Get("Content-Disposition"))

	if ct := p.Header.Get("Content-Type"); ct != "" {
		if boundary, err := multipartBoundary(ct); err == nil {
			if err := limits.ValidateDepth(depth + 1); err != nil {
				return nil, err
			}
			children, err := parseParts(multipart.NewReader(p, boundary), limits, depth+1, c)
			if err != nil {
				return nil, err
			}
			return report.MultiPart{FieldName: name, Children: children}, nil
		}
	}

	content, err := io.ReadAll(p)
	if err != nil {
		return nil, fmt.Errorf("read part %q: %w", name, err)
	}

	if hasFilename {
		return report.FilePart{FieldName: name, FileName: filename, Content: content}, nil
	}
	return report.FieldPart{FieldName: name, Value: content}, nil
}

// dispositionParams extracts the name and filename options of a
// Content-Disposition header. hasFilename is true when the filename option
// is present, even if it is empty.
func dispositionParams(header string) (name, filename string, hasFilename bool) {
	if header == "" {
		return "", "", false
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return "", "", false
	}
	filename, hasFilename = params["filename"]
	return params["name"], filename, hasFilename
}
