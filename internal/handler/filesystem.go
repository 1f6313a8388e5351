package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/luki-ev/synod-bug-report/internal/report"
	"github.com/luki-ev/synod-bug-report/internal/validation"
	"github.com/rs/zerolog/log"
)

const (
	dirMode  os.FileMode = 0o770
	fileMode os.FileMode = 0o660

	// DirTimeLayout formats the timestamp prefix of report directories.
	DirTimeLayout = "20060102150405"
)

var (
	// ErrMissingDeviceID is returned when a report has no usable device_id.
	// It rejects the submission, see Handler.
	ErrMissingDeviceID = &validation.Error{
		Kind:      validation.KindValidationFailed,
		Message:   `A value for "device_id" must not be empty`,
		FieldPath: "device_id",
	}

	// ErrReportDirExists is returned when the device already submitted a
	// report within the same second. It rejects the submission.
	ErrReportDirExists = &validation.Error{
		Kind:      validation.KindDuplicateEntry,
		Message:   `A report for this "device_id" was already submitted at the same time`,
		FieldPath: "device_id",
	}

	// ErrUnsafePath matches errors for file keys or names that would leave
	// the report directory. Such errors reject the submission.
	ErrUnsafePath = errors.New("unsafe report path")

	unsafeDeviceIDChars = regexp.MustCompile(`[^0-9a-zA-Z_]`)
)

// Filesystem stores every report in its own directory below Root:
//
//	<Root>/<YYYYmmddHHMMSS>-<device_id>/values.json
//	<Root>/<YYYYmmddHHMMSS>-<device_id>/labels.json
//	<Root>/<YYYYmmddHHMMSS>-<device_id>/files/<key>/<filename>
type Filesystem struct {
	root   string
	pretty bool
	now    func() time.Time
}

// FilesystemOption configures a Filesystem handler.
type FilesystemOption func(*Filesystem)

// WithPrettyJSON indents values.json and labels.json.
func WithPrettyJSON() FilesystemOption {
	return func(f *Filesystem) {
		f.pretty = true
	}
}

// WithNow replaces time.Now for the directory timestamp.
func WithNow(now func() time.Time) FilesystemOption {
	return func(f *Filesystem) {
		f.now = now
	}
}

// NewFilesystem creates a Filesystem handler writing below root.
func NewFilesystem(root string, opts ...FilesystemOption) *Filesystem {
	f := &Filesystem{
		root: strings.TrimRight(root, "/"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Root returns the directory reports are written to.
func (f *Filesystem) Root() string {
	return f.root
}

// HandleReport writes the report. A report directory is either complete or
// removed again.
func (f *Filesystem) HandleReport(ctx context.Context, r *report.Report) error {
	dir, err := f.makeReportDir(r)
	if err != nil {
		return err
	}

	labels := r.Labels()
	if labels == nil {
		labels = []string{}
	}

	if err := f.writeReport(r, dir, labels); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Error().Err(rmErr).Str("dir", dir).Msg("Failed to remove incomplete bug report")
		}
		return err
	}

	log.Info().
		Str("dir", dir).
		Int("values", len(r.AllValues())).
		Int("files", r.FileCount()).
		Int("labels", len(labels)).
		Msg("Bug report stored")

	return nil
}

func (f *Filesystem) writeReport(r *report.Report, dir string, labels []string) error {
	if err := f.writeJSON(filepath.Join(dir, "values.json"), r.AllValues()); err != nil {
		return err
	}
	if err := f.writeFiles(r, dir); err != nil {
		return err
	}
	return f.writeJSON(filepath.Join(dir, "labels.json"), labels)
}

// SafeDeviceID replaces every character outside [0-9a-zA-Z_] with '_'.
func SafeDeviceID(deviceID string) string {
	return strings.TrimSpace(unsafeDeviceIDChars.ReplaceAllString(deviceID, "_"))
}

// ReportDirName returns the directory name of a report created at t.
func ReportDirName(t time.Time, deviceID string) (string, error) {
	safe := SafeDeviceID(deviceID)
	if safe == "" {
		return "", ErrMissingDeviceID
	}
	return t.Format(DirTimeLayout) + "-" + safe, nil
}

// ParseReportDirTime extracts the creation time from a report directory
// name, interpreting it in loc.
func ParseReportDirTime(name string, loc *time.Location) (time.Time, bool) {
	stamp, deviceID, ok := strings.Cut(name, "-")
	if !ok || deviceID == "" || len(stamp) != len(DirTimeLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DirTimeLayout, stamp, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (f *Filesystem) makeReportDir(r *report.Report) (string, error) {
	name, err := ReportDirName(f.now(), r.Value("device_id", ""))
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(f.root, dirMode); err != nil {
		return "", fmt.Errorf("create report root: %w", err)
	}

	dir := filepath.Join(f.root, name)
	if err := os.Mkdir(dir, dirMode); err != nil {
		if errors.Is(err, os.ErrExist) {
			log.Debug().Str("dir", dir).Msg("Bug report directory already exists")
			return "", ErrReportDirExists
		}
		return "", fmt.Errorf("create report directory: %w", err)
	}
	return dir, nil
}

func (f *Filesystem) writeFiles(r *report.Report, dir string) error {
	for _, key := range r.FileKeys() {
		if !filepath.IsLocal(key) {
			return unsafePath(key, "File key %q is not allowed", key)
		}
		filesDir := filepath.Join(dir, "files", key)
		if err := os.MkdirAll(filesDir, dirMode); err != nil {
			return fmt.Errorf("create files directory: %w", err)
		}

		for name, content := range r.Files(key) {
			if !filepath.IsLocal(name) || strings.ContainsRune(name, '/') {
				return unsafePath(key+"/"+name, "Filename %q is not allowed", name)
			}
			path := filepath.Join(filesDir, name)
			if err := os.WriteFile(path, content, fileMode); err != nil {
				return fmt.Errorf("write report file: %w", err)
			}

			log.Debug().
				Str("path", path).
				Int("bytes", len(content)).
				Str("xxhash", fmt.Sprintf("%016x", xxhash.Sum64(content))).
				Msg("Bug report file written")
		}
	}
	return nil
}

// unsafePathError rejects a key or filename that cannot be stored
type unsafePathError struct {
	cause *validation.Error
}

func unsafePath(fieldPath, format string, args ...any) error {
	cause := validation.Failed(format, args...)
	cause.FieldPath = fieldPath
	return &unsafePathError{cause: cause}
}

func (e *unsafePathError) Error() string        { return e.cause.Error() }
func (e *unsafePathError) Unwrap() error        { return e.cause }
func (e *unsafePathError) Is(target error) bool { return target == ErrUnsafePath }

func (f *Filesystem) writeJSON(path string, v any) error {
	var (
		data []byte
		err  error
	)
	if f.pretty {
		data, err = json.MarshalIndent(v, "", "    ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
