// Package report turns the parts of a bug report submission into an
// immutable, validated Report.
package report

import (
	"maps"
	"slices"
)

// Report is a finalized bug report. It can only be created by a Builder and
// never changes afterwards; accessors hand out copies.
type Report struct {
	values map[string]string
	files  map[string]map[string][]byte
	labels []string
}

// AllValues returns all values keyed by their field key.
func (r *Report) AllValues() map[string]string {
	return maps.Clone(r.values)
}

// Value returns the value for key, or def if there is none.
func (r *Report) Value(key, def string) string {
	if v, ok := r.values[key]; ok {
		return v
	}
	return def
}

// HasValue reports whether a value for key exists.
func (r *Report) HasValue(key string) bool {
	_, ok := r.values[key]
	return ok
}

// AllFiles returns all files keyed by field key and then by filename.
func (r *Report) AllFiles() map[string]map[string][]byte {
	all := make(map[string]map[string][]byte, len(r.files))
	for key := range r.files {
		all[key] = r.Files(key)
	}
	return all
}

// Files returns the files for key keyed by filename. It returns nil if
// there are no files for key.
func (r *Report) Files(key string) map[string][]byte {
	files, ok := r.files[key]
	if !ok {
		return nil
	}
	out := make(map[string][]byte, len(files))
	for name, content := range files {
		out[name] = slices.Clone(content)
	}
	return out
}

// HasFiles reports whether at least one file exists for key.
func (r *Report) HasFiles(key string) bool {
	_, ok := r.files[key]
	return ok
}

// File returns the content of a single file and whether it exists.
func (r *Report) File(key, filename string) ([]byte, bool) {
	content, ok := r.files[key][filename]
	if !ok {
		return nil, false
	}
	return slices.Clone(content), true
}

// HasFile reports whether a file exists for key and filename.
func (r *Report) HasFile(key, filename string) bool {
	_, ok := r.files[key][filename]
	return ok
}

// FileKeys returns the file keys in lexical order.
func (r *Report) FileKeys() []string {
	return slices.Sorted(maps.Keys(r.files))
}

// FileCount returns the total number of files over all keys.
func (r *Report) FileCount() int {
	n := 0
	for _, files := range r.files {
		n += len(files)
	}
	return n
}

// Labels returns the labels in the order they were added.
func (r *Report) Labels() []string {
	return slices.Clone(r.labels)
}

// HasLabel reports whether label was added at least once.
func (r *Report) HasLabel(label string) bool {
	return slices.Contains(r.labels, label)
}
