package mediatypes

import (
	"path/filepath"
	"sort"
	"strings"
)

// CompressedMarker is inserted before the extension of every output file.
// Any stem containing it is treated as an output and never compressed again.
const CompressedMarker = "_compressed"

// DefaultVideoExtensions is the recognized set when none is configured.
var DefaultVideoExtensions = []string{".mp4", ".m4v", ".mov", ".avi", ".mkv", ".webm", ".flv", ".wmv"}

// ExtensionSet is a set of lowercase extensions including the leading dot.
type ExtensionSet map[string]bool

// NewExtensionSet normalizes exts (case, missing dot, whitespace) into a set.
// Empty entries are dropped.
func NewExtensionSet(exts []string) ExtensionSet {
	set := make(ExtensionSet, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || ext == "." {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// ParseExtensions parses a comma separated list such as "mp4,mov,.mkv".
// An empty or blank list yields the default set.
func ParseExtensions(list string) ExtensionSet {
	set := NewExtensionSet(strings.Split(list, ","))
	if len(set) == 0 {
		return NewExtensionSet(DefaultVideoExtensions)
	}
	return set
}

// Contains reports whether path has an extension in the set.
func (s ExtensionSet) Contains(path string) bool {
	return s[strings.ToLower(filepath.Ext(path))]
}

// Sorted returns the extensions in lexical order, for logging.
func (s ExtensionSet) Sorted() []string {
	exts := make([]string, 0, len(s))
	for ext := range s {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsCompressedName reports whether the file name of path marks it as an
// output of this agent.
func IsCompressedName(path string) bool {
	return strings.Contains(Stem(path), CompressedMarker)
}

// CompressedPath returns the output path for input in the same directory:
// <stem>_compressed.<ext>. When container is non-empty it replaces the
// input extension.
func CompressedPath(input, container string) string {
	ext := filepath.Ext(input)
	if container != "" {
		ext = "." + strings.TrimPrefix(strings.ToLower(container), ".")
	}
	return filepath.Join(filepath.Dir(input), Stem(input)+CompressedMarker+ext)
}
