// Package filter decides which filesystem events may start a compression
// pipeline.
package filter

import (
	"path/filepath"
	"strings"
	"time"

	"desktop-video-compress/internal/mediatypes"
)

// Kind is the type of a watched event.
type Kind string

const (
	// KindCreated covers new files and files moved into the directory.
	KindCreated Kind = "created"
	// KindModified covers writes to an existing file. It never starts a
	// pipeline on its own.
	KindModified Kind = "modified"
)

// Event is a single filesystem notification for a path.
type Event struct {
	Path string
	Kind Kind
	Time time.Time
}

// Reason explains a decision. ReasonAccepted is the only accepting reason.
type Reason string

// Decision reasons, also used as metric label values.
const (
	ReasonAccepted   Reason = "accepted"
	ReasonExtension  Reason = "extension"
	ReasonCompressed Reason = "compressed"
	ReasonHidden     Reason = "hidden"
	ReasonOutside    Reason = "outside"
	ReasonDuplicate  Reason = "duplicate"
	ReasonModified   Reason = "modified"
)

// AllReasons lists every reason, in a stable order.
var AllReasons = []Reason{
	ReasonAccepted, ReasonExtension, ReasonCompressed,
	ReasonHidden, ReasonOutside, ReasonDuplicate, ReasonModified,
}

// Decision is the result of Check.
type Decision struct {
	Accept bool
	Reason Reason
}

// ActiveSet is the read side of the re-entry guard.
type ActiveSet interface {
	IsActive(path string) bool
}

// Filter classifies events for one watched directory.
type Filter struct {
	dir        string
	extensions mediatypes.ExtensionSet
	active     ActiveSet
}

// New creates a Filter for events under dir. active may be nil, in which
// case duplicates are never reported here.
func New(dir string, extensions mediatypes.ExtensionSet, active ActiveSet) *Filter {
	return &Filter{
		dir:        filepath.Clean(dir),
		extensions: extensions,
		active:     active,
	}
}

// Check classifies ev. It does not touch the filesystem.
func (f *Filter) Check(ev Event) Decision {
	path := filepath.Clean(ev.Path)

	if filepath.Dir(path) != f.dir {
		return reject(ReasonOutside)
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return reject(ReasonHidden)
	}
	if !f.extensions.Contains(path) {
		return reject(ReasonExtension)
	}
	if mediatypes.IsCompressedName(path) {
		return reject(ReasonCompressed)
	}
	if f.active != nil && f.active.IsActive(path) {
		return reject(ReasonDuplicate)
	}
	if ev.Kind != KindCreated {
		return reject(ReasonModified)
	}

	return Decision{Accept: true, Reason: ReasonAccepted}
}

func reject(reason Reason) Decision {
	return Decision{Accept: false, Reason: reason}
}
