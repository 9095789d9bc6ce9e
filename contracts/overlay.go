package contracts

import (
	"path"
	"strings"
)

type OverlayKind int

const (
	ArchiveOverlay OverlayKind = iota
	LooseFileOverlay
)

func (this OverlayKind) String() string {
	if this == ArchiveOverlay {
		return "archive"
	}
	return "loose-file"
}

// OverlayEntry is one item of an instance's mod list. Priority is the
// position in that list: 0 wins every path collision.
type OverlayEntry struct {
	Path     string
	Kind     OverlayKind
	Priority int
}

// OverlayKindOf classifies a file by extension the way the mod list does:
// zip and jar files are merged entry by entry, anything else is copied as is.
func OverlayKindOf(filename string) OverlayKind {
	switch strings.ToLower(path.Ext(filename)) {
	case ".zip", ".jar":
		return ArchiveOverlay
	default:
		return LooseFileOverlay
	}
}

type OverlayProvider interface {
	Overlays(instance Instance) ([]OverlayEntry, error)
}
