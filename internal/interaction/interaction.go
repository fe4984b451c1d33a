// Package interaction holds the per-partition hover and selection state and
// the track-level policy that governs selection.
package interaction

import (
	"fmt"
	"strings"
)

// Hover is driven by pointer hit testing in the view layer.
type Hover int

const (
	HoverDefault Hover = iota
	HoverEmphasized
	HoverDeemphasized // also used for partitions outside an active range filter
)

func (h Hover) String() string {
	switch h {
	case HoverEmphasized:
		return "emphasized"
	case HoverDeemphasized:
		return "deemphasized"
	default:
		return "default"
	}
}

// Selection is driven by clicks, subject to the track's SelectionMode.
type Selection int

const (
	SelectionDefault Selection = iota
	PartiallySelected
	Selected
)

func (s Selection) String() string {
	switch s {
	case PartiallySelected:
		return "partially-selected"
	case Selected:
		return "selected"
	default:
		return "default"
	}
}

// State is the pair of independent machines carried by every partition.
// A partition can be deemphasized and selected at once.
type State struct {
	Hover     Hover
	Selection Selection
}

// IsSelected reports whether the selection state is anything but default.
func (s State) IsSelected() bool {
	return s.Selection != SelectionDefault
}

// SelectionMode decides whether more than one partition may be selected.
type SelectionMode int

const (
	Single SelectionMode = iota
	Multi
)

func (m SelectionMode) String() string {
	if m == Multi {
		return "multi"
	}
	return "single"
}

// ParseSelectionMode reads "single" or "multi" (case-insensitive).
// The empty string means Single.
func ParseSelectionMode(s string) (SelectionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return Single, nil
	case "multi", "multiple":
		return Multi, nil
	default:
		return Single, fmt.Errorf("unknown selection mode %q (want single or multi)", s)
	}
}

// Policy is per-track selection configuration.
type Policy struct {
	Mode SelectionMode
	// DismissSelectionOnRelease clears the selection when the pointer button
	// is released instead of keeping it until the next click.
	DismissSelectionOnRelease bool
}
