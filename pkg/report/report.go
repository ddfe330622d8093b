// Package report renders classified changes as a notification body.
package report

import (
	"fmt"
	"strings"

	"github.com/fruitsalade/drivetracker/pkg/diff"
	"github.com/fruitsalade/drivetracker/pkg/tree"
	"github.com/fruitsalade/drivetracker/pkg/workflow"
)

// Block labels.
const (
	LabelAdded        = "Added"
	LabelRemoved      = "Removed"
	LabelStateChanged = "State Changed"
	LabelRenamed      = "Renamed"
)

// Options controls path shortening.
type Options struct {
	DropSegments int // leading segments removed from displayed paths
	MinDepth     int // only paths with more segments than this are shortened
}

// DefaultOptions drops the root folder from paths deeper than two segments.
func DefaultOptions() Options {
	return Options{DropSegments: 1, MinDepth: 2}
}

// Item pairs a change with the classification of its move, if any.
type Item struct {
	Change diff.Change
	Class  *workflow.Classification
}

// Label returns the block label the item renders under.
func (it Item) Label() string {
	switch it.Change.Kind {
	case diff.Added:
		return LabelAdded
	case diff.Removed:
		return LabelRemoved
	}
	if it.Class != nil && it.Class.Transition() {
		return LabelStateChanged
	}
	return LabelRenamed
}

// Classify attaches workflow classifications to moves, keeping order.
func Classify(changes []diff.Change) []Item {
	items := make([]Item, 0, len(changes))
	for _, c := range changes {
		it := Item{Change: c}
		if c.Kind == diff.Moved {
			cls := workflow.ClassifyMove(c.OldPath, c.NewPath)
			it.Class = &cls
		}
		items = append(items, it)
	}
	return items
}

// Render returns the report text and whether there was anything to report.
// An empty item list yields ("", false) so callers can skip dispatch.
func Render(items []Item, opts Options) (string, bool) {
	if len(items) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "**%s**\n", it.Label())
		c := it.Change
		switch it.Label() {
		case LabelAdded:
			b.WriteString(DropRoot(c.NewPath, opts))
			b.WriteString("\n")
		case LabelRemoved:
			b.WriteString(DropRoot(c.OldPath, opts))
			b.WriteString("\n")
		case LabelStateChanged:
			fmt.Fprintf(&b, "「 %s 」\nFrom: %s\nTo: %s\n", it.Class.Subject, it.Class.From, it.Class.To)
		case LabelRenamed:
			fmt.Fprintf(&b, "%s -> %s\n", DropRoot(c.OldPath, opts), DropRoot(c.NewPath, opts))
		}
		b.WriteString("\n")
	}
	return b.String(), true
}

// DropRoot removes opts.DropSegments leading segments from paths with more
// than opts.MinDepth segments. At least one segment is always kept.
func DropRoot(path string, opts Options) string {
	segs := tree.Segments(path)
	if len(segs) <= opts.MinDepth || opts.DropSegments <= 0 {
		return path
	}
	n := opts.DropSegments
	if n > len(segs)-1 {
		n = len(segs) - 1
	}
	return strings.Join(segs[n:], "/")
}
