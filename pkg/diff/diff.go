// Package diff compares two path indices of the same listing.
package diff

import (
	"github.com/fruitsalade/drivetracker/pkg/models"
)

// Kind identifies the type of change.
type Kind int

const (
	Added Kind = iota
	Removed
	Moved
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Moved:
		return "moved"
	default:
		return "unknown"
	}
}

// Change is one difference between two indices. OldPath is empty for
// additions, NewPath for removals.
type Change struct {
	Kind    Kind   `json:"kind"`
	ID      string `json:"id"`
	OldPath string `json:"old_path,omitempty"`
	NewPath string `json:"new_path,omitempty"`
}

// Result is the outcome of Compute.
type Result struct {
	Changes []Change
	// DuplicateIDs lists ids seen more than once within either index.
	// Changes for these ids are not reliable.
	DuplicateIDs []string
}

// Empty reports whether no change was found.
func (r Result) Empty() bool {
	return len(r.Changes) == 0
}

// Counts returns the number of changes per kind.
func (r Result) Counts() map[Kind]int {
	counts := make(map[Kind]int, 3)
	for _, c := range r.Changes {
		counts[c.Kind]++
	}
	return counts
}

// Compute diffs previous against current. Additions and moves come first,
// in current order, followed by removals in previous order.
func Compute(previous, current []models.IndexEntry) Result {
	var res Result
	prevByID, prevDups := byID(previous)
	curByID, curDups := byID(current)
	res.DuplicateIDs = mergeIDs(prevDups, curDups)

	for _, entry := range current {
		old, ok := prevByID[entry.ID]
		switch {
		case !ok:
			res.Changes = append(res.Changes, Change{Kind: Added, ID: entry.ID, NewPath: entry.Path})
		case old.Path != entry.Path:
			res.Changes = append(res.Changes, Change{Kind: Moved, ID: entry.ID, OldPath: old.Path, NewPath: entry.Path})
		}
	}
	for _, entry := range previous {
		if _, ok := curByID[entry.ID]; !ok {
			res.Changes = append(res.Changes, Change{Kind: Removed, ID: entry.ID, OldPath: entry.Path})
		}
	}
	return res
}

// byID maps each id to its first entry and collects repeated ids.
func byID(entries []models.IndexEntry) (map[string]models.IndexEntry, []string) {
	m := make(map[string]models.IndexEntry, len(entries))
	var dups []string
	for _, e := range entries {
		if _, seen := m[e.ID]; seen {
			dups = append(dups, e.ID)
			continue
		}
		m[e.ID] = e
	}
	return m, dups
}

func mergeIDs(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
