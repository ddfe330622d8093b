// Package tree rebuilds folder trees from flat listings and flattens them
// into path indices.
package tree

import (
	"strings"

	"github.com/fruitsalade/drivetracker/pkg/models"
)

// BuildStats counts records that could not be placed as declared.
type BuildStats struct {
	Records    int      // records seen
	Placed     int      // nodes present in the forest
	Malformed  int      // records without an id, skipped
	Dangling   int      // records whose parent is unknown, kept as roots
	Duplicates int      // records repeating an id already placed, skipped
	Cycles     int      // records whose parent link would close a loop, kept as roots
	DupIDs     []string // ids counted under Duplicates, in input order
}

// Clean reports whether every record was placed as declared.
func (s BuildStats) Clean() bool {
	return s.Malformed == 0 && s.Dangling == 0 && s.Duplicates == 0 && s.Cycles == 0
}

// Build converts a flat listing into a forest. Roots and children keep
// input order. Bad records are counted in the returned stats instead of
// failing the build.
func Build(records []models.FileRecord) (*models.Forest, BuildStats) {
	stats := BuildStats{Records: len(records)}

	byID := make(map[string]*models.Node, len(records))
	order := make([]*models.Node, 0, len(records))
	parentIDs := make([]string, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			stats.Malformed++
			continue
		}
		if _, dup := byID[r.ID]; dup {
			stats.Duplicates++
			stats.DupIDs = append(stats.DupIDs, r.ID)
			continue
		}
		node := &models.Node{ID: r.ID, Name: r.Name}
		byID[r.ID] = node
		order = append(order, node)
		parentIDs = append(parentIDs, r.ParentID())
	}

	// parentOf tracks attachments made so far; used to refuse links that
	// would make a node its own ancestor.
	parentOf := make(map[string]string, len(order))
	hasParent := make(map[string]bool, len(order))
	for i, node := range order {
		pid := parentIDs[i]
		if pid == "" {
			continue
		}
		parent, ok := byID[pid]
		if !ok {
			stats.Dangling++
			continue
		}
		if isAncestor(parentOf, node.ID, pid) {
			stats.Cycles++
			continue
		}
		parent.Children = append(parent.Children, node)
		parentOf[node.ID] = pid
		hasParent[node.ID] = true
	}

	forest := &models.Forest{}
	for _, node := range order {
		if !hasParent[node.ID] {
			forest.Roots = append(forest.Roots, node)
		}
	}
	stats.Placed = len(order)
	return forest, stats
}

// isAncestor reports whether id appears on the chain from start up to its
// root (start included).
func isAncestor(parentOf map[string]string, id, start string) bool {
	for cur := start; cur != ""; cur = parentOf[cur] {
		if cur == id {
			return true
		}
	}
	return false
}

// ResolvePath returns the slash-joined names from a root down to the node
// with the given id, or "" if no such node exists. Ids are assumed unique;
// the first match in forest order wins.
func ResolvePath(f *models.Forest, id string) string {
	if f == nil {
		return ""
	}
	for _, root := range f.Roots {
		if trail, ok := search(root, id); ok {
			names := make([]string, len(trail))
			for i := range trail {
				names[i] = trail[len(trail)-1-i]
			}
			return strings.Join(names, "/")
		}
	}
	return ""
}

// search returns the names from the match up to node (leaf first).
func search(node *models.Node, id string) ([]string, bool) {
	if node.ID == id {
		return []string{node.Name}, true
	}
	for _, child := range node.Children {
		if trail, ok := search(child, id); ok {
			return append(trail, node.Name), true
		}
	}
	return nil, false
}

// Index walks the forest in pre-order and returns one entry per node.
func Index(f *models.Forest) []models.IndexEntry {
	if f == nil {
		return nil
	}
	var entries []models.IndexEntry
	for _, root := range f.Roots {
		entries = indexRecursive(root, "", entries)
	}
	return entries
}

func indexRecursive(node *models.Node, parentPath string, entries []models.IndexEntry) []models.IndexEntry {
	path := BuildChildPath(parentPath, node.Name)
	entries = append(entries, models.IndexEntry{ID: node.ID, Path: path, Name: node.Name})
	for _, child := range node.Children {
		entries = indexRecursive(child, path, entries)
	}
	return entries
}

// CountNodes counts all nodes in a forest.
func CountNodes(f *models.Forest) int {
	if f == nil {
		return 0
	}
	count := 0
	for _, root := range f.Roots {
		count += countNodes(root)
	}
	return count
}

func countNodes(node *models.Node) int {
	count := 1
	for _, child := range node.Children {
		count += countNodes(child)
	}
	return count
}

// BuildChildPath constructs a child path from parent + name.
func BuildChildPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}

// Segments splits a path on "/".
func Segments(path string) []string {
	return strings.Split(path, "/")
}

// BaseName returns the last segment of a path.
func BaseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
