// Package models contains the data types shared by the tracker packages.
package models

// FileRecord is one item of a remote listing. Only the first parent is used
// when placing the record in the tree.
type FileRecord struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Parents  []string `json:"parents,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
}

// ParentID returns the declared parent, or "" for a top-level record.
func (r FileRecord) ParentID() string {
	if len(r.Parents) == 0 {
		return ""
	}
	return r.Parents[0]
}

// Node represents a file or folder in the reconstructed tree.
type Node struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Children []*Node `json:"children,omitempty"`
}

// Forest holds the top-level nodes of a listing.
type Forest struct {
	Roots []*Node `json:"roots"`
}

// IndexEntry is a flattened snapshot of one node.
type IndexEntry struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"`
}

// Listing is the JSON shape of a listing snapshot on disk and of the Drive
// files.list response.
type Listing struct {
	Files         []FileRecord `json:"files"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}
