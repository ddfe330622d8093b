// Package workflow maps folder paths onto publishing workflow states.
package workflow

import (
	"strings"

	"github.com/fruitsalade/drivetracker/pkg/tree"
)

// State is the workflow position implied by a path.
type State string

const (
	Draft         State = "Draft"
	FeedbackQueue State = "Feedback Queue"
	Archive       State = "Archive"
	Published     State = "Published"
	Unsorted      State = "Unsorted"
)

// keywords in match precedence. Matching is a case-sensitive substring test
// over the whole path, so "Archive" also matches a file named "Archived".
var keywords = []State{Draft, FeedbackQueue, Archive, Published}

// Classify returns the first state whose keyword occurs in path.
func Classify(path string) State {
	for _, s := range keywords {
		if strings.Contains(path, string(s)) {
			return s
		}
	}
	return Unsorted
}

// Classification describes a move between two paths.
type Classification struct {
	From State
	To   State
	// Subject is the file name the move is about.
	Subject string
}

// Transition reports whether the move changed workflow state.
func (c Classification) Transition() bool {
	return c.From != c.To
}

// ClassifyMove classifies both sides of a move.
func ClassifyMove(oldPath, newPath string) Classification {
	return Classification{
		From:    Classify(oldPath),
		To:      Classify(newPath),
		Subject: tree.BaseName(oldPath),
	}
}
