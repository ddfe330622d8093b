// Drive Tracker
//
// Watches a shared folder hierarchy and posts a report of added, removed,
// renamed and workflow-state-changed files to a chat webhook.
package main

import "github.com/fruitsalade/drivetracker/internal/cli"

func main() {
	cli.Execute()
}
