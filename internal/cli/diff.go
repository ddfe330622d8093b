package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/drivetracker/internal/source/snapshot"
	"github.com/fruitsalade/drivetracker/pkg/diff"
	"github.com/fruitsalade/drivetracker/pkg/models"
	"github.com/fruitsalade/drivetracker/pkg/report"
	"github.com/fruitsalade/drivetracker/pkg/tree"
)

var (
	diffDropSegments int
	diffMinDepth     int
)

var diffCmd = &cobra.Command{
	Use:   "diff <previous.json> <current.json>",
	Short: "Report changes between two listing snapshots",
	Long: `Compare two saved listings and print the report the tracker would have
sent for them. Each file holds either {"files": [...]} or a bare array of
{"id", "name", "parents"} records.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	defaults := report.DefaultOptions()
	diffCmd.Flags().IntVar(&diffDropSegments, "drop-segments", defaults.DropSegments, "leading path segments to hide")
	diffCmd.Flags().IntVar(&diffMinDepth, "min-depth", defaults.MinDepth, "only shorten paths deeper than this")
}

func runDiff(cmd *cobra.Command, args []string) error {
	previous, err := indexFile(cmd, args[0])
	if err != nil {
		return err
	}
	current, err := indexFile(cmd, args[1])
	if err != nil {
		return err
	}

	res := diff.Compute(previous, current)
	if len(res.DuplicateIDs) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: duplicate ids %v, their changes are unreliable\n", res.DuplicateIDs)
	}

	text, changed := report.Render(report.Classify(res.Changes), report.Options{
		DropSegments: diffDropSegments,
		MinDepth:     diffMinDepth,
	})
	if !changed {
		fmt.Fprintln(cmd.OutOrStdout(), "No changes detected")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}

// indexFile reads a listing and indexes it, warning about records that
// could not be placed as declared.
func indexFile(cmd *cobra.Command, path string) ([]models.IndexEntry, error) {
	records, err := snapshot.Read(appFs, path)
	if err != nil {
		return nil, err
	}
	forest, stats := tree.Build(records)
	if !stats.Clean() {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"warning: %s: %d malformed, %d dangling, %d duplicate, %d cyclic records\n",
			path, stats.Malformed, stats.Dangling, stats.Duplicates, stats.Cycles)
	}
	if stats.Duplicates > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: duplicate ids %v\n", path, stats.DupIDs)
	}
	return tree.Index(forest), nil
}
