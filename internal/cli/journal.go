package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/drivetracker/internal/config"
	"github.com/fruitsalade/drivetracker/internal/journal"
)

var journalLimit int

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recent journal entries",
	Long: `Print the newest entries of the PostgreSQL journal kept by "run" when
DATABASE_URL is set, newest first.`,
	Args: cobra.NoArgs,
	RunE: runJournal,
}

func init() {
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of entries to show")
}

func runJournal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(appFs, configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set; without it the journal only goes to the log")
	}
	if journalLimit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", journalLimit)
	}

	pg, err := journal.OpenPostgres(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("journal database: %w", err)
	}
	defer pg.Close()

	entries, err := pg.Recent(cmd.Context(), journalLimit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintln(cmd.OutOrStdout(), formatEntry(e))
	}
	return nil
}

// formatEntry renders one entry as a single line.
func formatEntry(e journal.Entry) string {
	parts := []string{e.Time.UTC().Format(time.RFC3339), e.Level, e.Kind}
	switch {
	case e.OldPath != "" && e.NewPath != "":
		parts = append(parts, e.OldPath+" -> "+e.NewPath)
	case e.OldPath != "":
		parts = append(parts, e.OldPath)
	case e.NewPath != "":
		parts = append(parts, e.NewPath)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, " ")
}
