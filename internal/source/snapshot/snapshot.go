// Package snapshot reads listings saved as JSON files.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"

	"github.com/fruitsalade/drivetracker/internal/source"
	"github.com/fruitsalade/drivetracker/pkg/models"
	"github.com/fruitsalade/drivetracker/pkg/retry"
)

// Lister re-reads a listing file on every call.
type Lister struct {
	fs   afero.Fs
	path string
}

// New creates a Lister for path.
func New(fs afero.Fs, path string) *Lister {
	return &Lister{fs: fs, path: path}
}

// Name implements source.Lister.
func (l *Lister) Name() string {
	return "snapshot"
}

// List implements source.Lister. A missing or half-written file is
// reported as a retryable fetch failure.
func (l *Lister) List(ctx context.Context) ([]models.FileRecord, error) {
	records, err := Read(l.fs, l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrFetch, retry.Retryable(err))
	}
	return records, nil
}

// Read loads a listing file. Both the files.list response shape
// ({"files": [...]}) and a bare array of records are accepted.
func Read(fs afero.Fs, path string) ([]models.FileRecord, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var records []models.FileRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
		}
		return records, nil
	}
	var listing models.Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return listing.Files, nil
}

// Write stores records in the files.list shape.
func Write(fs afero.Fs, path string, records []models.FileRecord) error {
	data, err := json.MarshalIndent(models.Listing{Files: records}, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0644)
}
