// Package journal keeps an append-only record of tracker activity.
package journal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/drivetracker/internal/logging"
)

// Levels.
const (
	LevelInfo  = "INFO"
	LevelError = "ERROR"
)

// Entry kinds besides the report labels.
const (
	KindInfo  = "info"
	KindError = "error"
)

// Entry is one journal line.
type Entry struct {
	Time    time.Time
	CycleID string
	Level   string
	Kind    string
	OldPath string
	NewPath string
	Message string
}

// Journal stores entries.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// Info builds an informational entry.
func Info(cycleID, msg string) Entry {
	return Entry{Time: time.Now(), CycleID: cycleID, Level: LevelInfo, Kind: KindInfo, Message: msg}
}

// Error builds an error entry.
func Error(cycleID, msg string) Entry {
	return Entry{Time: time.Now(), CycleID: cycleID, Level: LevelError, Kind: KindError, Message: msg}
}

// Log writes entries to the structured log.
type Log struct{}

// Record implements Journal.
func (Log) Record(ctx context.Context, e Entry) error {
	fields := []zap.Field{zap.String("kind", e.Kind)}
	if e.OldPath != "" {
		fields = append(fields, zap.String("old_path", e.OldPath))
	}
	if e.NewPath != "" {
		fields = append(fields, zap.String("new_path", e.NewPath))
	}
	log := logging.WithContext(ctx)
	if e.Level == LevelError {
		log.Error(e.Message, fields...)
	} else {
		log.Info(e.Message, fields...)
	}
	return nil
}

// Close implements Journal.
func (Log) Close() error { return nil }

// Multi writes every entry to all journals and joins their errors.
type Multi []Journal

// Record implements Journal.
func (m Multi) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, j := range m {
		if err := j.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Journal.
func (m Multi) Close() error {
	var errs []error
	for _, j := range m {
		if err := j.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
