// Package poller runs the fetch, diff and notify loop.
package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fruitsalade/drivetracker/internal/journal"
	"github.com/fruitsalade/drivetracker/internal/logging"
	"github.com/fruitsalade/drivetracker/internal/metrics"
	"github.com/fruitsalade/drivetracker/internal/notify"
	"github.com/fruitsalade/drivetracker/internal/source"
	"github.com/fruitsalade/drivetracker/pkg/diff"
	"github.com/fruitsalade/drivetracker/pkg/models"
	"github.com/fruitsalade/drivetracker/pkg/report"
	"github.com/fruitsalade/drivetracker/pkg/retry"
	"github.com/fruitsalade/drivetracker/pkg/tree"
)

// Config holds loop timing and report settings.
type Config struct {
	Interval   time.Duration
	RetryDelay time.Duration
	Report     report.Options
}

// Poller compares successive listings and reports the differences. Only
// the previous index is kept between cycles.
type Poller struct {
	lister     source.Lister
	dispatcher *notify.Dispatcher
	journal    journal.Journal
	cfg        Config

	previous []models.IndexEntry
	cycles   int
}

// New creates a Poller. A nil journal logs only.
func New(lister source.Lister, dispatcher *notify.Dispatcher, j journal.Journal, cfg Config) *Poller {
	if cfg.Interval == 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if j == nil {
		j = journal.Log{}
	}
	return &Poller{
		lister:     lister,
		dispatcher: dispatcher,
		journal:    j,
		cfg:        cfg,
	}
}

// Run builds the baseline index, then runs cycles every Interval until ctx
// is cancelled. It returns nil on shutdown; cycle failures never end it.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.Init(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			logging.Info("poller stopped", zap.Int("cycles", p.cycles))
			return nil
		case <-timer.C:
		}

		if err := p.safeCycle(ctx); err != nil && ctx.Err() == nil {
			logging.Error("error in main loop", zap.Error(err))
			p.record(ctx, journal.Error(logging.CycleID(ctx), "Error in main loop: "+err.Error()))
			p.dispatcher.Warn(ctx, "Error in main loop: "+err.Error())
		}
		timer.Reset(p.cfg.Interval)
	}
}

// Init fetches the first listing and stores its index as the baseline.
func (p *Poller) Init(ctx context.Context) error {
	index, err := p.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("initial index: %w", err)
	}
	p.previous = index
	logging.Info("initial index created", zap.Int("entries", len(index)))
	logging.Debug("initial index", zap.Any("index", index))
	p.record(ctx, journal.Info("", "Initial index created"))
	return nil
}

// Baseline returns the index the next cycle will diff against.
func (p *Poller) Baseline() []models.IndexEntry {
	return p.previous
}

func (p *Poller) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in cycle: %v\n%s", r, debug.Stack())
		}
	}()
	return p.Cycle(ctx)
}

// Cycle fetches a listing, reports its changes against the baseline and
// makes it the new baseline.
func (p *Poller) Cycle(ctx context.Context) error {
	start := time.Now()
	cycleID := uuid.NewString()
	ctx = logging.WithCycleID(ctx, cycleID)
	log := logging.WithContext(ctx)
	p.cycles++

	current, err := p.snapshot(ctx)
	if err != nil {
		metrics.RecordCycle("error", time.Since(start))
		return err
	}

	res := diff.Compute(p.previous, current)
	if len(res.DuplicateIDs) > 0 {
		log.Error("duplicate ids in index, changes for them are unreliable",
			zap.Strings("ids", res.DuplicateIDs))
		metrics.RecordBadRecords("duplicate_index", len(res.DuplicateIDs))
	}

	if res.Empty() {
		p.record(ctx, journal.Info(cycleID, "No changes detected"))
		p.previous = current
		metrics.RecordCycle("unchanged", time.Since(start))
		return nil
	}

	counts := res.Counts()
	for _, kind := range []diff.Kind{diff.Added, diff.Removed, diff.Moved} {
		metrics.RecordChanges(kind.String(), counts[kind])
	}

	items := report.Classify(res.Changes)
	for _, it := range items {
		p.record(ctx, changeEntry(cycleID, it))
	}
	text, _ := report.Render(items, p.cfg.Report)

	log.Info("sending notification",
		zap.Int("added", counts[diff.Added]),
		zap.Int("removed", counts[diff.Removed]),
		zap.Int("moved", counts[diff.Moved]))
	if err := p.dispatcher.Dispatch(ctx, notify.NewMessage(text)); err != nil {
		log.Error("notification failed", zap.Error(err))
	}

	p.previous = current
	metrics.RecordCycle("changed", time.Since(start))
	return nil
}

// snapshot fetches the listing, retrying every RetryDelay until it
// succeeds or ctx ends, and indexes it.
func (p *Poller) snapshot(ctx context.Context) ([]models.IndexEntry, error) {
	log := logging.WithContext(ctx)

	rc := retry.Fixed(p.cfg.RetryDelay)
	rc.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Error("failed to pull file list", zap.Error(err), zap.Int("attempt", attempt))
		log.Info("retrying", zap.Duration("in", wait))
		p.record(ctx, journal.Error(logging.CycleID(ctx), "Failed to pull file list: "+err.Error()))
	}

	records, err := retry.DoWithResult(ctx, rc, func() ([]models.FileRecord, error) {
		start := time.Now()
		recs, err := p.lister.List(ctx)
		metrics.RecordFetch(p.lister.Name(), time.Since(start), err == nil)
		if err != nil {
			if !errors.Is(err, source.ErrFetch) {
				err = fmt.Errorf("%w: %w", source.ErrFetch, err)
			}
			return nil, retry.Retryable(err)
		}
		return recs, nil
	})
	if err != nil {
		return nil, err
	}

	forest, stats := tree.Build(records)
	if !stats.Clean() {
		log.Warn("listing has records that could not be placed as declared",
			zap.Int("malformed", stats.Malformed),
			zap.Int("dangling", stats.Dangling),
			zap.Int("duplicates", stats.Duplicates),
			zap.Int("cycles", stats.Cycles))
	}
	if stats.Duplicates > 0 {
		log.Error("duplicate ids in listing", zap.Strings("ids", stats.DupIDs))
	}
	metrics.RecordBadRecords("malformed", stats.Malformed)
	metrics.RecordBadRecords("dangling", stats.Dangling)
	metrics.RecordBadRecords("duplicate", stats.Duplicates)
	metrics.RecordBadRecords("cycle", stats.Cycles)

	metrics.SetTreeSize(tree.CountNodes(forest))
	return tree.Index(forest), nil
}

func (p *Poller) record(ctx context.Context, e journal.Entry) {
	err := p.journal.Record(ctx, e)
	metrics.RecordJournalWrite(err == nil)
	if err != nil {
		logging.WithContext(ctx).Error("journal write failed", zap.Error(err))
	}
}

func changeEntry(cycleID string, it report.Item) journal.Entry {
	e := journal.Info(cycleID, "")
	e.OldPath = it.Change.OldPath
	e.NewPath = it.Change.NewPath
	switch it.Label() {
	case report.LabelAdded:
		e.Kind, e.Message = "added", "New file added"
	case report.LabelRemoved:
		e.Kind, e.Message = "removed", "File removed"
	case report.LabelStateChanged:
		e.Kind = "state_changed"
		e.Message = fmt.Sprintf("State changed: %s -> %s", it.Class.From, it.Class.To)
	default:
		e.Kind, e.Message = "renamed", "File moved"
	}
	return e
}
