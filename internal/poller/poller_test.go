package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/drivetracker/internal/journal"
	"github.com/fruitsalade/drivetracker/internal/notify"
	"github.com/fruitsalade/drivetracker/internal/source"
	"github.com/fruitsalade/drivetracker/pkg/models"
	"github.com/fruitsalade/drivetracker/pkg/report"
)

// scriptedLister returns listings in order; the last one repeats. A nil
// listing means "fail this call".
type scriptedLister struct {
	mu       sync.Mutex
	listings [][]models.FileRecord
	calls    int
}

func (s *scriptedLister) List(ctx context.Context) ([]models.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.listings) {
		idx = len(s.listings) - 1
	}
	s.calls++
	if s.listings[idx] == nil {
		return nil, errors.New("remote unavailable")
	}
	return s.listings[idx], nil
}

func (s *scriptedLister) Name() string { return "scripted" }

type recordingSink struct {
	mu     sync.Mutex
	embeds []notify.Message
	texts  []string
	notify chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 16)}
}

func (r *recordingSink) SendEmbed(ctx context.Context, msg notify.Message) error {
	r.mu.Lock()
	r.embeds = append(r.embeds, msg)
	r.mu.Unlock()
	r.notify <- struct{}{}
	return nil
}

func (r *recordingSink) SendText(ctx context.Context, text string) error {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()
	return nil
}

type memJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (m *memJournal) Record(ctx context.Context, e journal.Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *memJournal) Close() error { return nil }

func (m *memJournal) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Message)
	}
	return out
}

func rec(id, name string, parents ...string) models.FileRecord {
	return models.FileRecord{ID: id, Name: name, Parents: parents}
}

func base() []models.FileRecord {
	return []models.FileRecord{
		rec("root", "Root"),
		rec("draft", "Draft", "root"),
		rec("archive", "Archive", "root"),
		rec("p1", "post.md", "draft"),
	}
}

func testConfig() Config {
	return Config{Interval: time.Millisecond, RetryDelay: time.Millisecond, Report: report.DefaultOptions()}
}

func TestCycle_NoChanges(t *testing.T) {
	lister := &scriptedLister{listings: [][]models.FileRecord{base()}}
	sink := newRecordingSink()
	j := &memJournal{}
	p := New(lister, notify.NewDispatcher(sink), j, testConfig())

	require.NoError(t, p.Init(context.Background()))
	require.NoError(t, p.Cycle(context.Background()))

	assert.Empty(t, sink.embeds, "no notification expected without changes")
	assert.Contains(t, j.messages(), "No changes detected")
}

func TestCycle_ReportsStateChange(t *testing.T) {
	moved := base()
	moved[3] = rec("p1", "post.md", "archive")
	moved = append(moved, rec("p2", "new.md", "draft"))

	lister := &scriptedLister{listings: [][]models.FileRecord{base(), moved}}
	sink := newRecordingSink()
	j := &memJournal{}
	p := New(lister, notify.NewDispatcher(sink), j, testConfig())

	require.NoError(t, p.Init(context.Background()))
	require.NoError(t, p.Cycle(context.Background()))

	require.Len(t, sink.embeds, 1)
	body := sink.embeds[0].Body
	assert.Equal(t, "**Added**\nDraft/new.md\n\n**State Changed**\n「 post.md 」\nFrom: Draft\nTo: Archive\n\n", body)
	assert.Equal(t, notify.DefaultTitle, sink.embeds[0].Title)

	msgs := j.messages()
	assert.Contains(t, msgs, "State changed: Draft -> Archive")
	assert.Contains(t, msgs, "New file added")

	// The new listing is now the baseline; a repeat reports nothing.
	assert.Len(t, p.Baseline(), 5)
	require.NoError(t, p.Cycle(context.Background()))
	assert.Len(t, sink.embeds, 1)
}

func TestCycle_RetriesFetch(t *testing.T) {
	lister := &scriptedLister{listings: [][]models.FileRecord{base(), nil, nil, base()}}
	j := &memJournal{}
	p := New(lister, notify.NewDispatcher(newRecordingSink()), j, testConfig())

	require.NoError(t, p.Init(context.Background()))
	require.NoError(t, p.Cycle(context.Background()))

	assert.Equal(t, 4, lister.calls)
	failures := 0
	for _, m := range j.messages() {
		if strings.HasPrefix(m, "Failed to pull file list") {
			failures++
		}
	}
	assert.Equal(t, 2, failures)
}

func TestCycle_FetchRetryStopsOnShutdown(t *testing.T) {
	lister := &scriptedLister{listings: [][]models.FileRecord{nil}}
	p := New(lister, notify.NewDispatcher(newRecordingSink()), nil, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Init(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, lister.calls, 1)
}

func TestCycle_BadRecordsDoNotFail(t *testing.T) {
	bad := append(base(), rec("", "no id"), rec("x", "orphan", "missing"))
	lister := &scriptedLister{listings: [][]models.FileRecord{base(), bad}}
	sink := newRecordingSink()
	p := New(lister, notify.NewDispatcher(sink), nil, testConfig())

	require.NoError(t, p.Init(context.Background()))
	require.NoError(t, p.Cycle(context.Background()))

	require.Len(t, sink.embeds, 1)
	assert.Equal(t, "**Added**\norphan\n\n", sink.embeds[0].Body)
	assert.Len(t, p.Baseline(), 5)
}

func TestRun_SurvivesCycleFailure(t *testing.T) {
	calls := 0
	lister := source.ListerFunc(func(ctx context.Context) ([]models.FileRecord, error) {
		calls++
		if calls == 2 {
			panic("boom")
		}
		return base(), nil
	})
	sink := newRecordingSink()
	j := &memJournal{}
	p := New(lister, notify.NewDispatcher(sink), j, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		for _, m := range j.messages() {
			if strings.HasPrefix(m, "Error in main loop: panic in cycle: boom") {
				return true
			}
		}
		return false
	}, 2*time.Second, time.Millisecond)

	// Later cycles still run.
	require.Eventually(t, func() bool {
		for _, m := range j.messages() {
			if m == "No changes detected" {
				return true
			}
		}
		return false
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.NotEmpty(t, sink.texts)
	assert.True(t, strings.HasPrefix(sink.texts[0], "Warning: Error in main loop"))
}

func TestRun_NotifiesChanges(t *testing.T) {
	renamed := base()
	renamed[3] = rec("p1", "final.md", "draft")
	lister := &scriptedLister{listings: [][]models.FileRecord{base(), renamed}}
	sink := newRecordingSink()
	p := New(lister, notify.NewDispatcher(sink), nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case <-sink.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
	cancel()
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "**Renamed**\nDraft/post.md -> Draft/final.md\n\n", sink.embeds[0].Body)
}

// counterValue reads a counter from the default registry.
func counterValue(t *testing.T, name, label, value string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCycle_RecordsJournalWritesWithoutMulti(t *testing.T) {
	lister := &scriptedLister{listings: [][]models.FileRecord{base()}}
	p := New(lister, notify.NewDispatcher(newRecordingSink()), journal.Log{}, testConfig())

	before := counterValue(t, "drivetracker_journal_writes_total", "status", "success")
	require.NoError(t, p.Init(context.Background()))
	require.NoError(t, p.Cycle(context.Background()))

	// "Initial index created" and "No changes detected".
	assert.Equal(t, before+2, counterValue(t, "drivetracker_journal_writes_total", "status", "success"))
}

func TestCycle_CountsChangesByKind(t *testing.T) {
	next := base()[:3]
	next = append(next, rec("p2", "a.md", "draft"), rec("p3", "b.md", "draft"))
	lister := &scriptedLister{listings: [][]models.FileRecord{base(), next}}
	p := New(lister, notify.NewDispatcher(newRecordingSink()), nil, testConfig())

	added := counterValue(t, "drivetracker_changes_total", "kind", "added")
	removed := counterValue(t, "drivetracker_changes_total", "kind", "removed")
	require.NoError(t, p.Init(context.Background()))
	require.NoError(t, p.Cycle(context.Background()))

	assert.Equal(t, added+2, counterValue(t, "drivetracker_changes_total", "kind", "added"))
	assert.Equal(t, removed+1, counterValue(t, "drivetracker_changes_total", "kind", "removed"))
}
