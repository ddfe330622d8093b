package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordChanges(t *testing.T) {
	before := testutil.ToFloat64(changesTotal.WithLabelValues("added"))
	RecordChanges("added", 0)
	RecordChanges("added", 2)
	if got := testutil.ToFloat64(changesTotal.WithLabelValues("added")) - before; got != 2 {
		t.Errorf("added delta = %v, want 2", got)
	}
}

func TestRecordBadRecords_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(badRecordsTotal.WithLabelValues("dangling"))
	RecordBadRecords("dangling", 0)
	RecordBadRecords("dangling", 3)
	if got := testutil.ToFloat64(badRecordsTotal.WithLabelValues("dangling")) - before; got != 3 {
		t.Errorf("dangling delta = %v, want 3", got)
	}
}

func TestRecordFetch(t *testing.T) {
	before := testutil.ToFloat64(fetchFailuresTotal.WithLabelValues("drive"))
	RecordFetch("drive", time.Millisecond, true)
	RecordFetch("drive", time.Millisecond, false)
	if got := testutil.ToFloat64(fetchFailuresTotal.WithLabelValues("drive")) - before; got != 1 {
		t.Errorf("failure delta = %v, want 1", got)
	}
}

func TestSetTreeSize(t *testing.T) {
	SetTreeSize(42)
	if got := testutil.ToFloat64(treeSize); got != 42 {
		t.Errorf("tree size = %v, want 42", got)
	}
}

func TestRecordJournalWrite(t *testing.T) {
	before := testutil.ToFloat64(journalWritesTotal.WithLabelValues("error"))
	RecordJournalWrite(true)
	RecordJournalWrite(false)
	if got := testutil.ToFloat64(journalWritesTotal.WithLabelValues("error")) - before; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}
