package stablekv

import (
	"testing"

	"github.com/sirupsen/logrus"

	"orbit-station/internal/ids"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestStoreInsertGetRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := Open[string, int](dir, "demo", testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, _, err := s.Insert("a", 1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if v, ok := s.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	if _, existed, _ := s.Remove("a"); !existed {
		t.Fatal("expected removal to report existing entry")
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("expected a to be gone after remove")
	}
}

func TestStoreReplaysWAL(t *testing.T) {
	dir := t.TempDir()
	s, err := Open[string, string](dir, "demo", testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := s.Insert("k1", "v1"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, _, err := s.Insert("k2", "v2"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, _, err := s.Remove("k1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open[string, string](dir, "demo", testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, ok := reopened.Get("k1"); ok {
		t.Fatal("k1 should have been deleted before close")
	}
	if v, ok := reopened.Get("k2"); !ok || v != "v2" {
		t.Fatalf("expected k2=v2 after replay, got %v %v", v, ok)
	}
}

func TestStoreSnapshotBoundsReplay(t *testing.T) {
	dir := t.TempDir()
	s, err := Open[string, int](dir, "demo", testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, _, err := s.Insert("k", i); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := s.Snapshot(); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open[string, int](dir, "demo", testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if v, ok := reopened.Get("k"); !ok || v != 4 {
		t.Fatalf("expected k=4 after snapshot replay, got %v %v", v, ok)
	}
}

func TestUniqueIndexRejectsConflict(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenUniqueIndex[string](dir, "byname", testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.store.Close()

	a, b := ids.New(), ids.New()
	if err := idx.Insert("alice", a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Insert("alice", b); err == nil {
		t.Fatal("expected conflict error inserting a second id under the same key")
	}
	if got, ok := idx.Lookup("alice"); !ok || got != a {
		t.Fatalf("expected alice -> %v, got %v %v", a, got, ok)
	}
}

func TestRangeIndexScanUpTo(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenRangeIndex[int64](dir, "byts", testLogger(),
		func(k int64) string { return zeroPad(k) },
		func(a, b int64) bool { return a < b })
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ids3 := []ids.ID{ids.New(), ids.New(), ids.New()}
	for i, ts := range []int64{10, 20, 30} {
		if err := idx.Insert(ts, ids3[i]); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	due := idx.ScanUpTo(20)
	if len(due) != 2 {
		t.Fatalf("expected 2 due entries, got %d", len(due))
	}
	if due[0].Key != 10 || due[1].Key != 20 {
		t.Fatalf("expected ascending order 10,20; got %v", due)
	}
}

func zeroPad(k int64) string {
	const width = 20
	s := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		s[i] = byte('0' + k%10)
		k /= 10
	}
	return string(s)
}
