package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// bumpMtime pushes the file's mtime forward so a rewrite is always seen
// as a change even on filesystems with coarse timestamps.
func bumpMtime(t *testing.T, path string, d time.Duration) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	mt := info.ModTime().Add(d)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestSeed_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewStore(path)

	if err := s.Seed(); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read seeded file: %v", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("parse seeded file: %v", err)
	}
	if rec.User != nil {
		t.Errorf("expected null user, got %q", *rec.User)
	}
	if rec.IsKnown {
		t.Error("expected isKnown=false")
	}
	if rec.Sleeping {
		t.Error("expected sleeping=false")
	}
	if rec.Timestamp <= 0 {
		t.Errorf("expected positive timestamp, got %f", rec.Timestamp)
	}
}

func TestSeed_DoesNotOverwriteExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	writeFile(t, path, `{"user":"Tony","isKnown":true,"sleeping":false,"timestamp":1}`)

	s := NewStore(path)
	if err := s.Seed(); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	rec, changed := s.Poll()
	if !changed {
		t.Fatal("expected a changed record on first poll")
	}
	if rec.UserName() != "Tony" {
		t.Errorf("expected existing file untouched, got user %q", rec.UserName())
	}
}

func TestPoll_ReadsRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	writeFile(t, path, `{"user":"Tony","isKnown":true,"sleeping":false,"timestamp":1700000000.5}`)

	s := NewStore(path)
	rec, changed := s.Poll()
	if !changed {
		t.Fatal("expected changed=true on first poll")
	}
	if rec.UserName() != "Tony" || !rec.IsKnown || rec.Sleeping {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestPoll_UnchangedMtimeSkipsReparse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	writeFile(t, path, `{"user":"Tony","isKnown":true,"sleeping":false,"timestamp":1}`)

	s := NewStore(path)
	if _, changed := s.Poll(); !changed {
		t.Fatal("expected changed=true on first poll")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	mtime := info.ModTime()

	// Replace the contents with garbage but restore the mtime. If the
	// second poll re-parsed the file, it would fail; the cached record
	// proves the mtime check short-circuits the read.
	writeFile(t, path, `{garbage`)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	rec, changed := s.Poll()
	if changed {
		t.Error("expected changed=false for unchanged mtime")
	}
	if rec.UserName() != "Tony" {
		t.Errorf("expected cached record, got user %q", rec.UserName())
	}
}

func TestPoll_ParseFailureKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	writeFile(t, path, `{"user":"Tony","isKnown":true,"sleeping":false,"timestamp":1}`)

	s := NewStore(path)
	s.Poll()

	// Simulates catching the external writer mid-write.
	writeFile(t, path, `{"user":"To`)
	bumpMtime(t, path, 2*time.Second)

	rec, changed := s.Poll()
	if changed {
		t.Error("expected changed=false on parse failure")
	}
	if rec.UserName() != "Tony" {
		t.Errorf("expected last known-good record, got user %q", rec.UserName())
	}
}

func TestPoll_MissingFileKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	writeFile(t, path, `{"user":"Tony","isKnown":true,"sleeping":false,"timestamp":1}`)

	s := NewStore(path)
	s.Poll()

	os.Remove(path)

	rec, changed := s.Poll()
	if changed {
		t.Error("expected changed=false when file is missing")
	}
	if rec.UserName() != "Tony" {
		t.Errorf("expected last known-good record, got user %q", rec.UserName())
	}
}

func TestPoll_DetectsNewWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	writeFile(t, path, `{"user":"Tony","isKnown":true,"sleeping":false,"timestamp":1}`)

	s := NewStore(path)
	s.Poll()

	writeFile(t, path, `{"user":null,"isKnown":false,"sleeping":true,"timestamp":2}`)
	bumpMtime(t, path, 2*time.Second)

	rec, changed := s.Poll()
	if !changed {
		t.Fatal("expected changed=true after rewrite")
	}
	if !rec.Sleeping || rec.User != nil {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestPoll_NoFileNoRecord(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.json"))

	rec, changed := s.Poll()
	if changed {
		t.Error("expected changed=false with no file")
	}
	if rec.UserName() != "" {
		t.Errorf("expected zero record, got %+v", rec)
	}
	if _, ok := s.Last(); ok {
		t.Error("expected no cached record")
	}
}

func TestRecord_StripDebug(t *testing.T) {
	secs := 12.5
	count := 3
	rec := Record{
		Sleeping:      true,
		TimeSinceFace: &secs,
		ProfileCount:  &count,
		ProfileNames:  []string{"Tony"},
	}

	stripped := rec.StripDebug()
	if stripped.TimeSinceFace != nil || stripped.ProfileCount != nil || stripped.ProfileNames != nil {
		t.Errorf("expected debug fields cleared, got %+v", stripped)
	}
	if !stripped.Sleeping {
		t.Error("expected display fields preserved")
	}
	if rec.TimeSinceFace == nil {
		t.Error("expected original record untouched")
	}
}
