// Package status reads the status file written by the external facial
// recognition process. The process rewrites the whole file on every
// detection pass; this package polls it with an mtime cache so unchanged
// files are never re-parsed and a mid-write file never tears the UI.
package status

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"facemirror/internal/logging"

	"go.uber.org/zap"
)

// Record is one status snapshot from the recognition process.
// User is null while sleeping, "Guest" for an unrecognized face, or a
// profile name. The trailing fields are debug info the writer may omit.
type Record struct {
	User             *string  `json:"user"`
	IsKnown          bool     `json:"isKnown"`
	Sleeping         bool     `json:"sleeping"`
	Timestamp        float64  `json:"timestamp"`
	TimeSinceFace    *float64 `json:"timeSinceFace,omitempty"`
	ProfileCount     *int     `json:"profileCount,omitempty"`
	ProfileNames     []string `json:"profileNames,omitempty"`
	SleepTimeoutSecs *int     `json:"sleepTimeoutSecs,omitempty"`
	CameraType       *string  `json:"cameraType,omitempty"`
}

// UserName returns the user field or "" when null.
func (r Record) UserName() string {
	if r.User == nil {
		return ""
	}
	return *r.User
}

// StripDebug returns a copy with the debug fields cleared. Used when the
// debug panel is disabled so clients only see display-relevant fields.
func (r Record) StripDebug() Record {
	r.TimeSinceFace = nil
	r.ProfileCount = nil
	r.ProfileNames = nil
	r.SleepTimeoutSecs = nil
	r.CameraType = nil
	return r
}

// Store owns the last-seen modification time and the cached last
// known-good record for one status file.
type Store struct {
	mu         sync.Mutex
	path       string
	lastMtime  time.Time
	lastRecord *Record
}

// NewStore creates a store for the status file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the status file path.
func (s *Store) Path() string {
	return s.path
}

// Seed writes a default awake guest record if the status file does not
// exist yet. An existing file is never touched; the external process owns
// its contents.
func (s *Store) Seed() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	rec := Record{Timestamp: float64(time.Now().Unix())}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0644)
}

// Poll returns the latest record and whether it changed since the last
// poll. Unchanged mtime returns the cached record without re-reading. Any
// read or parse failure returns the last known-good record so a transient
// hiccup from the external writer never disturbs the caller.
func (s *Store) Poll() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mtime, rec, changed := advance(s.path, s.lastMtime, s.lastRecord)
	s.lastMtime, s.lastRecord = mtime, rec

	if rec == nil {
		return Record{}, false
	}
	return *rec, changed
}

// Last returns the cached record without touching the file.
func (s *Store) Last() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRecord == nil {
		return Record{}, false
	}
	return *s.lastRecord, true
}

// advance is one poll step: (lastMtime, lastRecord) -> (mtime, record,
// changed). Pure with respect to timers so it can be tested directly.
func advance(path string, lastMtime time.Time, last *Record) (time.Time, *Record, bool) {
	info, err := os.Stat(path)
	if err != nil {
		// Absent at startup is expected; the external process may not
		// have written yet.
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Debug("status file stat failed", zap.String("path", path), zap.Error(err))
		}
		return lastMtime, last, false
	}

	if last != nil && info.ModTime().Equal(lastMtime) {
		return lastMtime, last, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logging.Debug("status file read failed", zap.String("path", path), zap.Error(err))
		return lastMtime, last, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// Likely caught the writer mid-write; keep the last good record.
		logging.Debug("status file parse failed", zap.String("path", path), zap.Error(err))
		return lastMtime, last, false
	}

	return info.ModTime(), &rec, true
}
