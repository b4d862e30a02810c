// Package state persists the de-duplication record: the id of the last
// broadcast a notification went out for. The record is a small JSON object in
// a flat file; a missing or unreadable file is treated as an empty state so the
// poller can always start.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const lastNotifiedKey = "last_notified_video_id"

var rename = os.Rename

// State is the durable notification record.
type State struct {
	// LastNotifiedID is empty when nothing has been announced yet.
	LastNotifiedID string

	// extra keeps keys this version does not understand so Save writes them back.
	extra map[string]json.RawMessage
}

// Store reads and writes State at a fixed path.
type Store struct {
	path string
}

// NewStore returns a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the backing file. It never fails: a missing file, invalid JSON or
// an I/O error yields an empty State.
func (s *Store) Load() State {
	logger := slog.Default().With(slog.String("component", "state"), slog.String("path", s.path))
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("no state file; starting empty")
		} else {
			logger.Warn("could not read state file", slog.Any("err", err))
		}
		return State{}
	}
	st, err := decode(b)
	if err != nil {
		logger.Warn("could not parse state file", slog.Any("err", err))
		return State{}
	}
	return st
}

func decode(b []byte) (State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return State{}, err
	}
	if raw == nil {
		return State{}, errors.New("state file is not a JSON object")
	}
	var st State
	if v, ok := raw[lastNotifiedKey]; ok {
		delete(raw, lastNotifiedKey)
		// null is accepted as "absent"
		var id *string
		if err := json.Unmarshal(v, &id); err != nil {
			return State{}, fmt.Errorf("%s: %w", lastNotifiedKey, err)
		}
		if id != nil {
			st.LastNotifiedID = *id
		}
	}
	if len(raw) > 0 {
		st.extra = raw
	}
	return st, nil
}

// Save overwrites the backing file with st. The write goes to a temporary file
// that is renamed into place, so a crash never leaves a half-written record.
// When the rename is refused (a file bind-mounted into a container gives EBUSY
// or EXDEV) the record is written in place instead. Failures are logged and
// returned; the caller's in-memory state is untouched.
func (s *Store) Save(st State) error {
	if err := s.write(st); err != nil {
		slog.Warn("failed to save state file", slog.String("component", "state"), slog.String("path", s.path), slog.Any("err", err))
		return err
	}
	return nil
}

func (s *Store) write(st State) error {
	out := make(map[string]any, len(st.extra)+1)
	for k, v := range st.extra {
		out[k] = v
	}
	if st.LastNotifiedID != "" {
		out[lastNotifiedKey] = st.LastNotifiedID
	}
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		if werr := os.WriteFile(s.path, b, 0o644); werr != nil {
			return fmt.Errorf("rename state file: %w; write in place: %w", err, werr)
		}
		slog.Debug("state file replaced in place", slog.String("component", "state"), slog.String("path", s.path), slog.Any("rename_err", err))
	}
	return nil
}
