package json

import (
	"codeberg.org/miketth/xkbtray/pkg/xkbtray"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	DefaultMaxEntries = 1000
	saveInterval      = time.Minute
)

type record struct {
	At    time.Time `json:"at"`
	Index int       `json:"index"`
	Label string    `json:"label"`
}

// SwitchStore keeps the history in memory and writes it to a JSON file
// from SaveLooper. Only the newest maxEntries switches are kept.
type SwitchStore struct {
	records    []record
	maxEntries int
	file       *os.File
	lock       sync.Mutex
	dirty      bool
}

func NewSwitchStore(filename string, maxEntries int) (*SwitchStore, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	info, err := os.Stat(filename)
	fileExists := err == nil && info.Size() > 0

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	store := &SwitchStore{
		maxEntries: maxEntries,
		file:       file,
		dirty:      true,
	}

	if fileExists {
		err = store.load()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("load: %w", err)
		}

		store.dirty = false
	}

	return store, nil
}

func (s *SwitchStore) load() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	_, err := s.file.Seek(0, 0)
	if err != nil {
		return fmt.Errorf("seek to start of file: %w", err)
	}

	err = json.NewDecoder(s.file).Decode(&s.records)
	if err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	s.trim()
	return nil
}

func (s *SwitchStore) Save() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.dirty {
		return nil
	}

	_, err := s.file.Seek(0, 0)
	if err != nil {
		return fmt.Errorf("seek to start of file: %w", err)
	}

	err = s.file.Truncate(0)
	if err != nil {
		return fmt.Errorf("truncate file: %w", err)
	}

	records := s.records
	if records == nil {
		records = []record{}
	}
	err = json.NewEncoder(s.file).Encode(records)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	s.dirty = false

	return nil
}

// SaveLooper flushes the history every minute and once more on shutdown,
// then closes the file.
func (s *SwitchStore) SaveLooper(ctx context.Context) error {
	defer s.file.Close()

	for {
		select {
		case <-ctx.Done():
			err := s.Save()
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}

			return ctx.Err()
		case <-time.After(saveInterval):
			err := s.Save()
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}
		}
	}
}

// Close saves and closes the file; only for stores not run by SaveLooper.
func (s *SwitchStore) Close() error {
	err := s.Save()
	if err != nil {
		s.file.Close()
		return fmt.Errorf("save: %w", err)
	}
	return s.file.Close()
}

func (s *SwitchStore) RecordSwitch(_ context.Context, sw xkbtray.Switch) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.records = append(s.records, record{At: sw.At, Index: sw.Index, Label: sw.Label})
	s.trim()
	s.dirty = true
	return nil
}

func (s *SwitchStore) RecentSwitches(_ context.Context, limit int) ([]xkbtray.Switch, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	out := make([]xkbtray.Switch, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.records[i]
		out = append(out, xkbtray.Switch{At: r.At, Index: r.Index, Label: r.Label})
	}
	return out, nil
}

func (s *SwitchStore) trim() {
	if extra := len(s.records) - s.maxEntries; extra > 0 {
		s.records = append([]record(nil), s.records[extra:]...)
	}
}
