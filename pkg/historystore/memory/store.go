package memory

import (
	"codeberg.org/miketth/xkbtray/pkg/xkbtray"
	"context"
	"sync"
)

type SwitchStore struct {
	lock     sync.Mutex
	switches []xkbtray.Switch
}

func NewSwitchStore() *SwitchStore {
	return &SwitchStore{}
}

func (s *SwitchStore) RecordSwitch(_ context.Context, sw xkbtray.Switch) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.switches = append(s.switches, sw)
	return nil
}

// RecentSwitches returns up to limit switches, newest first. A limit of
// zero or less returns all of them.
func (s *SwitchStore) RecentSwitches(_ context.Context, limit int) ([]xkbtray.Switch, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return newestFirst(s.switches, limit), nil
}

func newestFirst(switches []xkbtray.Switch, limit int) []xkbtray.Switch {
	if limit <= 0 || limit > len(switches) {
		limit = len(switches)
	}

	out := make([]xkbtray.Switch, 0, limit)
	for i := len(switches) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, switches[i])
	}
	return out
}
