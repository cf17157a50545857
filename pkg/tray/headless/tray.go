// Package headless is a tray that shows nothing and logs every icon change.
package headless

import (
	"codeberg.org/miketth/xkbtray/pkg/xkbtray"
	"context"
	"errors"
	"go.uber.org/zap"
	"sync"
)

var ErrClosed = errors.New("tray closed")

type Tray struct {
	log *zap.SugaredLogger

	mu     sync.Mutex
	label  string
	closed bool
}

func New(log *zap.SugaredLogger) *Tray {
	return &Tray{log: log}
}

func (t *Tray) Register(_ context.Context) error {
	t.log.Info("no tray icon, layout changes are only logged")
	return nil
}

func (t *Tray) SetImage(bitmap *xkbtray.Bitmap) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	t.label = bitmap.Label
	t.log.Infow("layout", "label", bitmap.Label)
	return nil
}

// Label returns the label of the last image set.
func (t *Tray) Label() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.label
}

func (t *Tray) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
