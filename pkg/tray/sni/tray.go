// Package sni shows the icon as a StatusNotifierItem on the session bus.
package sni

import (
	"bytes"
	"codeberg.org/miketth/xkbtray/pkg/xkbtray"
	"context"
	"errors"
	"fmt"
	"fyne.io/systray"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
	"image/png"
	"sync"
)

const (
	backendName = "sni"
	watcherName = "org.kde.StatusNotifierWatcher"
)

var (
	ErrNotRegistered = errors.New("tray not registered")
	errNoWatcher     = fmt.Errorf("no %s on the session bus", watcherName)
)

type Tray struct {
	title string
	log   *zap.SugaredLogger

	// hasWatcher reports whether a StatusNotifierWatcher is on the bus
	hasWatcher func(ctx context.Context) (bool, error)

	mu  sync.Mutex
	end func()
}

func New(title string, log *zap.SugaredLogger) *Tray {
	return &Tray{
		title:      title,
		log:        log,
		hasWatcher: watcherRegistered,
	}
}

func watcherRegistered(ctx context.Context) (bool, error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()

	var has bool
	err = conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, watcherName).Store(&has)
	if err != nil {
		return false, fmt.Errorf("query %s: %w", watcherName, err)
	}

	return has, nil
}

func (t *Tray) Register(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.end != nil {
		return errors.New("tray already registered")
	}

	present, err := t.hasWatcher(ctx)
	if err != nil {
		return &xkbtray.TrayUnavailableError{Backend: backendName, Err: err}
	}
	if !present {
		return &xkbtray.TrayUnavailableError{Backend: backendName, Err: errNoWatcher}
	}

	start, end := systray.RunWithExternalLoop(func() {
		systray.SetTitle(t.title)
	}, nil)
	start()
	t.end = end

	t.log.Debugw("registered status notifier item", "title", t.title)
	return nil
}

func (t *Tray) SetImage(bitmap *xkbtray.Bitmap) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.end == nil {
		return ErrNotRegistered
	}

	icon, err := EncodePNG(bitmap)
	if err != nil {
		return err
	}

	// the item keeps its own copy of the bytes, so the old icon is gone
	// once this returns
	systray.SetIcon(icon)
	systray.SetTitle(bitmap.Label)
	systray.SetTooltip(bitmap.Label)

	return nil
}

func EncodePNG(bitmap *xkbtray.Bitmap) ([]byte, error) {
	if bitmap == nil || bitmap.Image == nil {
		return nil, errors.New("empty bitmap")
	}

	var buf bytes.Buffer
	err := png.Encode(&buf, bitmap.Image)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	return buf.Bytes(), nil
}

func (t *Tray) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.end == nil {
		return nil
	}

	t.end()
	t.end = nil
	return nil
}
