package xkbtray

import (
	"context"
	"errors"
	"fmt"
	"go.uber.org/zap"
)

var ErrNoTray = errors.New("no tray installed")

// Updater owns the tray handle and the bitmap currently shown in it.
type Updater struct {
	tray Tray
	live *Bitmap
	log  *zap.SugaredLogger
}

func NewUpdater(log *zap.SugaredLogger) *Updater {
	return &Updater{log: log}
}

// Install registers the icon with the tray host. It may be called once.
func (u *Updater) Install(ctx context.Context, tray Tray) error {
	if u.tray != nil {
		return errors.New("tray already installed")
	}

	if err := tray.Register(ctx); err != nil {
		var unavailable *TrayUnavailableError
		if errors.As(err, &unavailable) {
			return err
		}
		return fmt.Errorf("register tray: %w", err)
	}

	u.tray = tray
	return nil
}

// Update shows bitmap in the tray. A bitmap equal to the one already shown
// does not reach the tray at all.
func (u *Updater) Update(bitmap *Bitmap) error {
	if u.tray == nil {
		return ErrNoTray
	}
	if bitmap == nil {
		return errors.New("nil bitmap")
	}

	if bitmap.Equal(u.live) {
		u.log.Debugw("icon unchanged, skipping tray update", "label", bitmap.Label)
		return nil
	}

	if err := u.tray.SetImage(bitmap); err != nil {
		return fmt.Errorf("set tray image: %w", err)
	}

	u.live = bitmap
	return nil
}

// Live returns the bitmap currently shown, or nil.
func (u *Updater) Live() *Bitmap {
	return u.live
}

func (u *Updater) Close() error {
	u.live = nil
	if u.tray == nil {
		return nil
	}

	tray := u.tray
	u.tray = nil
	if err := tray.Close(); err != nil {
		return fmt.Errorf("close tray: %w", err)
	}
	return nil
}
