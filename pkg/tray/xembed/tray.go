// Package xembed docks the icon into a freedesktop system tray using the
// XEMBED based System Tray Protocol.
package xembed

import (
	"codeberg.org/miketth/xkbtray/pkg/x11"
	"codeberg.org/miketth/xkbtray/pkg/xkbtray"
	"context"
	"errors"
	"fmt"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/xevent"
	"github.com/jezek/xgbutil/xgraphics"
	"github.com/jezek/xgbutil/xprop"
	"github.com/jezek/xgbutil/xwindow"
	"go.uber.org/zap"
	"sync"
	"time"
)

const (
	backendName = "xembed"

	requestDock  = 0
	xembedMapped = 1 << 0
)

var (
	ErrNotRegistered = errors.New("tray not registered")
	errNoManager     = errors.New("no system tray manager owns the selection")
)

type Options struct {
	Display      string
	// Timeout bounds the connection attempt, x11.DefaultTimeout when zero.
	Timeout      time.Duration
	Size         int
	DockRetries  int
	DockInterval time.Duration
	Log          *zap.SugaredLogger
}

// Tray keeps its own X connection; the icon window, its pixmap and the
// dock state all live on it.
type Tray struct {
	opts Options
	log  *zap.SugaredLogger

	xu        *xgbutil.XUtil
	win       *xwindow.Window
	selection xproto.Atom
	opcode    xproto.Atom
	manager   xproto.Atom

	mu     sync.Mutex
	img    *xgraphics.Image
	closed bool

	done chan struct{}
}

func New(opts Options) *Tray {
	if opts.Size <= 0 {
		opts.Size = 24
	}
	if opts.DockRetries <= 0 {
		opts.DockRetries = 10
	}
	if opts.DockInterval <= 0 {
		opts.DockInterval = 500 * time.Millisecond
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}

	return &Tray{
		opts: opts,
		log:  opts.Log,
	}
}

func SelectionName(screen int) string {
	return fmt.Sprintf("_NET_SYSTEM_TRAY_S%d", screen)
}

func (t *Tray) Register(ctx context.Context) error {
	if t.xu != nil {
		return errors.New("tray already registered")
	}

	xu, err := x11.Dial(ctx, t.opts.Display, t.opts.Timeout)
	if err != nil {
		return &xkbtray.TrayUnavailableError{Backend: backendName, Err: fmt.Errorf("connect: %w", err)}
	}

	err = t.setup(xu)
	if err != nil {
		t.abandon()
		return err
	}

	err = retry(ctx, t.opts.DockRetries, t.opts.DockInterval, func(attempt int) error {
		err := t.dock()
		if err != nil {
			t.log.Debugw("dock attempt failed", "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		t.abandon()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &xkbtray.TrayUnavailableError{Backend: backendName, Err: err}
	}

	t.win.Map()
	t.done = make(chan struct{})
	go t.readEvents()

	t.log.Debugw("docked into system tray", "window", t.win.Id)
	return nil
}

// abandon drops a half set up connection so Register can be tried again.
func (t *Tray) abandon() {
	t.xu.Conn().Close()
	t.xu = nil
	t.win = nil
}

func (t *Tray) setup(xu *xgbutil.XUtil) error {
	var err error

	t.xu = xu
	t.selection, err = xprop.Atm(xu, SelectionName(xu.Conn().DefaultScreen))
	if err != nil {
		return fmt.Errorf("intern tray selection: %w", err)
	}
	t.opcode, err = xprop.Atm(xu, "_NET_SYSTEM_TRAY_OPCODE")
	if err != nil {
		return fmt.Errorf("intern tray opcode: %w", err)
	}
	t.manager, err = xprop.Atm(xu, "MANAGER")
	if err != nil {
		return fmt.Errorf("intern MANAGER: %w", err)
	}

	t.win, err = xwindow.Generate(xu)
	if err != nil {
		return fmt.Errorf("generate window id: %w", err)
	}

	size := t.opts.Size
	err = t.win.CreateChecked(xu.RootWin(), 0, 0, size, size,
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		xu.Screen().WhitePixel, 1, xproto.EventMaskExposure|xproto.EventMaskStructureNotify)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}

	err = xprop.ChangeProp32(xu, t.win.Id, "_XEMBED_INFO", "_XEMBED_INFO", 0, xembedMapped)
	if err != nil {
		return fmt.Errorf("set _XEMBED_INFO: %w", err)
	}

	// a new tray manager announces itself on the root window
	err = xwindow.New(xu, xu.RootWin()).Listen(xproto.EventMaskStructureNotify)
	if err != nil {
		return fmt.Errorf("listen on root window: %w", err)
	}

	return nil
}

func (t *Tray) dock() error {
	owner, err := xproto.GetSelectionOwner(t.xu.Conn(), t.selection).Reply()
	if err != nil {
		return fmt.Errorf("get selection owner: %w", err)
	}
	if owner.Owner == xproto.WindowNone {
		return errNoManager
	}

	ev, err := DockMessage(owner.Owner, t.opcode, t.win.Id)
	if err != nil {
		return err
	}

	err = xproto.SendEventChecked(t.xu.Conn(), false, owner.Owner, xproto.EventMaskNoEvent, string(ev.Bytes())).Check()
	if err != nil {
		return fmt.Errorf("send dock request: %w", err)
	}

	return nil
}

// DockMessage builds the SYSTEM_TRAY_REQUEST_DOCK client message.
func DockMessage(manager xproto.Window, opcode xproto.Atom, icon xproto.Window) (*xevent.ClientMessageEvent, error) {
	ev, err := xevent.NewClientMessage(32, manager, opcode,
		int(xproto.TimeCurrentTime), requestDock, int(icon), 0, 0)
	if err != nil {
		return nil, fmt.Errorf("build dock message: %w", err)
	}
	return ev, nil
}

// IsManagerAnnouncement matches the MANAGER message a tray sends when it
// takes the selection.
func IsManagerAnnouncement(ev xproto.ClientMessageEvent, manager, selection xproto.Atom) bool {
	if ev.Type != manager || ev.Format != 32 {
		return false
	}
	return xproto.Atom(ev.Data.Data32[1]) == selection
}

func retry(ctx context.Context, attempts int, interval time.Duration, fn func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

func (t *Tray) readEvents() {
	defer close(t.done)

	for {
		ev, xerr := t.xu.Conn().WaitForEvent()
		switch {
		case ev == nil && xerr == nil:
			return
		case xerr != nil:
			t.log.Warnw("X protocol error on tray connection", "error", xerr)
			continue
		}

		switch e := ev.(type) {
		case xproto.ExposeEvent:
			if e.Count == 0 {
				t.repaint()
			}

		case xproto.ClientMessageEvent:
			if !IsManagerAnnouncement(e, t.manager, t.selection) {
				continue
			}
			t.log.Info("system tray restarted, docking again")
			t.mu.Lock()
			if !t.closed {
				if err := t.dock(); err != nil {
					t.log.Warnw("dock into new tray", "error", err)
				}
			}
			t.mu.Unlock()

		case xproto.DestroyNotifyEvent:
			t.log.Debugw("window destroyed", "window", e.Window)
		}
	}
}

func (t *Tray) repaint() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.img == nil {
		return
	}
	t.img.XPaint(t.win.Id)
}

// SetImage sets the new pixmap as window background before the old one is
// freed.
func (t *Tray) SetImage(bitmap *xkbtray.Bitmap) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.xu == nil || t.closed {
		return ErrNotRegistered
	}

	ximg := xgraphics.NewConvert(t.xu, bitmap.Image)
	err := ximg.XSurfaceSet(t.win.Id)
	if err != nil {
		ximg.Destroy()
		return fmt.Errorf("set window surface: %w", err)
	}
	ximg.XDraw()
	ximg.XPaint(t.win.Id)

	old := t.img
	t.img = ximg
	if old != nil {
		old.Destroy()
	}

	return nil
}

func (t *Tray) Close() error {
	t.mu.Lock()
	if t.xu == nil || t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	if t.img != nil {
		t.img.Destroy()
		t.img = nil
	}
	t.win.Destroy()
	t.xu.Conn().Close()
	t.mu.Unlock()

	<-t.done
	return nil
}
