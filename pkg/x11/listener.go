package x11

import (
	"codeberg.org/miketth/xkbtray/pkg/xkb"
	"codeberg.org/miketth/xkbtray/pkg/xkblayouts"
	"codeberg.org/miketth/xkbtray/pkg/xkbtray"
	"context"
	"errors"
	"fmt"
	"github.com/jezek/xgb"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/xprop"
	"go.uber.org/zap"
	"sync"
	"time"
)

const DefaultTimeout = 5 * time.Second

var (
	ErrClosed         = errors.New("listener closed")
	errConnClosed     = errors.New("X connection closed")
	errNoGroups       = errors.New("server reported no keyboard groups")
	errGroupsNotNamed = errors.New("reply carries no group names")
)

// Labeler turns a server group name into a layout entry.
type Labeler interface {
	Describe(index int, groupName string) xkbtray.Layout
}

type Options struct {
	// Display to connect to, $DISPLAY when empty.
	Display string
	Timeout time.Duration
	Labeler Labeler
	Log     *zap.SugaredLogger
}

type eventSource interface {
	WaitForEvent() (xgb.Event, xgb.Error)
}

// Listener owns the X connection and follows the core keyboard's group.
type Listener struct {
	xu      *xgbutil.XUtil
	labeler Labeler
	log     *zap.SugaredLogger

	events chan xkb.StateNotifyEvent
	stop   chan struct{}

	closeOnce sync.Once
}

func Connect(ctx context.Context, opts Options) (*Listener, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}

	xu, err := Dial(ctx, opts.Display, opts.Timeout)
	if err != nil {
		return nil, &xkbtray.ConnectionError{Display: opts.Display, Err: err}
	}

	err = setupXkb(xu.Conn())
	if err != nil {
		xu.Conn().Close()
		return nil, &xkbtray.ConnectionError{Display: opts.Display, Err: err}
	}

	l := newListener(xu.Conn(), opts.Labeler, opts.Log)
	l.xu = xu

	opts.Log.Debugw("connected to X server", "display", opts.Display)

	return l, nil
}

func newListener(src eventSource, labeler Labeler, log *zap.SugaredLogger) *Listener {
	if labeler == nil {
		labeler = xkblayouts.NewLabeler(nil, nil)
	}

	l := &Listener{
		labeler: labeler,
		log:     log,
		events:  make(chan xkb.StateNotifyEvent),
		stop:    make(chan struct{}),
	}
	go l.pump(src)

	return l
}

type dialResult struct {
	xu  *xgbutil.XUtil
	err error
}

// Dial opens an xgbutil connection to display and gives up after timeout. A
// connection that completes after that is closed.
func Dial(ctx context.Context, display string, timeout time.Duration) (*xgbutil.XUtil, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	results := make(chan dialResult, 1)
	go func() {
		xu, err := xgbutil.NewConnDisplay(display)
		results <- dialResult{xu, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-results:
		return r.xu, r.err
	case <-timer.C:
		go discard(results)
		return nil, fmt.Errorf("connect timed out after %s", timeout)
	case <-ctx.Done():
		go discard(results)
		return nil, ctx.Err()
	}
}

func discard(results <-chan dialResult) {
	r := <-results
	if r.err == nil {
		r.xu.Conn().Close()
	}
}

func setupXkb(c *xgb.Conn) error {
	err := xkb.Init(c)
	if err != nil {
		return fmt.Errorf("init xkb: %w", err)
	}

	version, err := xkb.UseExtension(c, xkb.MajorVersion, xkb.MinorVersion).Reply()
	if err != nil {
		return fmt.Errorf("use xkb extension: %w", err)
	}
	if version == nil || !version.Supported {
		return fmt.Errorf("xkb %d.%d not supported by server", xkb.MajorVersion, xkb.MinorVersion)
	}

	err = xkb.SelectEventsChecked(c, xkb.IdUseCoreKbd, 0, xkb.EventTypeStateNotify, 0, 0).Check()
	if err != nil {
		return fmt.Errorf("select xkb events: %w", err)
	}

	return nil
}

// pump forwards group changes until the connection goes away or the
// listener is closed. X errors on the stream are logged and skipped.
func (l *Listener) pump(src eventSource) {
	defer close(l.events)

	for {
		ev, xerr := src.WaitForEvent()
		switch {
		case ev == nil && xerr == nil:
			l.log.Debug("X event stream ended")
			return
		case xerr != nil:
			l.log.Warnw("X protocol error", "error", xerr)
			continue
		}

		state, ok := ev.(xkb.StateNotifyEvent)
		if !ok {
			l.log.Debugw("ignoring event", "event", ev)
			continue
		}
		if !state.GroupChanged() {
			continue
		}

		select {
		case l.events <- state:
		case <-l.stop:
			return
		}
	}
}

func (l *Listener) closed() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// EnumerateLayouts reads the configured groups once.
func (l *Listener) EnumerateLayouts() (xkbtray.LayoutSet, error) {
	if l.closed() {
		return nil, ErrClosed
	}

	reply, err := xkb.GetNames(l.xu.Conn(), xkb.IdUseCoreKbd, xkb.NameDetailGroupNames).Reply()
	if err != nil {
		return nil, &xkbtray.QueryError{Query: "GetNames", Err: err}
	}
	if reply == nil || reply.Which&xkb.NameDetailGroupNames == 0 {
		return nil, &xkbtray.QueryError{Query: "GetNames", Err: errGroupsNotNamed}
	}

	var names []string
	for _, atom := range reply.Groups {
		if atom == 0 {
			break
		}

		name, err := xprop.AtomName(l.xu, atom)
		if err != nil {
			return nil, &xkbtray.QueryError{Query: "GetAtomName", Err: err}
		}
		names = append(names, name)
	}

	return describeGroups(names, l.labeler)
}

func describeGroups(names []string, labeler Labeler) (xkbtray.LayoutSet, error) {
	if len(names) == 0 {
		return nil, &xkbtray.QueryError{Query: "GetNames", Err: errNoGroups}
	}

	layouts := make(xkbtray.LayoutSet, 0, len(names))
	for i, name := range names {
		if name == "" {
			return nil, &xkbtray.QueryError{Query: "GetNames", Err: fmt.Errorf("group %d has an empty name", i)}
		}

		layout := labeler.Describe(i, name)
		if layout.Label == "" {
			return nil, &xkbtray.QueryError{Query: "GetNames", Err: fmt.Errorf("no label for group %q", name)}
		}
		layouts = append(layouts, layout)
	}

	return layouts, nil
}

func (l *Listener) CurrentIndex() (int, error) {
	if l.closed() {
		return 0, ErrClosed
	}

	state, err := xkb.GetState(l.xu.Conn(), xkb.IdUseCoreKbd).Reply()
	if err != nil {
		return 0, &xkbtray.QueryError{Query: "GetState", Err: err}
	}
	if state == nil {
		return 0, &xkbtray.QueryError{Query: "GetState", Err: errConnClosed}
	}

	return int(state.Group), nil
}

// NextStateChange blocks until the active group changes.
func (l *Listener) NextStateChange(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()

	case state, ok := <-l.events:
		if !ok {
			return 0, &xkbtray.FatalProtocolError{Err: errConnClosed}
		}

		l.log.Debugw("group changed", "group", state.Group, "changed", state.Changed)
		return int(state.Group), nil
	}
}

func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.stop)
		if l.xu != nil {
			l.xu.Conn().Close()
		}
	})
	return nil
}
