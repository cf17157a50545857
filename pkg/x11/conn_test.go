package x11

import (
	"codeberg.org/miketth/xkbtray/pkg/xkb"
	"codeberg.org/miketth/xkbtray/pkg/xkbtray"
	"context"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
)

const (
	fakeXkbOpcode     = 130
	fakeXkbFirstEvent = 85
	fakeXkbFirstError = 140
)

// fakeServer speaks just enough X11 for Connect: the setup handshake,
// QueryExtension, InternAtom, GetInputFocus and XKB UseExtension. Requests
// without replies are read and dropped.
type fakeServer struct {
	t       *testing.T
	display string
	ln      net.Listener

	mu   sync.Mutex
	conn net.Conn

	ready chan struct{}
	done  chan struct{}
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	t.Setenv("XAUTHORITY", filepath.Join(t.TempDir(), "no-xauthority"))

	// a display starting with '/' is dialed as "<path>:<n>"
	base := filepath.Join(t.TempDir(), "x")
	ln, err := net.Listen("unix", base+":0")
	require.NoError(t, err)

	s := &fakeServer{
		t:       t,
		display: base + ":0",
		ln:      ln,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.serve()

	t.Cleanup(func() {
		_ = ln.Close()
		s.hangUp()
	})

	return s
}

func (s *fakeServer) serve() {
	defer close(s.done)

	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	close(s.ready)

	if err := s.handshake(conn); err != nil {
		return
	}

	seq := uint16(0)
	for {
		head := make([]byte, 4)
		if _, err := io.ReadFull(conn, head); err != nil {
			return
		}
		body := make([]byte, int(xgb.Get16(head[2:]))*4-4)
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}
		seq++

		reply := s.reply(head, body)
		if reply == nil {
			continue
		}
		xgb.Put16(reply[2:], seq)
		s.write(reply)
	}
}

func (s *fakeServer) handshake(conn net.Conn) error {
	prefix := make([]byte, 12)
	if _, err := io.ReadFull(conn, prefix); err != nil {
		return err
	}
	auth := make([]byte, xgb.Pad(int(xgb.Get16(prefix[6:])))+xgb.Pad(int(xgb.Get16(prefix[8:]))))
	if _, err := io.ReadFull(conn, auth); err != nil {
		return err
	}

	setup := xproto.SetupInfo{
		Status:               1,
		ProtocolMajorVersion: 11,
		ResourceIdBase:       0x00400000,
		ResourceIdMask:       0x001fffff,
		MaximumRequestLength: 0xffff,
		RootsLen:             1,
		Roots: []xproto.ScreenInfo{{
			Root:           0x100,
			WidthInPixels:  1024,
			HeightInPixels: 768,
			RootVisual:     0x21,
			RootDepth:      24,
		}},
	}
	buf := setup.Bytes()
	xgb.Put16(buf[6:], uint16((len(buf)-8)/4))

	s.write(buf)
	return nil
}

func (s *fakeServer) reply(head, body []byte) []byte {
	reply := make([]byte, 32)
	reply[0] = 1

	switch head[0] {
	case 98: // QueryExtension
		nameLen := int(xgb.Get16(body[0:]))
		if string(body[4:4+nameLen]) == "XKEYBOARD" {
			reply[8] = 1
			reply[9] = fakeXkbOpcode
			reply[10] = fakeXkbFirstEvent
			reply[11] = fakeXkbFirstError
		}
	case 16: // InternAtom
		xgb.Put32(reply[8:], 0x200)
	case 43: // GetInputFocus
		xgb.Put32(reply[8:], 0x100)
	case fakeXkbOpcode:
		if head[1] != 0 { // only UseExtension answers
			return nil
		}
		reply[1] = 1
		xgb.Put16(reply[8:], xkb.MajorVersion)
		xgb.Put16(reply[10:], xkb.MinorVersion)
	default:
		return nil
	}

	return reply
}

func (s *fakeServer) write(buf []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Write(buf)
	if err != nil {
		s.t.Logf("fake server write: %v", err)
	}
}

func (s *fakeServer) sendGroupChange(group byte) {
	ev := xkb.StateNotifyEvent{
		Group:       group,
		LockedGroup: group,
		Changed:     xkb.StatePartGroupLock | xkb.StatePartGroupState,
	}
	buf := ev.Bytes()
	buf[0] = fakeXkbFirstEvent
	s.write(buf)
}

func (s *fakeServer) hangUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

func TestConnectionLossIsFatal(t *testing.T) {
	srv := startFakeServer(t)
	ctx := testContext(t)

	l, err := Connect(ctx, Options{
		Display: srv.display,
		Log:     zaptest.NewLogger(t).Sugar(),
	})
	require.NoError(t, err)

	srv.sendGroupChange(1)
	idx, err := l.NextStateChange(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	srv.hangUp()

	_, err = l.NextStateChange(ctx)
	var fatal *xkbtray.FatalProtocolError
	require.ErrorAs(t, err, &fatal)

	_, err = l.CurrentIndex()
	var query *xkbtray.QueryError
	assert.ErrorAs(t, err, &query)

	assert.NotPanics(t, func() {
		assert.NoError(t, l.Close())
		assert.NoError(t, l.Close())
		l.xu.Conn().Close()
	})
	<-srv.done
}

func TestConnectWithoutServer(t *testing.T) {
	display := filepath.Join(t.TempDir(), "missing") + ":0"

	_, err := Connect(context.Background(), Options{Display: display})
	var connErr *xkbtray.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, display, connErr.Display)
}
