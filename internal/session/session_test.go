package session_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrhodes/barrierscreen/internal/framing"
	"github.com/jrhodes/barrierscreen/internal/metrics"
	"github.com/jrhodes/barrierscreen/internal/session"
	"github.com/jrhodes/barrierscreen/internal/wire"
)

type nullLog struct{}

func (nullLog) Debugf(string, ...any) {}
func (nullLog) Infof(string, ...any)  {}
func (nullLog) Warnf(string, ...any)  {}
func (nullLog) Errorf(string, ...any) {}

type fakeInjector struct {
	mu      sync.Mutex
	entered []*wire.Enter
	left    int
	w, h    uint16
	mx, my  int16
}

func (f *fakeInjector) HandleEnter(m *wire.Enter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entered = append(f.entered, m)

	return nil
}

func (f *fakeInjector) HandleLeave(*wire.Leave) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left++

	return nil
}

func (f *fakeInjector) HandleMouseMove(*wire.MouseMove) error         { return nil }
func (f *fakeInjector) HandleMouseRelMove(*wire.MouseRelMove) error   { return nil }
func (f *fakeInjector) HandleMouseDown(*wire.MouseDown) error         { return nil }
func (f *fakeInjector) HandleMouseUp(*wire.MouseUp) error             { return nil }
func (f *fakeInjector) HandleMouseWheel(*wire.MouseWheel) error       { return nil }
func (f *fakeInjector) HandleKeyDown(*wire.KeyDown) error             { return nil }
func (f *fakeInjector) HandleKeyDownLang(*wire.KeyDownLang) error     { return nil }
func (f *fakeInjector) HandleKeyRepeat(*wire.KeyRepeat) error         { return nil }
func (f *fakeInjector) HandleKeyUp(*wire.KeyUp) error                 { return nil }
func (f *fakeInjector) Shutdown()                                    {}

func (f *fakeInjector) CurrentInfo() (uint16, uint16, int16, int16) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.w, f.h, f.mx, f.my
}

// newPipePair starts a real loopback listener and builds a Session pointed at
// it. The tests drive handshake/readLoop via the exported Run, which dials the
// listener; the accepted server-side connection arrives on the returned
// channel once Run has connected.
func newPipePair(t *testing.T) (clientAddr string, serverConnCh <-chan net.Conn, sess *session.Session, inj *fakeInjector) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() { ln.Close() }) //nolint:errcheck

	accepted := make(chan net.Conn, 1)

	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()

	addr := ln.Addr().(*net.TCPAddr) //nolint:errcheck

	inj = &fakeInjector{w: 1920, h: 1080}
	trust, err := session.OpenTrustStore(t.TempDir() + "/known_hosts.json")
	require.NoError(t, err)

	sess = session.New(session.Config{
		Server:     "127.0.0.1",
		Port:       addr.Port,
		ClientName: "testclient",
	}, inj, nullLog{}, nil, trust)

	return "127.0.0.1", accepted, sess, inj
}

func TestHandshakeAndKeepAliveEcho(t *testing.T) {
	_, serverConnCh, sess, _ := newPipePair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runErr := make(chan error, 1)

	go func() { runErr <- sess.Run(ctx) }()

	serverConn := <-serverConnCh
	defer serverConn.Close() //nolint:errcheck

	hello := &wire.Hello{ProtocolName: wire.ProtocolBarrier, Major: 1, Minor: 8}
	_, err := serverConn.Write(framing.EncodeFrame(wire.EncodeHandshake(hello)))
	require.NoError(t, err)

	reply := readFrame(t, serverConn)
	back, err := wire.DecodeHelloBack(reply)
	require.NoError(t, err)
	assert.Equal(t, "testclient", back.Name)
	assert.Equal(t, uint16(1), back.Major)

	_, err = serverConn.Write(framing.EncodeFrame([]byte("CALV")))
	require.NoError(t, err)

	echoed := readFrame(t, serverConn)
	assert.Equal(t, []byte("CALV"), echoed)

	cancel()
	<-runErr
}

func TestEnterLeaveStateTransitions(t *testing.T) {
	_, serverConnCh, sess, inj := newPipePair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() { _ = sess.Run(ctx) }()

	serverConn := <-serverConnCh
	defer serverConn.Close() //nolint:errcheck

	hello := &wire.Hello{ProtocolName: wire.ProtocolBarrier, Major: 1, Minor: 8}
	_, err := serverConn.Write(framing.EncodeFrame(wire.EncodeHandshake(hello)))
	require.NoError(t, err)
	readFrame(t, serverConn) // HelloBack

	enter := &wire.Enter{X: 10, Y: 20, Sequence: 1, Mods: 0}
	_, err = serverConn.Write(framing.EncodeFrame(wire.Encode(enter)))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sess.State() == session.Active }, time.Second, time.Millisecond)

	_, err = serverConn.Write(framing.EncodeFrame(wire.Encode(&wire.Leave{})))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sess.State() == session.Connected }, time.Second, time.Millisecond)

	inj.mu.Lock()
	defer inj.mu.Unlock()
	assert.Len(t, inj.entered, 1)
	assert.Equal(t, 1, inj.left)
}

func TestQueryInfoReplies(t *testing.T) {
	_, serverConnCh, sess, _ := newPipePair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() { _ = sess.Run(ctx) }()

	serverConn := <-serverConnCh
	defer serverConn.Close() //nolint:errcheck

	hello := &wire.Hello{ProtocolName: wire.ProtocolBarrier, Major: 1, Minor: 8}
	_, err := serverConn.Write(framing.EncodeFrame(wire.EncodeHandshake(hello)))
	require.NoError(t, err)
	readFrame(t, serverConn)

	_, err = serverConn.Write(framing.EncodeFrame(wire.Encode(&wire.QueryInfo{})))
	require.NoError(t, err)

	reply := readFrame(t, serverConn)
	msg, _, err := wire.Decode(reply)
	require.NoError(t, err)

	info, ok := msg.(*wire.Info)
	require.True(t, ok)
	assert.Equal(t, uint16(1920), info.Width)
	assert.Equal(t, uint16(1080), info.Height)
}

func TestMetricsCountFramesAndSessionState(t *testing.T) {
	_, serverConnCh, sess, _ := newPipePair(t)

	reg := metrics.New()
	sess.SetMetrics(reg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() { _ = sess.Run(ctx) }()

	serverConn := <-serverConnCh
	defer serverConn.Close() //nolint:errcheck

	hello := &wire.Hello{ProtocolName: wire.ProtocolBarrier, Major: 1, Minor: 8}
	_, err := serverConn.Write(framing.EncodeFrame(wire.EncodeHandshake(hello)))
	require.NoError(t, err)
	readFrame(t, serverConn) // HelloBack

	assert.InDelta(t, 1, testutil.ToFloat64(reg.FramesSent), 0)

	enter := &wire.Enter{X: 10, Y: 20, Sequence: 1, Mods: 0}
	_, err = serverConn.Write(framing.EncodeFrame(wire.Encode(enter)))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sess.State() == session.Active }, time.Second, time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(reg.FramesReceived), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(reg.SessionState.WithLabelValues(session.Active.String())), 0.0001)
	assert.InDelta(t, 0, testutil.ToFloat64(reg.SessionState.WithLabelValues(session.Connected.String())), 0.0001)
}

func TestMetricsCountProtocolErrors(t *testing.T) {
	_, serverConnCh, sess, _ := newPipePair(t)

	reg := metrics.New()
	sess.SetMetrics(reg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()

	serverConn := <-serverConnCh
	defer serverConn.Close() //nolint:errcheck

	hello := &wire.Hello{ProtocolName: wire.ProtocolBarrier, Major: 1, Minor: 8}
	_, err := serverConn.Write(framing.EncodeFrame(wire.EncodeHandshake(hello)))
	require.NoError(t, err)
	readFrame(t, serverConn)

	_, err = serverConn.Write(framing.EncodeFrame([]byte("EUNK")))
	require.NoError(t, err)

	<-runErr

	assert.InDelta(t, 1, testutil.ToFloat64(reg.ProtocolErrors), 0)
}

func readFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	p := framing.NewParser()
	buf := make([]byte, 4096)

	for {
		frame, err := p.Next()
		require.NoError(t, err)

		if frame != nil {
			return frame.Payload
		}

		n, err := conn.Read(buf)
		require.NoError(t, err)
		p.Feed(buf[:n])
	}
}
