// Package session owns the TCP/TLS connection to a Barrier/Synergy/Deskflow
// server and drives the handshake, read loop, and control-message policies
// described in §4.3. It hands decoded data messages to the Dispatcher and
// leaves all platform input-injection to the Injector behind a small
// interface, so this package never imports internal/inject directly.
package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jrhodes/barrierscreen/internal/dispatch"
	"github.com/jrhodes/barrierscreen/internal/framing"
	"github.com/jrhodes/barrierscreen/internal/metrics"
	"github.com/jrhodes/barrierscreen/internal/wire"
)

// StateNames lists every State's String() form, in declaration order, for
// Metrics.SetState (which must zero out every other state's gauge whenever
// one becomes current).
var StateNames = []string{
	Disconnected.String(),
	Connecting.String(),
	Handshake.String(),
	Connected.String(),
	Active.String(),
	Inactive.String(),
}

// handshakeTimeout is the explicit 10-second deadline from §5.
const handshakeTimeout = 10 * time.Second

// Logger is the minimal surface session needs; internal/consolelog
// implements it. Kept tiny and local so this package stays decoupled from
// the logging backend.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Injector is everything the Session needs the platform input layer to do.
// internal/inject.Injector implements this; Session holds only this
// interface, never a concrete Injector, matching §9's "Session holds a weak
// reference through the Dispatcher to trigger shutdown but never mutates
// devices directly."
type Injector interface {
	HandleEnter(*wire.Enter) error
	HandleLeave(*wire.Leave) error
	HandleMouseMove(*wire.MouseMove) error
	HandleMouseRelMove(*wire.MouseRelMove) error
	HandleMouseDown(*wire.MouseDown) error
	HandleMouseUp(*wire.MouseUp) error
	HandleMouseWheel(*wire.MouseWheel) error
	HandleKeyDown(*wire.KeyDown) error
	HandleKeyDownLang(*wire.KeyDownLang) error
	HandleKeyRepeat(*wire.KeyRepeat) error
	HandleKeyUp(*wire.KeyUp) error
	// CurrentInfo refreshes the geometry probe if needed and reports the
	// current screen rect and logical cursor, for the QINF -> DINF reply.
	CurrentInfo() (width, height uint16, mouseX, mouseY int16)
	// Shutdown drains pressed sets and closes both virtual devices. Called
	// once, on every exit path.
	Shutdown()
}

// Config bundles the subset of internal/config.Config a Session needs.
type Config struct {
	Server         string
	Port           int
	ClientName     string
	TLS            bool
	MTLS           bool
	TLSTrust       bool
	PEMPath        string
	KnownHostsPath string
}

// Session owns one connection's lifetime.
type Session struct {
	cfg      Config
	log      Logger
	injector Injector
	prompt   Prompt
	trust    *TrustStore

	conn   net.Conn
	parser *framing.Parser
	disp   *dispatch.Dispatcher

	// desktop bridges CSEC to the local screensaver inhibitor. Optional --
	// nil when no session bus is available (e.g. headless).
	desktop interface {
		SetScreenSaverActive(active bool) error
	}

	writeMu chan struct{} // 1-buffered mutex; see writeFrame
	state   chan State    // 1-buffered "atomic" cell holding current State

	// metrics is the optional Prometheus registry; nil disables all
	// counting. Set via SetMetrics before Run.
	metrics *metrics.Registry
}

// New constructs a Session. The caller (cmd/barrierscreen) supplies the
// Injector, a Logger, an interactive Prompt for TOFU decisions, and an
// already-opened TrustStore.
func New(cfg Config, injector Injector, log Logger, prompt Prompt, trust *TrustStore) *Session {
	s := &Session{
		cfg:      cfg,
		log:      log,
		injector: injector,
		prompt:   prompt,
		trust:    trust,
		parser:   framing.NewParser(),
		writeMu:  make(chan struct{}, 1),
		state:    make(chan State, 1),
	}
	s.writeMu <- struct{}{}
	s.setState(Disconnected)

	s.disp = dispatch.New()
	s.registerHandlers()

	return s
}

// SetDesktopBridge installs the optional CSEC -> local-screensaver bridge.
// Called by cmd/barrierscreen after probing for a session bus.
func (s *Session) SetDesktopBridge(d interface {
	SetScreenSaverActive(active bool) error
}) {
	s.desktop = d
}

// SetMetrics installs the optional Prometheus registry used to count
// frames, protocol errors, handler errors, queue depth, and session state
// occupancy (DESIGN §Metrics, SPEC_FULL D8). A nil registry (the default)
// disables metrics entirely.
func (s *Session) SetMetrics(m *metrics.Registry) {
	s.metrics = m
}

func (s *Session) setState(st State) {
	select {
	case <-s.state:
	default:
	}
	s.state <- st

	if s.metrics != nil {
		s.metrics.SetState(st.String(), StateNames)
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	st := <-s.state
	s.state <- st

	return st
}

// registerHandlers wires each data-message code to the Injector method that
// implements it, plus the Enter/Leave state transitions from §4.3. This is
// the "builder that registers each handler by name during Dispatcher
// construction" named in §9.
func (s *Session) registerHandlers() {
	s.disp.Handle("CINN", func(msg wire.Message) error {
		err := s.injector.HandleEnter(msg.(*wire.Enter))
		s.setState(Active)

		return err
	})
	s.disp.Handle("COUT", func(msg wire.Message) error {
		err := s.injector.HandleLeave(msg.(*wire.Leave))
		s.setState(Connected)

		return err
	})
	s.disp.Handle("DMMV", func(msg wire.Message) error { return s.injector.HandleMouseMove(msg.(*wire.MouseMove)) })
	s.disp.Handle("DMRM", func(msg wire.Message) error {
		return s.injector.HandleMouseRelMove(msg.(*wire.MouseRelMove))
	})
	s.disp.Handle("DMDN", func(msg wire.Message) error { return s.injector.HandleMouseDown(msg.(*wire.MouseDown)) })
	s.disp.Handle("DMUP", func(msg wire.Message) error { return s.injector.HandleMouseUp(msg.(*wire.MouseUp)) })
	s.disp.Handle("DMWM", func(msg wire.Message) error { return s.injector.HandleMouseWheel(msg.(*wire.MouseWheel)) })
	s.disp.Handle("DKDN", func(msg wire.Message) error { return s.injector.HandleKeyDown(msg.(*wire.KeyDown)) })
	s.disp.Handle("DKDL", func(msg wire.Message) error { return s.injector.HandleKeyDownLang(msg.(*wire.KeyDownLang)) })
	s.disp.Handle("DKRP", func(msg wire.Message) error { return s.injector.HandleKeyRepeat(msg.(*wire.KeyRepeat)) })
	s.disp.Handle("DKUP", func(msg wire.Message) error { return s.injector.HandleKeyUp(msg.(*wire.KeyUp)) })

	s.disp.Handle("CSEC", func(msg wire.Message) error {
		if s.desktop == nil {
			return nil
		}

		return s.desktop.SetScreenSaverActive(msg.(*wire.ScreenSaver).State)
	})

	s.disp.Handle("QINF", func(wire.Message) error {
		w, h, mx, my := s.injector.CurrentInfo()

		return s.send(&wire.Info{Left: 0, Top: 0, Width: w, Height: h, Warp: 0, MouseX: mx, MouseY: my})
	})

	// CCLP/DCLP/LSYN decode fine but the original source logs every one of
	// them as unimplemented or a bare debug line (handlers.py on_cclp,
	// on_dclp, on_lsyn) -- no sequence tracking, no DCLP reply, no layout
	// fallback. These handlers exist so that reality, not just OnUnknown,
	// matches that.
	s.disp.Handle("CCLP", func(wire.Message) error {
		s.log.Warnf("CCLP is unimplemented")

		return nil
	})
	s.disp.Handle("DCLP", func(wire.Message) error {
		s.log.Debugf("ignoring DCLP")

		return nil
	})
	s.disp.Handle("LSYN", func(wire.Message) error {
		s.log.Debugf("ignoring LSYN")

		return nil
	})

	s.disp.OnUnknown(func(msg wire.Message) error {
		if skip, ok := msg.(*wire.Skip); ok {
			s.log.Warnf("dropping unrecognised message code %q (%d bytes)", skip.SkipCode, skip.Length)
		}

		return nil
	})

	s.disp.OnError(func(code string, err error) {
		s.log.Warnf("handler for %s reported an error: %v", code, err)

		if s.metrics != nil {
			s.metrics.HandlerErrors.WithLabelValues(code).Inc()
		}
	})
}

// Run connects, handshakes, then runs the read loop and dispatcher worker
// concurrently until either exits (on EOF, error, protocol violation, or
// ctx cancellation), then tears everything down. It returns the first
// terminal error, or nil on a graceful CBYE/EOF close.
func (s *Session) Run(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	defer s.conn.Close() //nolint:errcheck

	if err := s.handshake(); err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(ctx)

	// loopCtx ends on ctx cancellation, on either task's error, or when the
	// read loop returns; closing the socket then unblocks a pending Read and
	// the dispatcher drains its queue and returns.
	loopCtx, stopLoop := context.WithCancel(gctx)
	defer stopLoop()

	stopClose := context.AfterFunc(loopCtx, func() { s.conn.Close() }) //nolint:errcheck
	defer stopClose()

	group.Go(func() error {
		defer stopLoop()

		return s.readLoop(loopCtx)
	})
	group.Go(func() error { return s.disp.Run(loopCtx) })

	err := group.Wait()
	if err != nil && ctx.Err() != nil {
		// Cancellation (shutdown request), not a real failure.
		return nil
	}

	return err
}

func (s *Session) connect(ctx context.Context) error {
	s.setState(Connecting)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)

	dialer := &net.Dialer{}

	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dialing %s: %w", ErrTransport, addr, err)
	}

	if !s.cfg.TLS {
		s.conn = rawConn

		return nil
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: true, // TOFU fingerprint check below replaces CA trust.
		MinVersion:         tls.VersionTLS12,
	}

	if s.cfg.MTLS {
		cert, err := tls.LoadX509KeyPair(s.cfg.PEMPath, s.cfg.PEMPath)
		if err != nil {
			return fmt.Errorf("%w: loading client certificate: %w", ErrTransport, err)
		}

		tlsConf.Certificates = []tls.Certificate{cert}
	}

	tlsConn := tls.Client(rawConn, tlsConf)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close() //nolint:errcheck

		return fmt.Errorf("%w: TLS handshake: %w", ErrTransport, err)
	}

	peerCerts := tlsConn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		tlsConn.Close() //nolint:errcheck

		return fmt.Errorf("%w: server presented no certificate", ErrTransport)
	}

	fingerprint := Fingerprint(peerCerts[0])
	if err := s.trust.Verify(addr, fingerprint, s.prompt, s.cfg.TLSTrust); err != nil {
		tlsConn.Close() //nolint:errcheck

		return err
	}

	s.conn = tlsConn

	return nil
}

func (s *Session) handshake() error {
	s.setState(Handshake)

	if err := s.conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return fmt.Errorf("%w: setting handshake deadline: %w", ErrTransport, err)
	}

	hello, err := s.readHandshakeFrame(framing.HandshakeHello)
	if err != nil {
		return err
	}

	if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("%w: clearing handshake deadline: %w", ErrTransport, err)
	}

	reply := &wire.HelloBack{
		ProtocolName: hello.ProtocolName,
		Major:        hello.Major,
		Minor:        hello.Minor,
		Name:         s.cfg.ClientName,
	}
	if err := s.writeFrame(wire.EncodeHandshake(reply)); err != nil {
		return err
	}

	s.setState(Connected)

	return nil
}

func (s *Session) readHandshakeFrame(kind framing.HandshakeKind) (*wire.Hello, error) {
	buf := make([]byte, 4096)

	for {
		if msg, err := s.parser.NextHandshake(kind); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		} else if msg != nil {
			hello, ok := msg.(*wire.Hello)
			if !ok {
				return nil, fmt.Errorf("%w: unexpected handshake reply type", ErrTransport)
			}

			return hello, nil
		}

		n, err := s.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, fmt.Errorf("%w: %w", ErrHandshakeTimeout, err)
			}

			return nil, fmt.Errorf("%w: reading handshake: %w", ErrTransport, err)
		}

		s.parser.Feed(buf[:n])
	}
}

// readLoop is the sole producer: it reads bytes, extracts frames, and
// either handles them inline (CALV echo, protocol errors) or enqueues them
// for the dispatcher worker.
func (s *Session) readLoop(ctx context.Context) error {
	buf := make([]byte, 4096)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		frame, ferr := s.parser.Next()
		for frame != nil {
			if err := s.handleFrame(ctx, frame.Payload); err != nil {
				return err
			}

			frame, ferr = s.parser.Next()
		}

		if ferr != nil {
			s.log.Errorf("framing error: %v", ferr)
			// OversizeFrame already flushed the buffer; keep reading.
		}

		n, err := s.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return nil //nolint:nilerr // EOF and network errors both end the loop gracefully; see §4.3.
		}

		s.parser.Feed(buf[:n])
	}
}

func (s *Session) handleFrame(ctx context.Context, payload []byte) error {
	msg, trailing, err := wire.Decode(payload)
	if err != nil {
		s.log.Warnf("discarding malformed frame: %v", err)

		return nil
	}

	if trailing != nil {
		s.log.Debugf("message %s carried %d trailing bytes", trailing.Code, trailing.NBytes)
	}

	if s.metrics != nil {
		s.metrics.FramesReceived.Inc()
	}

	if code := msg.Code(); code == "CALV" {
		return s.writeFrame(payload)
	}

	switch m := msg.(type) {
	case *wire.ProtocolError, *wire.Busy, *wire.Unknown:
		s.log.Errorf("server reported protocol error %s", msg.Code())
		s.setState(Disconnected)

		if s.metrics != nil {
			s.metrics.ProtocolErrors.Inc()
		}

		return fmt.Errorf("%w: %s", ErrProtocolViolation, msg.Code())
	case *wire.IncompatibleVersion:
		s.log.Errorf("server reported incompatible version %d.%d", m.Major, m.Minor)
		s.setState(Disconnected)

		if s.metrics != nil {
			s.metrics.ProtocolErrors.Inc()
		}

		return &IncompatibleVersionError{ServerMajor: m.Major, ServerMinor: m.Minor}
	case *wire.Close:
		s.setState(Disconnected)

		return nil
	}

	err = s.disp.Enqueue(ctx, msg)

	if s.metrics != nil {
		s.metrics.DispatchQueueLen.Set(float64(s.disp.Len()))
	}

	return err
}

// writeFrame serializes an already-built payload with its length prefix and
// writes it to the socket, serializing concurrent writers (the read loop's
// CALV echo and the dispatcher worker's QINF reply can race).
func (s *Session) writeFrame(payload []byte) error {
	<-s.writeMu
	defer func() { s.writeMu <- struct{}{} }()

	if _, err := s.conn.Write(framing.EncodeFrame(payload)); err != nil {
		return fmt.Errorf("%w: writing frame: %w", ErrTransport, err)
	}

	if s.metrics != nil {
		s.metrics.FramesSent.Inc()
	}

	return nil
}

func (s *Session) send(m wire.Message) error {
	return s.writeFrame(wire.Encode(m))
}
