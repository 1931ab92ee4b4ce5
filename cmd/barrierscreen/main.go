// Command barrierscreen connects to a Barrier/Synergy/Deskflow server and
// forwards its keyboard/mouse events to the local display.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/jrhodes/barrierscreen/internal/config"
	"github.com/jrhodes/barrierscreen/internal/consolelog"
	"github.com/jrhodes/barrierscreen/internal/discovery"
	"github.com/jrhodes/barrierscreen/internal/indicator"
	"github.com/jrhodes/barrierscreen/internal/inject"
	"github.com/jrhodes/barrierscreen/internal/inject/backend"
	"github.com/jrhodes/barrierscreen/internal/metrics"
	"github.com/jrhodes/barrierscreen/internal/session"
	"github.com/jrhodes/barrierscreen/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = pflag.StringP("config", "c", defaultConfigPath(), "Configuration file path.")
		serverFlag  = pflag.StringP("server", "s", "", "Server address, overrides the config file.")
		portFlag    = pflag.IntP("port", "p", 0, "Server port, overrides the config file.")
		discover    = pflag.BoolP("discover", "D", false, "Browse for servers on the local network and exit.")
		tlsFlag     = pflag.Bool("tls", false, "Require TLS, overrides the config file.")
		logLevel    = pflag.StringP("log-level", "l", "", "Log level (debug, info, warn, error), overrides the config file.")
		dryRun      = pflag.Bool("dry-run", false, "Use the pty narration backend instead of a real input device.")
		metricsAddr = pflag.String("metrics-addr", "", "Address to serve Prometheus metrics on, e.g. :9090. Empty disables metrics.")
		showVersion = pflag.Bool("version", false, "Print version information and exit.")
		help        = pflag.BoolP("help", "h", false, "Display help text.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "barrierscreen - a secondary-screen client for Barrier/Synergy/Deskflow.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: barrierscreen [options]\n\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()

		return 0
	}

	if *showVersion {
		fmt.Println(version.Get().String())

		return 0
	}

	if *discover {
		return runDiscover()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "barrierscreen: %v\n", err)

		return 1
	}

	applyOverrides(&cfg, *serverFlag, *portFlag, *tlsFlag, *logLevel, *dryRun)

	return runClient(cfg, *configPath, *metricsAddr)
}

func applyOverrides(cfg *config.Config, server string, port int, tls bool, logLevel string, dryRun bool) {
	if server != "" {
		cfg.Server = server
	}

	if port != 0 {
		cfg.Port = port
	}

	if tls {
		cfg.TLS = true
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if dryRun {
		cfg.MouseBackend = "pty"
		cfg.KeyboardBackend = "pty"
	}
}

func runDiscover() int {
	log := consolelog.New(os.Stderr, "info")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Infof("browsing for servers for 5s...")

	err := discovery.Browse(ctx, func(s discovery.Server) {
		fmt.Printf("%s\t%s:%d\n", s.Name, s.Host, s.Port)
	})
	if err != nil {
		log.Errorf("discovery failed: %v", err)

		return 1
	}

	return 0
}

func runClient(cfg config.Config, configPath, metricsAddr string) int {
	log := consolelog.New(os.Stderr, cfg.LogLevel)
	log.Infof("%s starting, connecting to %s:%d", version.Get(), cfg.Server, cfg.Port)

	configDir := filepath.Dir(defaultConfigPath())

	trust, err := session.OpenTrustStore(filepath.Join(configDir, "known_hosts.json"))
	if err != nil {
		log.Errorf("opening trust store: %v", err)

		return 1
	}

	be, err := backend.Select(cfg.MouseBackend, int32(cfg.ScreenWidth), int32(cfg.ScreenHeight))
	if err != nil {
		log.Errorf("selecting input backend: %v", err)

		return 1
	}

	fallbackW, fallbackH := int32(cfg.ScreenWidth), int32(cfg.ScreenHeight)
	if fallbackW <= 0 || fallbackH <= 0 {
		fallbackW, fallbackH = 1920, 1080
	}

	injector := inject.New(inject.Config{
		AbsMouseMove:         cfg.AbsMouseMove,
		MouseMoveThresholdMS: cfg.MouseMoveThresholdMS,
		MousePosSyncFreq:     cfg.MousePosSyncFreq,
		FallbackWidth:        fallbackW,
		FallbackHeight:       fallbackH,
	}, be, log.WithPrefix("inject"))

	sess := session.New(session.Config{
		Server:         cfg.Server,
		Port:           cfg.Port,
		ClientName:     cfg.ClientName,
		TLS:            cfg.TLS,
		MTLS:           cfg.MTLS,
		TLSTrust:       cfg.TLSTrust,
		PEMPath:        cfg.PEMPath,
		KnownHostsPath: filepath.Join(configDir, "known_hosts.json"),
	}, injector, log.WithPrefix("session"), interactivePrompt{}, trust)

	if desktop, err := session.NewDesktopBridge(); err == nil {
		sess.SetDesktopBridge(desktop)
		defer desktop.Close() //nolint:errcheck
	} else {
		log.Warnf("screensaver bridge unavailable: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		reg := metrics.New()
		sess.SetMetrics(reg)
		injector.SetMetrics(reg)

		srv := metrics.NewServer(metricsAddr, reg)

		go func() {
			if err := srv.Serve(ctx); err != nil {
				log.Warnf("metrics server: %v", err)
			}
		}()
	}

	var led *indicator.Line

	if cfg.StatusGPIOChip != "" {
		l, err := indicator.Open(cfg.StatusGPIOChip, cfg.StatusGPIOLine, cfg.StatusGPIOActiveLow)
		if err != nil {
			log.Warnf("status indicator unavailable: %v", err)
		} else {
			led = l
			defer led.Close() //nolint:errcheck
		}
	}

	var transcript *consolelog.Transcript

	if cfg.TranscriptDir != "" {
		t, err := consolelog.NewTranscript(cfg.TranscriptDir, "")
		if err != nil {
			log.Warnf("session transcript unavailable: %v", err)
		} else {
			transcript = t
			defer transcript.Close() //nolint:errcheck
		}
	}

	if led != nil || transcript != nil {
		go followState(ctx, sess, led, transcript, log)
	}

	watcher, err := config.WatchFile(configPath, cfg, func(next config.Config) {
		log.Infof("config reloaded: mouse_move_threshold_ms=%d mouse_pos_sync_freq=%d abs_mouse_move=%v log_level=%s",
			next.MouseMoveThresholdMS, next.MousePosSyncFreq, next.AbsMouseMove, next.LogLevel)
		injector.UpdateMoveConfig(next.AbsMouseMove, next.MouseMoveThresholdMS, next.MousePosSyncFreq)
		log.SetLevel(next.LogLevel)
	})
	if err != nil {
		log.Warnf("config live-reload unavailable: %v", err)
	} else {
		defer watcher.Close() //nolint:errcheck
	}

	err = sess.Run(ctx)
	injector.Shutdown()

	if err != nil && ctx.Err() == nil {
		log.Errorf("session ended: %v", err)

		return 1
	}

	if ctx.Err() != nil {
		return 130
	}

	return 0
}

// followState polls the Session's state at a coarse interval and drives the
// optional GPIO status indicator and session-lifecycle transcript off of
// it. Session exposes State() as a poll, not a push, so this is the
// simplest honest consumer of it -- indicator.FollowSession already does
// the state-to-drive-level mapping; this just calls it (and logs a
// transcript line) on each observed transition.
func followState(ctx context.Context, sess *session.Session, led *indicator.Line, transcript *consolelog.Transcript, log *consolelog.Logger) {
	const pollInterval = 250 * time.Millisecond

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := session.Disconnected

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := sess.State()
			if cur == last {
				continue
			}

			last = cur

			if led != nil {
				indicator.FollowSession(led, cur, log.Warnf)
			}

			if transcript != nil {
				if err := transcript.Record("state -> %s", cur.String()); err != nil {
					log.Warnf("writing transcript: %v", err)
				}
			}
		}
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}

	return filepath.Join(dir, "barrierscreen", "config.yaml")
}
