package main

import (
	"codeberg.org/miketth/xkbtray/pkg/config"
	"codeberg.org/miketth/xkbtray/pkg/glyph"
	"codeberg.org/miketth/xkbtray/pkg/historystore/json"
	"codeberg.org/miketth/xkbtray/pkg/historystore/memory"
	"codeberg.org/miketth/xkbtray/pkg/historystore/sqlite"
	"codeberg.org/miketth/xkbtray/pkg/tray/headless"
	"codeberg.org/miketth/xkbtray/pkg/tray/sni"
	"codeberg.org/miketth/xkbtray/pkg/tray/xembed"
	"codeberg.org/miketth/xkbtray/pkg/x11"
	"codeberg.org/miketth/xkbtray/pkg/xkblayouts"
	"codeberg.org/miketth/xkbtray/pkg/xkbtray"
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/adrg/xdg"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/jezek/xgb"
	"github.com/jezek/xgbutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

func main() {
	err := run()
	if err != nil {
		log.Fatalf("error: %+v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (.yaml or .toml), searched in XDG config dirs by default")
	debug := flag.Bool("debug", false, "enable debug logging")
	display := flag.String("display", "", "X display to connect to")
	fontPath := flag.String("font", "", "path to a TrueType/OpenType font")
	trayBackend := flag.String("tray", "", "tray backend: xembed, sni or none")
	evdevXmlPath := flag.String("evdev-xml-path", "", "path to evdev.xml")
	historyBackend := flag.String("history", "", "switch history backend: none, memory, json or sqlite")
	flag.Parse()

	log, err := newLogger(*debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	xgb.Logger = zap.NewStdLog(log.Desugar().Named("xgb"))
	xgbutil.Logger = zap.NewStdLog(log.Desugar().Named("xgbutil"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	overrideString(&cfg.Display, *display)
	overrideString(&cfg.FontPath, *fontPath)
	overrideString(&cfg.Tray.Backend, *trayBackend)
	overrideString(&cfg.EvdevXMLPath, *evdevXmlPath)
	overrideString(&cfg.History.Backend, *historyBackend)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	font, err := glyph.LoadFont(cfg.FontPath, xdg.FontDirs)
	if err != nil {
		return err
	}

	renderer, err := glyph.NewRenderer(font, glyph.Options{
		Size:       cfg.Icon.Size,
		FontSize:   cfg.Icon.FontSize,
		DPI:        glyph.DefaultOptions().DPI,
		Background: cfg.Icon.Background.Std(),
		Foreground: cfg.Icon.Foreground.Std(),
	}, cfg.GlyphCacheSize)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	defer renderer.Close()

	rules, err := xkblayouts.ParseLayouts(cfg.EvdevXMLPath)
	if err != nil {
		log.Warnw("could not read layout registry, guessing labels from group names",
			"path", cfg.EvdevXMLPath, "error", err)
		rules = nil
	}

	listener, err := x11.Connect(ctx, x11.Options{
		Display: cfg.Display,
		Timeout: cfg.ConnectTimeout.Std(),
		Labeler: xkblayouts.NewLabeler(rules, cfg.Labels),
		Log:     log,
	})
	if err != nil {
		return err
	}
	defer listener.Close()

	layouts, err := listener.EnumerateLayouts()
	if err != nil {
		return err
	}
	for _, l := range layouts {
		log.Debugw("keyboard layout", "index", l.Index, "name", l.Name, "label", l.Label, "locale", l.Locale)
	}

	updater := xkbtray.NewUpdater(log)
	defer updater.Close()

	err = installTray(ctx, updater, cfg, log)
	if err != nil {
		return err
	}

	hist, err := openHistory(cfg, log)
	if err != nil {
		return fmt.Errorf("open switch history: %w", err)
	}
	defer hist.close()

	indicator := xkbtray.NewIndicator(listener, xkbtray.NewRegistry(layouts), renderer, updater, hist.recorder, log)

	log.Infow("started xkbtray", "layouts", layouts.Labels(), "tray", cfg.Tray.Backend)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 3)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := indicator.Run(ctx)
		errChan <- fmt.Errorf("run indicator: %w", err)
	}()

	go func() {
		defer wg.Done()
		err := systemdNotifyLoop(ctx, layouts.Labels())
		if err != nil {
			errChan <- fmt.Errorf("systemd notify: %w", err)
		}
	}()

	if hist.loop != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := hist.loop(ctx)
			if err != nil {
				errChan <- fmt.Errorf("save switch history: %w", err)
			}
		}()
	}

	err = <-errChan
	cancel()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}

func overrideString(dst *string, flagValue string) {
	if flagValue != "" {
		*dst = flagValue
	}
}

func newTray(cfg *config.Config, log *zap.SugaredLogger) xkbtray.Tray {
	switch cfg.Tray.Backend {
	case config.TraySNI:
		return sni.New("xkbtray", log)
	case config.TrayNone:
		return headless.New(log)
	default:
		return xembed.New(xembed.Options{
			Display:      cfg.Display,
			Timeout:      cfg.ConnectTimeout.Std(),
			Size:         cfg.Icon.Size,
			DockRetries:  cfg.Tray.DockRetries,
			DockInterval: cfg.Tray.DockInterval.Std(),
			Log:          log,
		})
	}
}

// installTray falls back to logging only when tray.on_unavailable allows it.
func installTray(ctx context.Context, updater *xkbtray.Updater, cfg *config.Config, log *zap.SugaredLogger) error {
	err := updater.Install(ctx, newTray(cfg, log))

	var unavailable *xkbtray.TrayUnavailableError
	if errors.As(err, &unavailable) && cfg.Tray.OnUnavailable == config.OnUnavailableHeadless {
		log.Warnw("no tray host, continuing without an icon", "error", err)
		return updater.Install(ctx, headless.New(log))
	}

	return err
}

type history struct {
	recorder xkbtray.SwitchRecorder
	loop     func(ctx context.Context) error
	closer   func() error
}

func (h *history) close() {
	if h.closer != nil {
		_ = h.closer()
	}
}

func openHistory(cfg *config.Config, log *zap.SugaredLogger) (*history, error) {
	switch cfg.History.Backend {
	case config.HistoryMemory:
		return &history{recorder: memory.NewSwitchStore()}, nil

	case config.HistoryJSON:
		path, err := cfg.HistoryPath()
		if err != nil {
			return nil, err
		}
		store, err := json.NewSwitchStore(path, cfg.History.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("create json history: %w", err)
		}
		log.Debugw("recording layout switches", "backend", "json", "path", path)
		return &history{recorder: store, loop: store.SaveLooper}, nil

	case config.HistorySQLite:
		path, err := cfg.HistoryPath()
		if err != nil {
			return nil, err
		}
		store, err := sqlite.NewSwitchStore(path, log)
		if err != nil {
			return nil, fmt.Errorf("create sqlite history: %w", err)
		}
		log.Debugw("recording layout switches", "backend", "sqlite", "path", path)
		return &history{recorder: store, closer: store.Close}, nil

	default:
		return &history{}, nil
	}
}

func systemdNotifyLoop(ctx context.Context, labels []string) error {
	// tell systemd that we're ready
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		return fmt.Errorf("notify systemd: %w", err)
	}
	if !supported {
		return nil
	}

	_, _ = daemon.SdNotify(false, "STATUS=Watching layouts "+strings.Join(labels, ", "))

	t, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("check watchdog: %w", err)
	}
	// if watchdog is not enabled, we don't need to notify it
	if t == 0 {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-time.After(t / 2):
			_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			if err != nil {
				return fmt.Errorf("notify watchdog: %w", err)
			}
		}
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	loggerConfig := zap.NewDevelopmentConfig()

	loggerConfig.OutputPaths = []string{"stdout"}
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.Sugar(), nil
}
