package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/arbscan/config"
	"github.com/alejandrodnm/arbscan/internal/adapters/analyzer"
	"github.com/alejandrodnm/arbscan/internal/adapters/coinmarket"
	"github.com/alejandrodnm/arbscan/internal/adapters/keystore"
	"github.com/alejandrodnm/arbscan/internal/adapters/notify"
	"github.com/alejandrodnm/arbscan/internal/adapters/storage"
	"github.com/alejandrodnm/arbscan/internal/detector"
	"github.com/alejandrodnm/arbscan/internal/domain"
	"github.com/alejandrodnm/arbscan/internal/ports"
	"github.com/alejandrodnm/arbscan/internal/pricesource"
	"github.com/alejandrodnm/arbscan/internal/scanner"
	"github.com/alejandrodnm/arbscan/internal/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one scan and exit")
	serve := flag.Bool("serve", false, "expose the REST API instead of the scan loop")
	modeFlag := flag.String("mode", "", "scan mode: CEX|DEX (overrides config)")
	table := flag.Bool("table", false, "print full table (default: compact 1-line)")
	playback := flag.Bool("playback", false, "with -once: play the simulated execution of the top opportunity")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("failed to load config", "err", err, "path", *configPath)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	modeStr := cfg.Scanner.Mode
	if *modeFlag != "" {
		modeStr = *modeFlag
	}
	mode, err := domain.ParseMode(modeStr)
	if err != nil {
		slog.Error("invalid scan mode", "err", err)
		os.Exit(1)
	}

	slog.Info("arbscan starting",
		"config", *configPath,
		"mode", mode,
		"interval", cfg.ScanInterval(),
		"once", *once,
		"serve", *serve,
	)

	provider := coinmarket.NewClient(cfg.Provider.BaseURL, cfg.ProviderTimeout(), slog.Default())
	ks := keystore.NewFile(cfg.Provider.CredentialFile)
	source := pricesource.New(provider, slog.Default())

	var scorer ports.Scorer = detector.NewRuleScorerWithNotional(cfg.Scanner.NotionalUSD)
	if cfg.Analyzer.Endpoint != "" {
		scorer = analyzer.New(cfg.Analyzer.Endpoint, cfg.Analyzer.APIKey, 0, slog.Default())
	}
	det := detector.New(scorer, slog.Default())

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewConsole(*table)

	sc := scanner.New(source, det, scanner.Options{
		Notifier: notifier,
		Storage:  store,
		Keystore: ks,
		Log:      slog.Default(),
	})
	sc.SwitchMode(mode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *once:
		runOnce(ctx, sc, notifier, *playback)
	case *serve:
		srv := server.New(sc, store, ks, slog.Default())
		if interval := cfg.ScanInterval(); interval > 0 {
			go scanLoop(ctx, sc, interval)
		}
		if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
			slog.Error("server exited with error", "err", err)
			os.Exit(1)
		}
	default:
		interval := cfg.ScanInterval()
		if interval <= 0 {
			interval = 30 * time.Second
		}
		scanLoop(ctx, sc, interval)
	}

	slog.Info("arbscan stopped cleanly")
}

// runOnce ejecuta un scan síncrono y, opcionalmente, reproduce la
// ejecución simulada de la mejor oportunidad.
func runOnce(ctx context.Context, sc *scanner.Scanner, notifier *notify.Console, playback bool) {
	if !sc.Scan(ctx) {
		slog.Error("scan rejected: already in progress")
		os.Exit(1)
	}

	st := sc.Status()
	if playback && len(st.Opportunities) > 0 {
		notifier.PrintExecutionPlan(ctx, st.Opportunities[0])
	}
}

// scanLoop ejecuta un scan inmediato y luego uno por tick hasta que el
// contexto se cancele. Un tick que encuentra el scan anterior en vuelo
// se salta sin encolar.
func scanLoop(ctx context.Context, sc *scanner.Scanner, interval time.Duration) {
	sc.Scan(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sc.StartScan(ctx) {
				slog.Debug("previous scan still in flight, skipping tick")
			}
		}
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
