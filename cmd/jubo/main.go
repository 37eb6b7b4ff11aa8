package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"jubo/internal/commands"
	"jubo/internal/config"
	"jubo/internal/gemini"
	"jubo/internal/liturgical"
	appLog "jubo/internal/log"
	"jubo/internal/sheet"
	"jubo/internal/store"
	"jubo/internal/suggest"
	"jubo/internal/watch"
	"jubo/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

func main() {
	// Subcommands before flags: `jubo hash-password [...]`.
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		commands.HashPassword(os.Args[2:])
		return
	}

	appLog.Info("jubo starting", "version", "0.1.0")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"cache_ttl_minutes", conf.CacheTTLMinutes,
		"api_keys", len(conf.Gemini.APIKeys),
		"model", conf.Gemini.Model,
		"liturgical_ics", len(conf.LiturgicalICS),
	)

	loc := resolveLocationOrLocal(conf.Timezone)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// Snapshot store keeps the last good table across restarts. Losing it
	// is not fatal; the dashboard just has no offline fallback.
	var snap sheet.Snapshotter
	if err := os.MkdirAll(conf.DataDir, 0o700); err != nil {
		appLog.Error("failed to create data dir; snapshot disabled", err, "dir", conf.DataDir)
	} else {
		st, err := store.Open(filepath.Join(conf.DataDir, "snapshot.db"))
		if err != nil {
			appLog.Error("failed to open snapshot store; snapshot disabled", err)
		} else {
			defer st.Close()
			snap = st
		}
	}

	fetcher := sheet.NewFetcher(filepath.Join(conf.DataDir, "sheet-cache"))
	loader := sheet.NewLoader(fetcher, snap, conf.SheetCSVURL,
		time.Duration(conf.CacheTTLMinutes)*time.Minute, loc)

	// Gemini credential pool. Init picks the starting key without a
	// generation call; a failure only disables the suggestion view.
	pool := gemini.NewPool(conf.Gemini.APIKeys, conf.Gemini.Model, nil)
	if len(conf.Gemini.APIKeys) > 0 {
		if err := pool.Init(ctx); err != nil {
			appLog.Error("gemini init failed; suggestions disabled until config reload", err)
		}
	} else {
		appLog.Warn("no Gemini API keys configured; suggestion view disabled")
	}

	composer := suggest.New(pool, liturgicalSources(conf), loc)

	// Hot-reload credentials and model on config file changes.
	watcher := watch.New(flags.configPath, func(c *config.Config) {
		pool.SetCredentials(c.Gemini.APIKeys, c.Gemini.Model)
	})
	if err := watcher.Start(ctx); err != nil {
		appLog.Error("config watcher failed to start; reload requires restart", err)
	}

	// Warm the table once and then keep it fresh on the cron schedule.
	if _, err := loader.Load(ctx, false); err != nil {
		appLog.Error("initial table load failed; views disabled until source recovers", err)
	}

	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		if _, err := loader.Load(ctx, true); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh cron spec", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(conf, loader, composer, loc).Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}

	appLog.Info("jubo exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/jubo/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

func liturgicalSources(conf *config.Config) []liturgical.Source {
	out := make([]liturgical.Source, 0, len(conf.LiturgicalICS))
	for _, ics := range conf.LiturgicalICS {
		if ics.URL == "" {
			continue
		}
		id := ics.ID
		if id == "" {
			id = ics.Name
		}
		out = append(out, liturgical.Source{ID: id, Name: ics.Name, URL: ics.URL})
	}
	return out
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}
