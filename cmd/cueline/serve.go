package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/cueline/internal/app"
	"github.com/MrWong99/cueline/internal/config"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the rehearsal HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), ctx, cfg, cmd.OutOrStdout())
		},
	}
}

func runServe(ctx context.Context, cc *commandContext, cfg *config.Config, out io.Writer) error {
	level := new(slog.LevelVar)
	logger, closeLog := newLogger(cfg.Server, level, os.Stderr)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("cueline starting",
		"version", version,
		"config", cc.configPath(),
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg.STT)

	printStartupSummary(out, cfg)

	application, err := app.New(ctx, cfg, reg, app.WithVersion(version))
	if err != nil {
		return err
	}

	if w := startWatcher(cc, level); w != nil {
		defer w.Stop()
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("goodbye")
	return runErr
}

// startWatcher polls the config file and applies log level changes. Other
// changes are reported and wait for a restart. It returns nil when there is
// no file to watch.
func startWatcher(cc *commandContext, level *slog.LevelVar) *config.Watcher {
	path := cc.configPath()
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if len(d.RestartRequired) > 0 {
			slog.Warn("config changed, restart to apply", "sections", d.RestartRequired)
		}
	}, config.WithLoadOptions(config.WithEnv(cc.lookupEnv)))
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
		return nil
	}
	return w
}

func printStartupSummary(out io.Writer, cfg *config.Config) {
	rows := [][]string{
		{"Listen addr", cfg.Server.ListenAddr},
		{"Script", cfg.Script.Path},
		{"Audio", cfg.Audio.Path},
		{"Scorer", cfg.Match.Scorer},
		{"STT", providerSummary(cfg.STT.ProviderEntry)},
		{"STT fallbacks", strconv.Itoa(len(cfg.STT.Fallbacks))},
		{"WS bridge", orDisabled(cfg.STT.WSURL)},
		{"Static dir", orDisabled(cfg.Server.StaticDir)},
		{"Metrics", orDisabled(metricsPath(cfg.Observe.MetricsPath))},
	}
	fmt.Fprintln(out, renderTable([]string{"cueline", version}, rows, nil))
}

func providerSummary(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case e.Model != "":
		return e.Name + " / " + e.Model
	case e.BaseURL != "":
		return e.Name + " @ " + e.BaseURL
	}
	return e.Name
}

func metricsPath(p string) string {
	if p == "-" {
		return ""
	}
	return p
}

func orDisabled(v string) string {
	if v == "" {
		return "(disabled)"
	}
	return v
}
