package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mwantia/folders"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/cmd"
	"github.com/mwantia/folders/cmd/builtin"
	"github.com/mwantia/folders/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultConfigFile = "folders.yaml"

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func main() {
	configFile := flag.String("config", defaultConfigFile, "Path to the configuration file")
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		explicit = explicit || f.Name == "config"
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, *configFile, explicit, flag.Args())
	stop()
	os.Exit(code)
}

func run(ctx context.Context, configFile string, explicit bool, args []string) int {
	cfg, err := loadConfig(configFile, explicit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse log level: %v\n", err)
		return 1
	}

	opts := []log.LoggerOption{log.WithWriter(os.Stderr)}
	if cfg.Log.File != "" {
		opts = append(opts, log.WithFile(cfg.Log.File))
	}
	if cfg.Log.JSON {
		opts = append(opts, log.WithJSON())
	}
	logger := log.NewLogger("folders", level, opts...)
	defer logger.Close()

	settings := &backend.Settings{Logger: logger.Named("backend")}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		settings.Metrics = backend.NewPrometheusMetrics(reg)
		if cfg.Metrics.Listen != "" {
			serveMetrics(cfg.Metrics.Listen, reg, logger)
		}
	}

	registry, err := folders.NewRegistry()
	if err != nil {
		logger.Error("Failed to create registry: %v", err)
		return 1
	}

	fsys := folders.New(logger)
	defer func() {
		if err := fsys.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to close mounts: %v", err)
		}
	}()

	for _, mount := range cfg.Mounts {
		if err := fsys.MountConfigured(ctx, registry, settings, mount); err != nil {
			logger.Error("Failed to mount '%s': %v", mount.Path, err)
			return 1
		}
	}

	manager := cmd.NewManager(fsys)
	if err := builtin.Register(manager); err != nil {
		logger.Error("Failed to register commands: %v", err)
		return 1
	}

	stdio := cmd.IO{In: os.Stdin, Out: os.Stdout}
	if len(args) > 0 {
		return execute(ctx, manager, stdio, args)
	}
	return shell(ctx, manager, stdio)
}

func execute(ctx context.Context, manager *cmd.Manager, stdio cmd.IO, args []string) int {
	code, err := manager.Execute(ctx, stdio, args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
		if errors.Is(err, cmd.ErrUsage) {
			manager.Help(cmd.IO{Out: os.Stderr})
		}
	}
	return code
}

// shell runs one command per input line until EOF or "exit".
func shell(ctx context.Context, manager *cmd.Manager, stdio cmd.IO) int {
	scanner := bufio.NewScanner(stdio.In)
	code := 0
	for {
		fmt.Fprint(os.Stderr, "folders> ")
		if !scanner.Scan() || ctx.Err() != nil {
			return code
		}

		args := strings.Fields(scanner.Text())
		switch {
		case len(args) == 0:
			continue
		case args[0] == "exit":
			return code
		case args[0] == "help":
			manager.Help(stdio)
			continue
		}
		// Commands in the shell never read stdin, it carries the next line.
		code = execute(ctx, manager, cmd.IO{Out: stdio.Out}, args)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	go func() {
		logger.Info("Serving metrics on '%s'", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("Metrics listener stopped: %v", err)
		}
	}()
}
