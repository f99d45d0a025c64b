// Command hibiki addresses remote compute processes with free-text requests:
// it discovers what a process can do, matches the request to a handler,
// assesses the risk, and executes through the message gateway.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibikihq/hibiki/common/environment"
	"github.com/hibikihq/hibiki/internal/hibiki/batch"
	"github.com/hibikihq/hibiki/internal/hibiki/commands"
	"github.com/hibikihq/hibiki/internal/hibiki/config"
	"github.com/hibikihq/hibiki/internal/hibiki/dispatch"
	"github.com/hibikihq/hibiki/internal/hibiki/registry"
	"github.com/hibikihq/hibiki/internal/hibiki/store"
	"github.com/hibikihq/hibiki/internal/hibiki/transport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "hibiki: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(environment.StringOr("HIBIKI_CONFIG", "hibiki.yaml"))
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	gateway := transport.NewGateway(cfg.Gateway.URL)
	discoverer := registry.NewDiscoverer(gateway,
		registry.WithTimeout(cfg.Discovery.Timeout),
		registry.WithLogger(logger),
	)
	cache := registry.NewCache(discoverer,
		registry.WithTTL(cfg.Cache.TTL),
		registry.WithCacheLogger(logger),
	)

	var st *store.Store
	execOpts := []dispatch.Option{dispatch.WithLogger(logger)}
	if cfg.Database.Path != "" {
		st, err = store.New(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		execOpts = append(execOpts, dispatch.WithRecorder(st))
	}

	executor := dispatch.New(cache, gateway, execOpts...)
	orchestrator := batch.New(executor, gateway, batch.WithLogger(logger))

	router := commands.NewRouter()
	handlers := commands.NewHandlers(executor, orchestrator, st, logger)
	handlers.RegisterAll(router)

	if len(args) == 0 || args[0] == "help" {
		fmt.Printf("usage: hibiki <command> [args]\n\ncommands:\n%s", router.Usage())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := router.Route(ctx, args)
	if err != nil {
		return err
	}
	fmt.Print(ensureNewline(out))
	return nil
}

// newLogger builds the process-wide text logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func ensureNewline(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}
