package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coreapp "ftree/internal/core/app"
	"ftree/internal/core/config"
	"ftree/internal/core/ports"
	"ftree/internal/engine/graph"
	"ftree/internal/engine/unit"
)

func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr, coreServiceFactory{})
}

func run(args []string, stdout, stderr io.Writer, factory serviceFactory) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "ftree v%s\n", versionString)
		return 0
	}

	configureLogging(stderr, "info", opts.verbose)
	cfg, cfgPath, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	configureLogging(stderr, cfg.Log.Level, opts.verbose)
	slog.Debug("configuration ready", "path", cfgPath, "roots", cfg.Roots, "store", cfg.Store.Path)

	svc, health, err := initializeService(cfg, factory)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			slog.Error("failed to close app", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Load(ctx); err != nil {
		slog.Error("failed to load index", "path", cfg.Store.Path, "error", err)
		return 1
	}

	if cfg.Metrics.Address != "" {
		server := NewObservabilityServer(cfg.Metrics.Address, health)
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "addr", cfg.Metrics.Address, "error", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Stop(shutdownCtx)
		}()
	}

	if err := runCommand(ctx, svc, cfg, opts, stdout); err != nil {
		fmt.Fprintln(stderr, "error:", err.Error())
		return 1
	}
	return 0
}

func runCommand(ctx context.Context, svc ports.TreeService, cfg *config.Config, opts cliOptions, stdout io.Writer) error {
	switch opts.command {
	case "scan":
		return runScan(ctx, svc, cfg, opts, stdout)
	case "watch":
		return runWatch(ctx, svc, stdout)
	}

	if err := ensureIndexed(ctx, svc); err != nil {
		return err
	}

	switch opts.command {
	case "needs", "needed-by":
		query := svc.NeedsFile
		if opts.command == "needed-by" {
			query = svc.NeededByFile
		}
		files, err := query(ctx, opts.args[0], opts.level)
		if err != nil {
			return err
		}
		printStrings(stdout, files)
		return nil

	case "calls", "called-by":
		scope, err := unit.Parse(opts.args[0])
		if err != nil {
			return err
		}
		query := svc.CallsScopes
		if opts.command == "called-by" {
			query = svc.CalledByScope
		}
		scopes, err := query(ctx, scope, opts.level)
		if err != nil {
			return err
		}
		printList(stdout, scopes)
		return nil

	case "under":
		scopes, err := parseScopes(opts.args)
		if err != nil {
			return err
		}
		under, err := svc.IsUnderStopScopes(ctx, scopes[0], scopes[1:], graph.StopOptions{
			IncludeInterfaces: opts.interfaces,
			IncludeStopScopes: opts.includeStop,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, under)
		return nil

	case "plot-exec", "plot-compil":
		kind := coreapp.GraphExecution
		if opts.command == "plot-compil" {
			kind = coreapp.GraphCompilation
		}
		req := ports.PlotRequest{
			Graph:   kind,
			Central: opts.args[0],
			Output:  opts.args[1],
			Upper:   resolveDepth(opts.upper, cfg.Output.Upper()),
			Lower:   resolveDepth(opts.lower, cfg.Output.Lower()),
		}
		if err := svc.Plot(ctx, req); err != nil {
			return err
		}
		printStatus(stdout, "wrote %s", req.Output)
		return nil

	case "cycles":
		groups, err := svc.Cycles(ctx, opts.graph)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			printStatus(stdout, "no cycles in the %s graph", opts.graph)
			return nil
		}
		for _, g := range groups {
			fmt.Fprintln(stdout, strings.Join(g, " "))
		}
		return nil

	case "trace":
		chain, ok, err := svc.Trace(ctx, opts.args[0], opts.args[1])
		if err != nil {
			return err
		}
		if !ok {
			printStatus(stdout, "%s does not reach %s", opts.args[0], opts.args[1])
			return nil
		}
		fmt.Fprintln(stdout, strings.Join(chain, " -> "))
		return nil
	}
	return fmt.Errorf("unknown command %q", opts.command)
}

func runScan(ctx context.Context, svc ports.TreeService, cfg *config.Config, opts cliOptions, stdout io.Writer) error {
	res, err := svc.RunScan(ctx, ports.ScanRequest{Paths: opts.args, Full: opts.full})
	if err != nil {
		return err
	}
	if !cfg.Store.AutosaveEnabled() {
		if err := svc.Save(ctx); err != nil {
			return err
		}
	}
	printSummary(stdout, fmt.Sprintf("Scanned %d files", res.FilesScanned), res.Summary, res.Failed)
	return nil
}

// runWatch brings the index up to date, then applies file changes until
// ctx is cancelled.
func runWatch(ctx context.Context, svc ports.TreeService, stdout io.Writer) error {
	res, err := svc.RunScan(ctx, ports.ScanRequest{})
	if err != nil {
		return err
	}
	printSummary(stdout, fmt.Sprintf("Scanned %d files", res.FilesScanned), res.Summary, res.Failed)

	svc.SetUpdateHandler(func(s ports.Summary) {
		printSummary(stdout, "Update", s, nil)
	})
	if err := svc.StartWatcher(); err != nil {
		return err
	}
	printStatus(stdout, "watching for changes, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

// ensureIndexed scans the roots when no stored index was loaded.
func ensureIndexed(ctx context.Context, svc ports.TreeService) error {
	if svc.Summary(ctx).Files > 0 {
		return nil
	}
	slog.Info("index is empty, scanning roots")
	_, err := svc.RunScan(ctx, ports.ScanRequest{})
	return err
}

func parseScopes(raw []string) ([]unit.Path, error) {
	out := make([]unit.Path, 0, len(raw))
	for _, r := range raw {
		p, err := unit.Parse(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func resolveDepth(flagValue, configured int) int {
	if flagValue == configDepth {
		return configured
	}
	return flagValue
}

// loadConfig uses the explicit path when given, which must exist, and the
// project's ftree.toml otherwise. Without a file the defaults apply.
func loadConfig(explicit string) (*config.Config, string, error) {
	path, found, err := config.FindConfigFile(explicit)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(explicit) != "" && !found {
		return nil, "", fmt.Errorf("config file %q not found", explicit)
	}
	if found {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	cfg, err := config.LoadOrDefault(path)
	return cfg, "", err
}

func configureLogging(w io.Writer, level string, verbose bool) {
	logLevel, _ := config.ParseLevel(level)
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})))
}
