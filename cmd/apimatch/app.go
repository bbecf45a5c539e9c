package main

import (
	"apimatch/internal/core/app"
	"apimatch/internal/core/config"
	"apimatch/internal/core/ports"
	"apimatch/internal/data/history"
	"apimatch/internal/data/steps"
	"apimatch/internal/engine/catalog"
	"apimatch/internal/mcp/runtime"
	"apimatch/internal/mcp/transport"
	"apimatch/internal/shared/observability"
	"apimatch/internal/shared/util"
	"apimatch/internal/ui/cli"
	"apimatch/internal/ui/report"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultConfigPath = "./apimatch.toml"

// options are the command-line settings layered over the config file.
type options struct {
	ConfigPath string
	Catalog    string
	StepsPath  string
	StepsDB    string
	TemplateID int
	Threshold  float64
	Format     string
	Out        string
	Watch      bool
	HistoryN   int
	UI         bool
	MCP        bool
	Sources    []string
}

// loadConfig reads the config file, then env overrides, then flags. A missing
// default config file falls back to built-in defaults; an explicit one must exist.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	switch {
	case err == nil:
		cfg.ResolveRelative(filepath.Dir(opts.ConfigPath))
	case errors.Is(err, fs.ErrNotExist) && opts.ConfigPath == defaultConfigPath:
		cfg = config.Default()
	default:
		return nil, err
	}

	config.ApplyEnvOverrides(cfg)
	applyFlags(cfg, opts)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initConfig writes the built-in defaults to path. An existing file is never
// overwritten.
func initConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return config.Write(path, config.Default())
}

func applyFlags(cfg *config.Config, opts options) {
	if opts.Catalog != "" {
		cfg.Catalog.Path = opts.Catalog
	}
	if opts.StepsPath != "" {
		cfg.Steps.Path = opts.StepsPath
	}
	if opts.StepsDB != "" {
		cfg.Steps.DB = opts.StepsDB
	}
	if opts.TemplateID > 0 {
		cfg.Steps.TemplateID = opts.TemplateID
	}
	if opts.Threshold >= 0 {
		cfg.Resolver.Threshold = opts.Threshold
	}
	if opts.Format != "" {
		cfg.Output.Format = strings.ToLower(strings.TrimSpace(opts.Format))
	}
	if opts.Out != "" {
		cfg.Output.Path = opts.Out
	}
	if len(opts.Sources) > 0 {
		cfg.Sources.Paths = append([]string(nil), opts.Sources...)
	}
}

// run executes one invocation. Only catalog and input failures are returned;
// per-item failures end up in the report.
func run(ctx context.Context, cfg *config.Config, opts options, stdout io.Writer) error {
	var store *history.Store
	if cfg.History.Enabled || opts.HistoryN > 0 {
		s, err := history.Open(cfg.History.Path)
		if err != nil {
			if opts.HistoryN > 0 {
				return err
			}
			slog.Warn("history disabled", "path", cfg.History.Path, "error", err)
		} else {
			store = s
			defer store.Close()
		}
	}

	if opts.HistoryN > 0 {
		return printRuns(store, opts.HistoryN, cfg.Output.Format, stdout)
	}

	graph, err := catalog.OpenFormat(cfg.Catalog.Format, cfg.Catalog.Path, cfg.Catalog.PurposesDB)
	if err != nil {
		return err
	}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName: cfg.Observability.ServiceName,
			Version:     VERSION,
			Endpoint:    cfg.Observability.OTLPEndpoint,
		})
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}
	}

	deps := app.Dependencies{}
	if store != nil {
		deps.History = store
	}
	svc, err := app.NewWithDependencies(cfg, graph, deps)
	if err != nil {
		return err
	}

	if cfg.Observability.Enabled {
		srv := observability.NewServer(fmt.Sprintf(":%d", cfg.Observability.Port), app.NewHealthService(svc))
		if err := srv.Start(ctx); err != nil {
			slog.Warn("observability server disabled", "error", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Stop(sctx)
			}()
		}
	}

	if opts.MCP {
		return serveMCP(ctx, cfg, svc)
	}

	emit := func(rep *app.Report) error {
		data, err := report.Render(rep, cfg.Output.Format)
		if err != nil {
			return err
		}
		if cfg.Output.Path != "" {
			return util.WriteFileWithDirs(cfg.Output.Path, data, 0o644)
		}
		_, err = stdout.Write(data)
		return err
	}

	resolved := false
	src := stepSource(cfg)
	if src != nil {
		rep, err := svc.LoadAndResolve(ctx, src)
		if err != nil {
			return err
		}
		if err := emit(rep); err != nil {
			return err
		}
		resolved = true
	}

	// Configured source paths only apply when no steps were requested.
	paths := cfg.Sources.Paths
	if src != nil && len(opts.Sources) == 0 && !opts.Watch && !opts.UI {
		paths = nil
	}
	if len(paths) > 0 {
		if opts.UI {
			return cli.RunUI(ctx, svc, paths)
		}
		if opts.Watch {
			return svc.Watch(ctx, paths, func(rep *app.Report) {
				if err := emit(rep); err != nil {
					slog.Error("failed to write report", "error", err)
				}
			})
		}
		rep, err := svc.ResolveSources(ctx, paths)
		if err != nil {
			return err
		}
		if err := emit(rep); err != nil {
			return err
		}
		resolved = true
	}

	if !resolved {
		return fmt.Errorf("nothing to resolve: pass -steps, -steps-db or source paths")
	}
	return nil
}

// serveMCP answers tool calls on stdin/stdout until the stream ends or ctx
// is cancelled.
func serveMCP(ctx context.Context, cfg *config.Config, svc *app.Service) error {
	adapter, err := transport.NewStdio(cfg.MCP.RateLimit)
	if err != nil {
		return err
	}
	server, err := runtime.New(cfg, runtime.Dependencies{Service: svc, Logger: slog.Default()}, adapter)
	if err != nil {
		return err
	}
	defer server.Stop()
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func stepSource(cfg *config.Config) ports.StepSource {
	switch {
	case cfg.Steps.Path != "":
		return steps.FileSource{Path: cfg.Steps.Path}
	case cfg.Steps.DB != "":
		return steps.DBSource{Path: cfg.Steps.DB, TemplateID: cfg.Steps.TemplateID}
	default:
		return nil
	}
}

func printRuns(store *history.Store, n int, format string, stdout io.Writer) error {
	runs, err := store.LoadRuns(n)
	if err != nil {
		return err
	}
	var data []byte
	if format == report.FormatJSON {
		data, err = report.RenderRunsJSON(runs)
	} else {
		data, err = report.RenderRunsTSV(runs)
	}
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}
