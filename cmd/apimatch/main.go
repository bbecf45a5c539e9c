package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

var (
	configPath  = flag.String("config", defaultConfigPath, "Path to config file")
	initCfg     = flag.Bool("init-config", false, "Write the default config to -config and exit")
	catalogPath = flag.String("catalog", "", "Catalog manifest (JSON or YAML); overrides catalog.path")
	stepsPath   = flag.String("steps", "", "Design steps YAML file")
	stepsDB     = flag.String("steps-db", "", "SQLite database holding design_steps")
	template    = flag.Int("template", 0, "Template id to load from -steps-db")
	threshold   = flag.Float64("threshold", -1, "Confidence threshold in [0,1]; overrides resolver.threshold")
	format      = flag.String("format", "", "Report format: text, tsv or json")
	out         = flag.String("out", "", "Write the report to this file instead of stdout")
	watch       = flag.Bool("watch", false, "Keep watching source paths and re-resolve changed files")
	runs        = flag.Int("history", 0, "Print the N most recent persisted runs and exit")
	ui          = flag.Bool("ui", false, "Watch source paths in a terminal dashboard")
	mcp         = flag.Bool("mcp", false, "Serve the apimatch tool over stdio (MCP JSON-RPC)")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	version     = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("apimatch v%s\n", VERSION)
		os.Exit(0)
	}

	if *initCfg {
		if err := initConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "apimatch: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote default config to %s\n", *configPath)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	output := os.Stderr
	if *ui {
		// Keep logs from corrupting the dashboard.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
			output = f
		} else {
			fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	opts := options{
		ConfigPath: *configPath,
		Catalog:    *catalogPath,
		StepsPath:  *stepsPath,
		StepsDB:    *stepsDB,
		TemplateID: *template,
		Threshold:  *threshold,
		Format:     *format,
		Out:        *out,
		Watch:      *watch,
		HistoryN:   *runs,
		UI:         *ui,
		MCP:        *mcp,
		Sources:    flag.Args(),
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		slog.Error("apimatch failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "apimatch", "apimatch.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "apimatch", "apimatch.log")
	}

	return "apimatch.log"
}
