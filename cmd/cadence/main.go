package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hpungsan/cadence/internal/cache"
	"github.com/hpungsan/cadence/internal/config"
	"github.com/hpungsan/cadence/internal/db"
	"github.com/hpungsan/cadence/internal/mcp"
	"github.com/hpungsan/cadence/internal/observe"
	"github.com/hpungsan/cadence/internal/ops"
	"github.com/hpungsan/cadence/internal/remote"
	"github.com/hpungsan/cadence/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "mcp": true,
	"events": true, "density": true, "besttime": true, "windows": true,
	"create": true, "update": true, "reschedule": true, "delete": true,
	"slots": true, "import-recs": true, "export": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___ __ _  __| | ___ _ __   ___ ___
  / __/ _' |/ _' |/ _ \ '_ \ / __/ _ \
 | (_| (_| | (_| |  __/ | | | (_|  __/
  \___\__,_|\__,_|\___|_| |_|\___\___|

  Content calendar and scheduling engine

  Usage: cadence <command> [options]
         cadence --help

  MCP server mode requires piped input.`)
}

// runtime is everything a command needs, built once from config.
type runtime struct {
	cfg   *config.Config
	log   zerolog.Logger
	store store.PostStore
	coord *ops.Coordinator

	closers []func() error
}

// Close releases the database and Redis connections.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// loadConfig reads ~/.cadence and the nearest repo .cadence config, then
// overlays CADENCE_* variables. A .env file in the working directory is
// loaded first when present.
func loadConfig(baseDir string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes to stderr so stdout stays free for JSON output and the
// MCP stdio transport.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if isTerminal() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}

// openRuntime wires the post store, snapshot store and coordinator.
func openRuntime(ctx context.Context, baseDir string, cfg *config.Config, logger zerolog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: logger}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	if cfg.StoreURL != "" {
		client, err := remote.New(cfg.StoreURL,
			remote.WithToken(cfg.StoreToken),
			remote.WithTimeout(cfg.RequestTimeout()),
			remote.WithRetries(cfg.RetryMax),
		)
		if err != nil {
			return nil, err
		}
		rt.store = client
		logger.Debug().Str("url", cfg.StoreURL).Msg("using remote post store")
	} else {
		database, err := db.Init(baseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		db.ConfigurePool(database, cfg)
		rt.closers = append(rt.closers, database.Close)
		rt.store = store.NewLocal(database, store.WithMaxChars(cfg.ContentMaxChars))
	}

	var snapshots cache.Snapshots = cache.NewMemory(cfg.SnapshotTTL())
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, client.Close)
		snapshots = cache.NewRedis(client, cfg.SnapshotTTL())
	}

	rt.coord = ops.New(rt.store, ops.Options{
		Duration:  cfg.EventDuration(),
		Location:  loc,
		MaxChars:  cfg.ContentMaxChars,
		MaxAge:    cfg.CacheMaxAge(),
		Hook:      observe.Zerolog(logger),
		Snapshots: snapshots,
	})
	return rt, nil
}

// warnUnknownDisabled logs disabled_tools / disabled_types entries that name
// nothing.
func warnUnknownDisabled(cfg *config.Config, logger zerolog.Logger) {
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn().Strs("tools", unknown).Msg("unknown tools in disabled_tools")
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.Warn().Strs("types", unknown).Msg("unknown types in disabled_types")
	}
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before any store is opened
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && !isCLIMode() && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'cadence --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".cadence")

	cfg, err := loadConfig(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	rt, err := openRuntime(context.Background(), baseDir, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if isCLIMode() {
		err = newCLIApp(rt).Run(os.Args)
	} else {
		// MCP server mode (default)
		warnUnknownDisabled(cfg, logger)
		err = mcp.Run(rt.coord, cfg, Version)
	}
	if cerr := rt.Close(); cerr != nil {
		logger.Warn().Err(cerr).Msg("close")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
