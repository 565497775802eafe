// filmforge is the operational CLI for the generation library.
//
// Usage:
//
//	filmforge serve                         # ops endpoint: /metrics /healthz /providers
//	filmforge health                        # probe every registered provider
//	filmforge health --config config.yaml   # with a config file
//	filmforge providers                     # list the registry
//	filmforge migrate up                    # apply settings schema migrations
//	filmforge version
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/filmforge"
	"github.com/BaSui01/filmforge/config"
	"github.com/BaSui01/filmforge/gen"
	"github.com/BaSui01/filmforge/gen/register"
	"github.com/BaSui01/filmforge/gen/resolve"
	"github.com/BaSui01/filmforge/internal/migration"
	"github.com/BaSui01/filmforge/internal/server"
	"github.com/BaSui01/filmforge/internal/telemetry"
	"github.com/BaSui01/filmforge/internal/tlsutil"
	"github.com/BaSui01/filmforge/media"
	"github.com/BaSui01/filmforge/store"
	"github.com/BaSui01/filmforge/taskstore"
	"github.com/BaSui01/filmforge/types"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "health":
		runHealth(os.Args[2:])
	case "providers":
		runProviders()
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// runServe exposes the ops endpoint: prometheus metrics, provider health
// and registry discovery. Generation itself stays a library concern.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	format := fs.String("log-format", "json", "Log format: console or json")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(*format)
	defer logger.Sync()

	logger.Info("starting filmforge ops endpoint",
		zap.String("version", Version),
		zap.String("addr", cfg.Ops.Addr))

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	var settings resolve.SettingsStore = resolve.EnvOnly{}
	if cfg.Database.DSN != "" {
		st, err := store.Open(cfg.Database.DSN, logger)
		if err != nil {
			logger.Warn("settings database not available", zap.Error(err))
		} else {
			settings = st
		}
	}

	opts := []filmforge.Option{
		filmforge.WithSettings(settings),
		filmforge.WithLogger(logger),
		filmforge.WithHTTPClient(tlsutil.SecureHTTPClient(cfg.HTTP.Timeout)),
	}
	if cfg.Redis.Addr != "" {
		ts, err := taskstore.Open(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("task store not available, async tasks will not survive restarts", zap.Error(err))
		} else {
			defer ts.Close()
			opts = append(opts, filmforge.WithTaskStore(ts))
		}
	}

	client, err := filmforge.New(opts...)
	if err != nil {
		logger.Fatal("failed to build generation client", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		results := client.HealthCheck(r.Context(), "")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	})
	mux.HandleFunc("/providers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(client.Registry().List())
	})

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.Ops.Addr
	mgr := server.NewManager(mux, srvCfg, logger)
	if err := mgr.Start(); err != nil {
		logger.Fatal("failed to start ops server", zap.Error(err))
	}
	mgr.WaitForShutdown()
	logger.Info("filmforge stopped")
}

// runMigrate applies versioned schema migrations to the settings database.
func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbURL := fs.String("url", "", "Database URL (default: configured database DSN)")
	fs.Parse(args)

	sub := fs.Arg(0)
	if sub == "" {
		fmt.Fprintln(os.Stderr, "Usage: filmforge migrate <up|down|status|force <version>>")
		os.Exit(1)
	}

	url := *dbURL
	if url == "" {
		loader := config.NewLoader()
		if *configPath != "" {
			loader = loader.WithConfigPath(*configPath)
		}
		cfg, err := loader.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		url = cfg.Database.DSN
	}
	if url == "" {
		fmt.Fprintln(os.Stderr, "No database URL: set --url or FILMFORGE_DATABASE_DSN")
		os.Exit(1)
	}

	logger := initLogger("console")
	defer logger.Sync()

	mg, err := migration.New(url, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open migrator: %v\n", err)
		os.Exit(1)
	}
	defer mg.Close()

	switch sub {
	case "up":
		err = mg.Up()
	case "down":
		err = mg.Down()
	case "status":
		version, dirty, applied, verr := mg.Version()
		err = verr
		if verr == nil {
			if !applied {
				fmt.Println("schema version: none")
			} else {
				fmt.Printf("schema version: %d (dirty: %v)\n", version, dirty)
			}
		}
	case "force":
		var v int
		if _, serr := fmt.Sscanf(fs.Arg(1), "%d", &v); serr != nil {
			fmt.Fprintln(os.Stderr, "Usage: filmforge migrate force <version>")
			os.Exit(1)
		}
		err = mg.Force(v)
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", sub)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

// runHealth wires the full stack the way an embedding service would and
// probes every registered provider with its resolved configuration.
func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	userID := fs.String("user", "", "Resolve credentials as this user (requires database)")
	timeout := fs.Duration("timeout", 30*time.Second, "Overall probe deadline")
	format := fs.String("log-format", "console", "Log format: console or json")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(*format)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Settings store is optional for health probing: without a database
	// the resolver still reaches the environment credential tier.
	var settings resolve.SettingsStore = resolve.EnvOnly{}
	if cfg.Database.DSN != "" {
		st, err := store.Open(cfg.Database.DSN, logger)
		if err != nil {
			logger.Warn("settings database not available, probing with env credentials only", zap.Error(err))
		} else {
			settings = st
		}
	}

	ts, err := taskstore.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("task store not reachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	} else {
		logger.Info("task store reachable", zap.String("addr", cfg.Redis.Addr))
		ts.Close()
	}

	resolver := resolve.New(settings, logger)
	registry := register.All(register.Deps{
		Client: tlsutil.SecureHTTPClient(cfg.HTTP.Timeout),
		Logger: logger,
	})

	cfgFor := func(ctx context.Context, kind types.Kind, provider string) (gen.ProviderConfig, error) {
		return resolver.Resolve(ctx, resolve.Query{
			UserID:   *userID,
			Kind:     kind,
			Provider: provider,
		})
	}

	results := registry.HealthCheckAll(ctx, cfgFor, logger)

	healthy := 0
	for _, res := range results {
		if res.Healthy {
			healthy++
			fmt.Printf("  ok    %-7s %-12s %s\n", res.Kind, res.Provider, res.Latency.Round(time.Millisecond))
		} else {
			fmt.Printf("  FAIL  %-7s %-12s %s\n", res.Kind, res.Provider, res.Error)
		}
	}
	fmt.Printf("%d/%d providers healthy\n", healthy, len(results))
	if healthy == 0 {
		os.Exit(1)
	}
}

func runProviders() {
	registry := register.All(register.Deps{
		Client:   tlsutil.SecureHTTPClient(0),
		Logger:   zap.NewNop(),
		Uploader: media.NopUploader{},
	})

	for _, e := range registry.List() {
		mode := "sync"
		if e.Meta.IsAsync {
			mode = "async"
		}
		fmt.Printf("  %-7s %-12s %-5s $%.3f/unit  %s\n",
			e.Kind, e.Provider, mode, e.Meta.CostPerUnit, e.Meta.Description)
	}
}

func printVersion() {
	fmt.Printf("filmforge %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`filmforge - multi-provider media generation

Usage:
  filmforge <command> [options]

Commands:
  serve      Start the ops endpoint (/metrics, /healthz, /providers)
  health     Probe every registered provider with resolved credentials
  providers  List registered providers and their metadata
  migrate    Settings database schema migrations (up, down, status, force)
  version    Show version information
  help       Show this help message

Options for 'health':
  --config <path>   Path to configuration file (YAML)
  --user <id>       Resolve credentials for a specific user
  --timeout <dur>   Overall probe deadline (default 30s)

Examples:
  filmforge serve --config /etc/filmforge/config.yaml
  filmforge health --user usr_123
  filmforge migrate up --url postgres://filmforge@localhost/filmforge
  filmforge providers`)
}

func initLogger(format string) *zap.Logger {
	var zapConfig zap.Config
	if format == "json" {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := zapConfig.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
