package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"xmlcustomizer/syndicator/internal/admin"
	"xmlcustomizer/syndicator/internal/config"
	"xmlcustomizer/syndicator/internal/database"
	"xmlcustomizer/syndicator/internal/derived"
	"xmlcustomizer/syndicator/internal/feedsync"
	importfeeds "xmlcustomizer/syndicator/internal/import"
	"xmlcustomizer/syndicator/internal/invalidation"
	"xmlcustomizer/syndicator/internal/materialize"
	"xmlcustomizer/syndicator/internal/origin"
	"xmlcustomizer/syndicator/internal/server"
	"xmlcustomizer/syndicator/internal/snapshot"
	"xmlcustomizer/syndicator/internal/storage"
)

const usage = `Usage: syndicator [command] [options]
Commands: import, start, server

For command-specific options, use: syndicator [command] -h`

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	config.LoadDotEnv()
	cfg := config.DefaultConfig()

	var logLevelStr string
	var intervalMinutes int

	commonFlags := func(fs *flag.FlagSet) {
		fs.StringVar(&cfg.DBPath, "db", config.GetEnvString("SYNDICATOR_DB_PATH", config.DefaultDBPath),
			"Path to the SQLite database file (env: SYNDICATOR_DB_PATH)")
		fs.StringVar(&logLevelStr, "log-level", config.GetEnvString("SYNDICATOR_LOG_LEVEL", cfg.LogLevel.String()),
			"Log level: debug, info, warn, error (env: SYNDICATOR_LOG_LEVEL)")
	}
	syncFlags := func(fs *flag.FlagSet) {
		fs.StringVar(&cfg.BlobDir, "blobs", config.GetEnvString("SYNDICATOR_BLOB_DIR", config.DefaultBlobDir),
			"Directory holding feed snapshots (env: SYNDICATOR_BLOB_DIR)")
		fs.IntVar(&intervalMinutes, "interval", config.GetEnvInt("SYNDICATOR_INTERVAL", config.DefaultInterval),
			"Minutes between update checks, 0 for one-shot mode (env: SYNDICATOR_INTERVAL)")
		fs.IntVar(&cfg.WorkerCount, "workers", config.GetEnvInt("SYNDICATOR_WORKER_COUNT", config.DefaultWorkerCount),
			"Number of concurrent update checks, 0 for CPU count (env: SYNDICATOR_WORKER_COUNT)")
	}

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	commonFlags(importCmd)
	importCmd.StringVar(&cfg.FeedsCSVPath, "csv", config.GetEnvString("SYNDICATOR_CSV_PATH", config.DefaultFeedsCSVPath),
		"Path or http(s) URL of a name,url feeds CSV (env: SYNDICATOR_CSV_PATH)")

	startCmd := flag.NewFlagSet("start", flag.ExitOnError)
	commonFlags(startCmd)
	syncFlags(startCmd)

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	commonFlags(serverCmd)
	syncFlags(serverCmd)
	serverCmd.StringVar(&cfg.ServerHost, "host", config.GetEnvString("SYNDICATOR_HOST", config.DefaultServerHost),
		"Host to bind the server to (env: SYNDICATOR_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", config.GetEnvInt("SYNDICATOR_PORT", config.DefaultServerPort),
		"Port to listen on (env: SYNDICATOR_PORT)")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	var cmd *flag.FlagSet
	var run func(context.Context, *config.Config) error
	switch os.Args[1] {
	case "import":
		cmd, run = importCmd, runImport
	case "start":
		cmd, run = startCmd, runStart
	case "server":
		cmd, run = serverCmd, runServer
	case "-h", "--help", "help":
		fmt.Println(usage)
		os.Exit(0)
	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}

	_ = cmd.Parse(os.Args[2:])

	// Handle log level parsing separately since it needs conversion
	if level, err := zerolog.ParseLevel(logLevelStr); err == nil {
		cfg.LogLevel = level
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	cfg.Interval = time.Duration(intervalMinutes) * time.Minute

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}

// app is the fully wired pipeline shared by the start and server commands.
type app struct {
	db           *database.DB
	kv           *derived.MemoryKV
	sync         *feedsync.Service
	materializer *materialize.Materializer
	admin        *admin.Service
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	snapshots, err := snapshot.NewDiskStore(cfg.BlobDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	feeds := storage.NewFeedRepository(db)
	customers := storage.NewCustomerRepository(db)
	selections := storage.NewSelectionRepository(db)

	kv := derived.NewMemoryKV()
	cache := derived.NewCache(kv, cfg.CacheTTL)
	coordinator := invalidation.NewCoordinator(selections, customers, cache)

	client := origin.NewClient(origin.Config{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.OriginUserAgent,
	})
	sync := feedsync.NewService(client, feeds, snapshots, coordinator, feedsync.Config{
		StaleAfter:  cfg.StaleAfter,
		Workers:     cfg.WorkerCount,
		AutoRefresh: cfg.AutoRefresh,
	})
	documents := snapshot.NewReadThrough(snapshots, sync.LoadDocument)

	return &app{
		db:           db,
		kv:           kv,
		sync:         sync,
		materializer: materialize.New(customers, selections, documents, cache),
		admin: admin.NewService(admin.Deps{
			Feeds:       feeds,
			Customers:   customers,
			Selections:  selections,
			Snapshots:   snapshots,
			Documents:   documents,
			Sync:        sync,
			Invalidator: coordinator,
		}),
	}, nil
}

func openDB(cfg *config.Config) (*database.DB, error) {
	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// runImport registers the feeds listed in a CSV file. Known URLs are skipped.
func runImport(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	importer := importfeeds.NewImporter(storage.NewFeedRepository(db), afero.NewOsFs())
	summary, err := importer.ImportFeeds(ctx, cfg.FeedsCSVPath)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d feeds successfully, %d already registered\n", summary.Imported, summary.Skipped)
	if len(summary.Errors) > 0 {
		fmt.Printf("Encountered %d errors:\n", len(summary.Errors))
		for _, e := range summary.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}

// runStart runs the update checker either once or periodically. Derived
// documents live in the server process, so a standalone checker leaves
// them to expire with the cache TTL.
func runStart(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.db.Close()

	if cfg.Interval <= 0 {
		log.Info().Msg("Running in one-shot mode")
	} else {
		log.Info().Dur("interval", cfg.Interval).Msg("Running in periodic mode")
	}

	err = a.sync.Run(ctx, cfg.Interval)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Update check canceled by shutdown signal")
		return nil
	}
	return err
}

// runServer serves the public and admin API. The update checker and the
// derived cache sweeper run alongside it in the same process.
func runServer(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.db.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.kv.RunSweeper(ctx, time.Minute)
	if cfg.Interval > 0 {
		go func() {
			if err := a.sync.Run(ctx, cfg.Interval); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Update checker stopped")
			}
		}()
	}

	return server.RunServer(ctx, server.Deps{
		DB:           a.db,
		Materializer: a.materializer,
		Admin:        a.admin,
		APIKey:       cfg.APIKey,
		PublicMaxAge: cfg.PublicMaxAge,
	}, cfg.ListenAddr(), log.Logger)
}
