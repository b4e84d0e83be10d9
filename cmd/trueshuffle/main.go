// Package main provides the True Shuffle CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"trueshuffle/internal/core"
	"trueshuffle/internal/flood"
	httpserver "trueshuffle/internal/http"
	"trueshuffle/internal/i18n"
	"trueshuffle/internal/queue"
	"trueshuffle/internal/spotify"
	"trueshuffle/internal/store"
)

const (
	envPrefix      = "TRUESHUFFLE"
	serviceVersion = "1.0.0"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "trueshuffle",
	Short: "True Shuffle - really random Spotify playlists",
	Long: `True Shuffle copies a Spotify playlist, or your liked tracks, into a new playlist
in a uniformly random order. Tasks are queued and executed by a worker pool; clients
submit them over HTTP and poll for progress.`,
	RunE: runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage registered users",
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a user or update its display name",
	RunE:  runUsersAdd,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print usage counters",
	RunE:  runStats,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := core.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (json, console)")
	flags.String("spotify-client-id", "", "Spotify client ID")
	flags.String("spotify-client-secret", "", "Spotify client secret")
	flags.String("spotify-redirect-url", defaults.Spotify.RedirectURL, "Spotify OAuth redirect URL")
	flags.String("spotify-api-url", "", "Spotify Web API base URL (empty for the public API)")
	flags.String("server-host", defaults.Server.Host, "HTTP server host")
	flags.Int("server-port", defaults.Server.Port, "HTTP server port")
	flags.Duration("server-read-timeout", defaults.Server.ReadTimeout, "HTTP read timeout")
	flags.Duration("server-write-timeout", defaults.Server.WriteTimeout, "HTTP write timeout")
	flags.String("store-path", defaults.Store.Path, "sqlite database path")
	flags.Int("queue-workers", defaults.Queue.Workers, "Number of tasks executed in parallel")
	flags.Int("queue-depth", defaults.Queue.Depth, "Maximum number of queued tasks")
	flags.Int("queue-expiry-secs", defaults.Queue.ExpirySecs, "Seconds a queued task may wait before it expires")
	flags.Int("queue-result-retention", defaults.Queue.ResultRetention, "Number of task states kept for polling")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", defaults.App.Language, fmt.Sprintf("Progress message language (%s)", supportedLangs))
	flags.Int("submissions-per-minute", defaults.App.SubmissionsPerMinute, "Maximum task submissions per caller per minute (0 disables)")
	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	migrateCmd.Flags().Bool("rollback", false, "Roll back the most recent migration instead")

	usersAddCmd.Flags().String("id", "", "Spotify user ID")
	usersAddCmd.Flags().String("name", "", "Display name")
	usersAddCmd.Flags().Bool("trackers", true, "Record usage counters for this user")
	_ = usersAddCmd.MarkFlagRequired("id")

	statsCmd.Flags().String("user", "", "Also print the counters of this user")

	usersCmd.AddCommand(usersAddCmd)
	rootCmd.AddCommand(migrateCmd, usersCmd, statsCmd)

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// A missing .env is fine
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level, config.Log.Format)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureSpotify(cfg)
	configureServer(cfg)
	configureStore(cfg)
	configureQueue(cfg)
	configureApp(cfg)

	return cfg
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.RedirectURL = viper.GetString("spotify-redirect-url")
	cfg.Spotify.APIURL = viper.GetString("spotify-api-url")
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Server.ReadTimeout = viper.GetDuration("server-read-timeout")
	cfg.Server.WriteTimeout = viper.GetDuration("server-write-timeout")
	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
}

func configureStore(cfg *core.Config) {
	cfg.Store.Path = viper.GetString("store-path")
}

func configureQueue(cfg *core.Config) {
	cfg.Queue.Workers = viper.GetInt("queue-workers")
	cfg.Queue.Depth = viper.GetInt("queue-depth")
	cfg.Queue.ExpirySecs = viper.GetInt("queue-expiry-secs")
	cfg.Queue.ResultRetention = viper.GetInt("queue-result-retention")
}

func configureApp(cfg *core.Config) {
	cfg.App.Language = viper.GetString("language")
	cfg.App.SubmissionsPerMinute = viper.GetInt("submissions-per-minute")
}

func buildLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	if format == "console" || format == "text" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runServe(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting True Shuffle",
		zap.String("version", serviceVersion),
		zap.String("store", config.Store.Path),
		zap.Int("workers", config.Queue.Workers),
		zap.String("language", i18n.Resolve(config.App.Language)))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	svcs, err := initializeServices(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := svcs.db.Close(); closeErr != nil {
			logger.Warn("Failed to close store", zap.Error(closeErr))
		}
	}()

	return runServices(ctx, svcs)
}

type services struct {
	db         *store.Store
	tasks      *queue.Store
	pool       *queue.Pool
	floodgate  *flood.Floodgate
	httpServer *httpserver.Server
}

func initializeServices(ctx context.Context) (*services, error) {
	db, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := httpserver.NewMetrics(registry)

	localizer := i18n.NewLocalizer(config.App.Language)
	factory := spotify.NewFactory(&config.Spotify, logger.Named("spotify"))

	tasks := queue.NewStore(config.Queue.ResultRetention, logger.Named("tasks"))
	reporter := core.NewProgressReporter(tasks, localizer, logger.Named("progress"))
	pipeline := core.NewPipeline(factory, db, db, reporter, logger.Named("pipeline"))
	pool := queue.NewPool(config.Queue, pipeline, factory, tasks, localizer, metrics, logger.Named("pool"))
	library := core.NewLibrary(factory, db, db, logger.Named("library"))
	floodgate := flood.New(config.App.SubmissionsPerMinute)

	httpServer := httpserver.NewServer(&config.Server, httpserver.Deps{
		Queue:     pool,
		Library:   library,
		Store:     db,
		Limiter:   floodgate,
		Localizer: localizer,
		Metrics:   metrics,
		Registry:  registry,
	}, logger.Named("http"))

	return &services{
		db:         db,
		tasks:      tasks,
		pool:       pool,
		floodgate:  floodgate,
		httpServer: httpServer,
	}, nil
}

func openStore(ctx context.Context) (*store.Store, error) {
	db, err := store.Open(config.Store.Path, logger.Named("store"))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	// The task store outlives the workers so in-flight tasks can still publish
	// their terminal state.
	storeCtx, stopStore := context.WithCancel(context.Background())

	g.Go(func() error {
		return svcs.tasks.Run(storeCtx)
	})

	g.Go(func() error {
		defer stopStore()
		return svcs.pool.Run(gCtx)
	})

	g.Go(func() error {
		return svcs.floodgate.Run(gCtx)
	})

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	logger.Info("True Shuffle started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("True Shuffle stopped with error", zap.Error(err))
		return err
	}

	logger.Info("True Shuffle stopped gracefully", zap.Int("retainedTasks", svcs.tasks.Len()))
	return nil
}

func validateConfig() error {
	if err := validateSpotifyConfig(); err != nil {
		return err
	}
	return validateQueueConfig()
}

func validateSpotifyConfig() error {
	if config.Spotify.ClientID == "" {
		return fmt.Errorf("spotify client ID is required")
	}

	if config.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client secret is required")
	}

	return nil
}

func validateQueueConfig() error {
	if config.Queue.Workers <= 0 {
		return fmt.Errorf("queue workers must be positive, got %d", config.Queue.Workers)
	}
	if config.Queue.Depth <= 0 {
		return fmt.Errorf("queue depth must be positive, got %d", config.Queue.Depth)
	}
	if config.Queue.ExpirySecs <= 0 {
		return fmt.Errorf("queue expiry must be positive, got %d", config.Queue.ExpirySecs)
	}
	if config.Queue.ResultRetention <= 0 {
		return fmt.Errorf("queue result retention must be positive, got %d", config.Queue.ResultRetention)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	db, err := store.Open(config.Store.Path, logger.Named("store"))
	if err != nil {
		return err
	}
	defer db.Close()

	rollback, _ := cmd.Flags().GetBool("rollback")
	if !rollback {
		return db.Migrate(ctx)
	}

	if err := db.Rollback(ctx); err != nil {
		if errors.Is(err, store.ErrNoMigrations) {
			fmt.Println("Nothing to roll back")
			return nil
		}
		return err
	}
	return nil
}

func runUsersAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	id, _ := cmd.Flags().GetString("id")
	name, _ := cmd.Flags().GetString("name")
	trackers, _ := cmd.Flags().GetBool("trackers")

	if err := db.UpsertUser(ctx, core.User{ID: id, DisplayName: name, TrackersEnabled: trackers}); err != nil {
		return err
	}

	fmt.Printf("✅ Registered user %s\n", id)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	global, err := db.GlobalCounters(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Overall")
	printCounters(global)

	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return nil
	}

	user, err := db.FindUser(ctx, userID)
	if err != nil {
		return err
	}
	counters, err := db.UserCounters(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Printf("\nUser %s (%s)\n", user.ID, user.DisplayName)
	printCounters(counters)

	shuffles, err := db.PlaylistShuffles(ctx, userID)
	if err != nil {
		return err
	}
	if len(shuffles) == 0 {
		return nil
	}
	fmt.Println("\nShuffled playlists")
	for _, s := range shuffles {
		fmt.Printf("  %-24s %5d  %s  (%s)\n",
			s.PlaylistID, s.Shuffles, s.LastShuffledAt.Format("2006-01-02 15:04"), s.PlaylistName)
	}
	return nil
}

func printCounters(c *core.UsageCounters) {
	fmt.Printf("  playlists shuffled: %d\n", c.PlaylistShuffles)
	fmt.Printf("  tracks shuffled:    %d\n", c.TrackShuffles)
	fmt.Printf("  liked exports:      %d\n", c.LikedExports)
	fmt.Printf("  tracks exported:    %d\n", c.ExportedTracks)
	fmt.Printf("  time spent:         %ds\n", c.DurationSeconds)
}
