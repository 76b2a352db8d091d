package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/username/holiday-calendar/internal/calendar"
	"github.com/username/holiday-calendar/internal/config"
	"github.com/username/holiday-calendar/pkg/dateutil"
)

var (
	configPath string
	logger     *zap.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "holiday-calendar",
		Short: "Chinese mainland holiday calendar",
		Long:  "Answer holiday and workday queries from the holiday-cn dataset with a local cache",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load config to get log settings
			cfg, err := config.Load(configPath)
			if err == nil && cfg.Log.File != "" {
				logger, err = initFileLogger(cfg.Log.File, cfg.Log.Level)
				if err != nil {
					initLogger("info") // Fallback to console
				}
			} else if err == nil {
				initLogger(cfg.Log.Level)
			} else {
				initLogger("info")
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: search ./config.yaml, $HOME/.holiday-calendar, /etc/holiday-calendar)")

	rootCmd.AddCommand(isHolidayCmd())
	rootCmd.AddCommand(isWorkdayCmd())
	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(cacheCmd())

	return rootCmd
}

// app holds the components every command is built from
type app struct {
	cfg     *config.Config
	manager *calendar.Manager
	engine  *calendar.Engine
	closers []func() error
}

func (a *app) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			logger.Warn("Failed to release resource", zap.Error(err))
		}
	}
}

// initializeApp builds the components for one command. Revalidating the
// current year once per run only makes sense for long-running processes;
// one-shot commands would otherwise refetch on every invocation.
func initializeApp(longRunning bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg}

	store, err := initializeStore(cfg, a)
	if err != nil {
		return nil, err
	}

	source := calendar.NewHolidayCNSource(
		cfg.Source.URLTemplate,
		cfg.Source.GetTimeout(),
		logger,
	)

	a.manager = calendar.NewManager(source, store, logger,
		calendar.WithRevalidateOncePerRun(longRunning && cfg.Calendar.RevalidateOncePerRun))

	a.engine = calendar.NewEngine(a.manager, logger,
		calendar.WithLocation(cfg.Calendar.GetLocation()),
		calendar.WithLocale(dateutil.Locale(cfg.Calendar.Locale)))

	return a, nil
}

func initializeStore(cfg *config.Config, a *app) (calendar.Store, error) {
	switch cfg.Cache.Backend {
	case "file":
		logger.Debug("Using file cache store", zap.String("path", cfg.Cache.Path))
		return calendar.NewFileStore(cfg.Cache.Path, logger), nil

	case "redis":
		logger.Debug("Using redis cache store",
			zap.String("addr", cfg.Cache.Redis.Addr),
			zap.String("key", cfg.Cache.Redis.Key))
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Cache.Redis.Addr, err)
		}
		a.closers = append(a.closers, client.Close)
		return calendar.NewRedisStore(client, cfg.Cache.Redis.Key, logger), nil

	case "memory":
		logger.Debug("Using in-memory cache store")
		return calendar.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}
}

func initLogger(level string) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err == nil {
		config.Level = zap.NewAtomicLevelAt(zapLevel)
	}

	var err error
	logger, err = config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
}

func initFileLogger(logFile string, level string) (*zap.Logger, error) {
	// Setup lumberjack for log rotation
	logWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100,  // MB
		MaxBackups: 3,    // Keep max 3 old log files
		MaxAge:     28,   // days
		Compress:   true, // Compress old logs with gzip
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(logWriter),
		zapLevel,
	)

	return zap.New(core), nil
}
