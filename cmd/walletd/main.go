package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/wallet/internal/ledgerapi"
	"github.com/MarkoPoloResearchLab/wallet/internal/notify"
	"github.com/MarkoPoloResearchLab/wallet/internal/session"
	"github.com/MarkoPoloResearchLab/wallet/internal/store/cachestore"
	"github.com/MarkoPoloResearchLab/wallet/internal/walletapi"
)

const (
	flagListenAddr     = "listen-addr"
	flagLedgerBaseURL  = "ledger-base-url"
	flagLedgerTimeout  = "ledger-timeout"
	flagCacheURL       = "cache-database-url"
	flagRedisAddr      = "redis-addr"
	flagAllowedOrigins = "allowed-origins"
	flagHistoryLimit   = "history-limit"
	envPrefix          = "WALLETD"

	defaultCacheURL = "sqlite:///tmp/wallet-cache.db"
)

type runtimeConfig struct {
	API      walletapi.Config
	CacheURL string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "walletd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "walletd",
		Short:         "HTTP façade driving the festival wallet transaction flow",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")
	cmd.Flags().String(flagLedgerBaseURL, "", "base URL of the ledger backend")
	cmd.Flags().Duration(flagLedgerTimeout, 0, "ledger request timeout (e.g. 15s)")
	cmd.Flags().String(flagCacheURL, defaultCacheURL, "cache database URL (sqlite path or postgres URL)")
	cmd.Flags().String(flagRedisAddr, "", "redis address for the credit notification feed (optional)")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().Int(flagHistoryLimit, 0, "default history page size")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, flagName := range []string{flagListenAddr, flagLedgerBaseURL, flagLedgerTimeout, flagCacheURL, flagRedisAddr, flagAllowedOrigins, flagHistoryLimit} {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.API.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
	cfg.API.LedgerBaseURL = strings.TrimSpace(v.GetString(flagLedgerBaseURL))
	cfg.API.LedgerTimeout = v.GetDuration(flagLedgerTimeout)
	cfg.API.RedisAddr = strings.TrimSpace(v.GetString(flagRedisAddr))
	cfg.API.AllowedOrigins = walletapi.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))
	cfg.API.HistoryLimit = v.GetInt(flagHistoryLimit)
	cfg.CacheURL = strings.TrimSpace(v.GetString(flagCacheURL))
	if cfg.CacheURL == "" {
		cfg.CacheURL = defaultCacheURL
	}

	return cfg.API.Validate()
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, err := openDatabase(ctx, cfg.CacheURL)
	if err != nil {
		return fmt.Errorf("cache open: %w", err)
	}
	defer func() { _ = cleanup() }()

	cache := cachestore.New(gormDB)
	if err := cache.Migrate(ctx); err != nil {
		return fmt.Errorf("cache migrate: %w", err)
	}

	sessions := session.NewController(time.Now, logger)
	client, err := ledgerapi.NewClient(cfg.API.LedgerBaseURL, sessions, nil)
	if err != nil {
		return fmt.Errorf("ledger client: %w", err)
	}

	var feed *notify.Channel
	if cfg.API.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.API.RedisAddr})
		feed, err = notify.NewChannel(redisClient, cache, logger)
		if err != nil {
			return fmt.Errorf("notification channel: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
	}

	server, err := walletapi.NewServer(cfg.API, logger, sessions, client, cache, feed)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}
	return server.Run(ctx)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}
	var db *gorm.DB
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := parsed.Path
		if path == "" {
			path = parsed.Host
		}
		if path == "" || path == "/" {
			path = "wallet-cache.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
