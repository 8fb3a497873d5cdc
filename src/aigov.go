package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/ai-gov/src/analysis"
	"github.com/stake-plus/ai-gov/src/config"
	"github.com/stake-plus/ai-gov/src/data"
	"github.com/stake-plus/ai-gov/src/discord"
	"github.com/stake-plus/ai-gov/src/ledger"
	"github.com/stake-plus/ai-gov/src/logging"
	"github.com/stake-plus/ai-gov/src/webserver"
)

func main() {
	envFile := pflag.String("env", ".env", "dotenv file read before the environment")
	migrateOnly := pflag.Bool("migrate-only", false, "migrate the schema and exit")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log, *migrateOnly); err != nil {
		log.Fatal("aigov stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger, migrateOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := data.NewRedis(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	events := data.NewEvents(rdb, data.EventStream)

	opts := ledger.Options{
		Publisher: events,
		Analyzer:  analysis.NewKeyword(),
		Logger:    log,
	}

	var journal *data.Journal
	if cfg.Storage == config.StorageMySQL {
		db, err := data.ConnectMySQL(cfg.MySQLDSN, log)
		if err != nil {
			return fmt.Errorf("mysql: %w", err)
		}
		journal = data.NewJournal(db)
		if err := journal.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if migrateOnly {
			log.Info("schema migrated")
			return nil
		}
		applySettings(ctx, &cfg, db, log)
		opts.Journal = journal
	} else if migrateOnly {
		return errors.New("--migrate-only needs STORAGE=mysql")
	}

	gov := ledger.New(opts)
	if journal != nil {
		if err := gov.Restore(ctx, journal); err != nil {
			return err
		}
	}

	if cfg.DiscordToken != "" && cfg.DiscordChannel != "" {
		go runAnnouncer(ctx, cfg, rdb, log)
	}

	srv := webserver.New(webserver.Options{
		Config: cfg,
		Ledger: gov,
		Nonces: data.NewNonces(rdb),
		Logger: log,
	})
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSCert != "" {
			err = serveTLS(ctx, httpSrv, cfg, log)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	log.Info("aigov listening", zap.String("port", cfg.Port), zap.String("storage", cfg.Storage))

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("http: %w", err)
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return httpSrv.Shutdown(shutCtx)
}

func applySettings(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) {
	settings, err := data.LoadSettings(ctx, db)
	if err != nil {
		log.Warn("settings not loaded", zap.Error(err))
		return
	}
	cfg.ApplySettings(settings)
}

func serveTLS(ctx context.Context, srv *http.Server, cfg config.Config, log *zap.Logger) error {
	reloader, err := webserver.NewTLSReloader(cfg.TLSCert, cfg.TLSKey, log)
	if err != nil {
		return err
	}
	go func() {
		if err := reloader.Watch(ctx); err != nil {
			log.Warn("certificate watcher stopped", zap.Error(err))
		}
	}()
	srv.TLSConfig = reloader.Config()
	return srv.ListenAndServeTLS("", "")
}

func runAnnouncer(ctx context.Context, cfg config.Config, rdb *redis.Client, log *zap.Logger) {
	session, err := discord.NewSession(cfg.DiscordToken)
	if err != nil {
		log.Error("discord disabled", zap.Error(err))
		return
	}
	defer session.Close()

	a := discord.NewAnnouncer(discord.Options{
		Sender:      session,
		Source:      data.NewEvents(rdb, data.EventStream),
		ChannelID:   cfg.DiscordChannel,
		FrontendURL: cfg.FrontendURL,
		Logger:      log,
	})
	if err := a.Run(ctx); err != nil {
		log.Error("announcer stopped", zap.Error(err))
	}
}
