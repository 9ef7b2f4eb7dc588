package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tempmon-server/internal/auth"
	"tempmon-server/internal/config"
	"tempmon-server/internal/db"
	"tempmon-server/internal/httpapi"
	"tempmon-server/internal/migrate"
	"tempmon-server/internal/modules/monitoring"
	"tempmon-server/internal/modules/monitoring/repository"
	"tempmon-server/internal/mqtt"
)

const shutdownTimeout = 10 * time.Second

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.Driver,
		"sqlitePath", cfg.Path,
		"dbMaxOpenConns", cfg.MaxOpenConns,
		"dbMaxIdleConns", cfg.MaxIdleConns,
		"dbConnMaxLifetime", cfg.ConnMaxLifetime,
		"corsOrigins", cfg.CORSOrigins,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)
	if cfg.DeviceAPIKey == "" {
		logger.Warn("DEVICE_API_KEY is not set; reading ingestion will fail")
	}
	if cfg.SessionJWTSecret == "" {
		logger.Warn("SESSION_JWT_SECRET is not set; session routes will fail")
	}

	repo, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()
	logger.Info("database connection successful")

	router := httpapi.NewRouter(cfg, repo, logger)
	feature := monitoring.RegisterFeature(router, repo,
		auth.JWTSessionResolver{Secret: cfg.SessionJWTSecret},
		auth.DeviceKeyGate{HeaderName: cfg.DeviceAuthHeaderKey, Secret: cfg.DeviceAPIKey},
		logger,
	)

	var subscriber *mqtt.Subscriber
	if cfg.MQTTEnabled {
		subscriber = mqtt.NewSubscriber(cfg, logger)
		// The handler must be in place before the first CONNACK; the broker
		// may deliver queued messages right after it.
		feature.AttachMQTT(subscriber)
		go func() {
			if err := subscriber.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
			}
		}()
	}

	srv := httpapi.NewServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if subscriber != nil {
		logger.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// OpenStore opens the configured backend, brings its schema up to date and
// returns the repository with a function releasing the connection.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.MonitoringRepository, func() error, error) {
	switch cfg.Driver {
	case "postgres":
		gdb, err := db.OpenPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("db handle: %w", err)
		}
		if err := repository.AutoMigrate(ctx, gdb); err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		return repository.NewGormRepository(gdb), sqlDB.Close, nil
	default:
		conn, err := db.Open(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		applied, err := migrate.Run(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		logger.Info("migrations applied", "count", applied)
		return repository.NewRepository(conn), func() error { return db.Close(conn) }, nil
	}
}
