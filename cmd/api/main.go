package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restocrm/internal/api"
	"restocrm/internal/compat"
	"restocrm/internal/config"
	"restocrm/internal/docstore"
	"restocrm/internal/events"
	"restocrm/internal/export"
	"restocrm/internal/identity"
	"restocrm/internal/logging"
	"restocrm/internal/metrics"
	"restocrm/internal/models"
	"restocrm/internal/pagination"
	"restocrm/internal/service"
	"restocrm/internal/tenant"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := docstore.NewSQLiteStore(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init document store")
		return err
	}
	defer store.Close()
	go docstore.NewBackupService(store, cfg.Backup, &logger).Start(ctx)

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	sessions := initSessions(cfg, redisClient, &logger)

	bus := events.NewEventBus(&logger)
	initTelegram(cfg, bus, &logger)

	svc, err := buildServices(ctx, cfg, store, sessions, bus, &logger)
	if err != nil {
		return err
	}
	svc.Health = func(ctx context.Context) error {
		if err := store.PingContext(ctx); err != nil {
			return fmt.Errorf("document store: %w", err)
		}
		if redisClient != nil {
			if err := tenant.Ping(ctx, redisClient); err != nil {
				logger.Warn().Err(err).Msg("redis unavailable, sessions served from memory")
			}
		}
		return nil
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}
	httpServer := api.NewHTTPServer(cfg.API, svc, &logger)

	startMetrics(ctx, cfg, &logger)
	return serve(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := tenant.NewRedisClient(cfg.Redis)
	if err := tenant.Ping(context.Background(), client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initSessions(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) tenant.SessionStore {
	memory := tenant.NewMemorySessionStore(cfg.Session.TTL)
	if client == nil {
		return memory
	}
	return tenant.NewFailoverSessionStore(
		tenant.NewRedisSessionStore(client, cfg.Session.TTL, cfg.Session.KeyPrefix),
		memory,
		logging.Component(logger, "sessions"),
	)
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Telegram.Enabled {
		return
	}
	sender, err := events.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	events.NewTelegramNotifier(sender, cfg.Telegram.AdminChatIDs, logging.Component(logger, "telegram")).Attach(bus)
	logger.Info().Int("chats", len(cfg.Telegram.AdminChatIDs)).Msg("telegram notifications enabled")
}

func initSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *export.SheetsExporter {
	if cfg.Google.CredentialsFile == "" || cfg.Google.ClientsSpreadsheetID == "" {
		return nil
	}

	exporter, err := export.NewSheetsExporter(ctx, cfg.Google.CredentialsFile, cfg.Google.ClientsSpreadsheetID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := exporter.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return exporter
}

func buildServices(
	ctx context.Context,
	cfg *config.Config,
	store docstore.Store,
	sessions tenant.SessionStore,
	bus *events.EventBus,
	logger *zerolog.Logger,
) (api.Services, error) {
	opts := []compat.Option{compat.WithEventBus(bus)}
	clientMirror, err := compat.NewMirror[models.Client](store, compat.NewClientCodec(nil), cfg.Legacy, logger, opts...)
	if err != nil {
		return api.Services{}, fmt.Errorf("client mirror: %w", err)
	}
	resMirror, err := compat.NewMirror[models.Reservation](store, compat.ReservationCodec{}, cfg.Legacy, logger, opts...)
	if err != nil {
		return api.Services{}, fmt.Errorf("reservation mirror: %w", err)
	}
	orderMirror, err := compat.NewMirror[models.Order](store, compat.OrderCodec{}, cfg.Legacy, logger, opts...)
	if err != nil {
		return api.Services{}, fmt.Errorf("order mirror: %w", err)
	}

	size, idle := cfg.Pagination.PageSize, cfg.Session.TTL
	clientPages := service.NewPageRegistry[models.Client](store, models.CollectionClients, service.ClientMatcher, idle, logger,
		pagination.WithDefaultSize[models.Client](size))
	resPages := service.NewPageRegistry[models.Reservation](store, models.CollectionReservations, service.ReservationMatcher, idle, logger,
		pagination.WithDefaultSize[models.Reservation](size))
	orderPages := service.NewPageRegistry[models.Order](store, models.CollectionOrders, service.OrderMatcher, idle, logger,
		pagination.WithDefaultSize[models.Order](size))

	accounts := identity.NewStoreProvider(store, logger)
	restaurants := service.NewRestaurantService(store, accounts, bus, logger)

	var clientOpts []service.ClientServiceOption
	if sheets := initSheets(ctx, cfg, logger); sheets != nil {
		clientOpts = append(clientOpts, service.WithClientSheets(sheets))
	}

	sessionSvc := service.NewSessionService(accounts, restaurants, sessions, logger)
	sessionSvc.OnSignOut(clientPages.Drop)
	sessionSvc.OnSignOut(resPages.Drop)
	sessionSvc.OnSignOut(orderPages.Drop)

	return api.Services{
		Clients:      service.NewClientService(clientMirror, clientPages, restaurants, bus, logger, clientOpts...),
		Reservations: service.NewReservationService(resMirror, resPages, bus, logger),
		Orders:       service.NewOrderService(orderMirror, orderPages, restaurants, bus, logger),
		Restaurants:  restaurants,
		Sessions:     sessionSvc,
		Resolver:     tenant.NewResolver(sessions),
		ExportDir:    cfg.Exports.Path,
	}, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
