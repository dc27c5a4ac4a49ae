package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldbook/internal/api"
	"fieldbook/internal/config"
	"fieldbook/internal/database"
	"fieldbook/internal/domain"
	"fieldbook/internal/events"
	"fieldbook/internal/export"
	"fieldbook/internal/google"
	"fieldbook/internal/logging"
	"fieldbook/internal/metrics"
	"fieldbook/internal/models"
	"fieldbook/internal/notify"
	"fieldbook/internal/repository"
	"fieldbook/internal/service"
	"fieldbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
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

	if err := loadAPIKeys(cfg, &logger); err != nil {
		return err
	}

	loc, err := cfg.Booking.Location()
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	scheduleCache := initScheduleCache(redisClient, &logger)

	notifier := initNotifier(cfg, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sheetsWorker := initSheetsWorker(ctx, cfg, db, redisClient, &logger)

	eventBus := events.NewEventBus()
	bookingService := service.NewBookingService(
		db,
		scheduleCache,
		notifier,
		eventBus,
		sheetsWorker,
		service.SystemClock{},
		loc,
		cfg.Booking.DefaultPricePerHour,
		cfg.Booking.MaxAdvanceDays,
		&logger,
	)

	userService := service.NewUserService(db, &logger)
	exporter := export.NewExporter(cfg.Exports.Path)
	httpServer := api.NewHTTPServer(cfg.API, bookingService, userService, exporter, &logger)

	startMetrics(ctx, cfg, &logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()
	logger.Info().Int("http_port", cfg.API.Port).Msg("fieldbook api started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("fieldbook api stopped")
	return nil
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

// loadAPIKeys merges client keys from the standalone keys file, when one is
// configured. Keys inline in the main config stay as they are.
func loadAPIKeys(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.API.Auth.KeysFile == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.API.Auth.KeysFile)
	if err != nil {
		logger.Error().Err(err).Str("keys_file", cfg.API.Auth.KeysFile).Msg("read api keys")
		return err
	}

	var keysConfig struct {
		Keys []config.APIClientKey `yaml:"keys"`
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &keysConfig); err != nil {
		logger.Error().Err(err).Str("keys_file", cfg.API.Auth.KeysFile).Msg("parse api keys")
		return err
	}

	cfg.API.Auth.Keys = append(cfg.API.Auth.Keys, keysConfig.Keys...)
	logger.Info().Int("keys", len(keysConfig.Keys)).Msg("api keys loaded from file")
	return nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initScheduleCache(redisClient *redis.Client, logger *zerolog.Logger) domain.ScheduleCache {
	ttl := time.Duration(models.ScheduleCacheTTL) * time.Second
	memory := repository.NewMemoryScheduleCache(ttl)
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisScheduleCache(redisClient, ttl)
	return repository.NewFailoverScheduleCache(primary, memory, logger)
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if cfg.Telegram.BotToken == "" {
		logger.Info().Msg("telegram token is not set, notifications disabled")
		return notify.NoopNotifier{}
	}

	notifier, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.AdminChatIDs, cfg.Telegram.Debug, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, notifications disabled")
		return notify.NoopNotifier{}
	}

	logger.Info().Msg("telegram notifier connected")
	return notifier
}

func initSheetsWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) domain.SyncWorker {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingSpreadsheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}

	w := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.DefaultBackoff(), logger)
	go w.Run(ctx)

	logger.Info().Msg("google sheets sync enabled")
	return w
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Int("port", port).Msg("metrics server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
