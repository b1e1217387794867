package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jarvis-assistant/jarvis-back/internal/ai"
	"github.com/jarvis-assistant/jarvis-back/internal/cache"
	"github.com/jarvis-assistant/jarvis-back/internal/config"
	httpserver "github.com/jarvis-assistant/jarvis-back/internal/http"
	"github.com/jarvis-assistant/jarvis-back/internal/http/handlers"
	"github.com/jarvis-assistant/jarvis-back/internal/queue"
	"github.com/jarvis-assistant/jarvis-back/internal/repository"
	"github.com/jarvis-assistant/jarvis-back/internal/service"
	"github.com/jarvis-assistant/jarvis-back/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	loaded, dotenvErr := config.LoadDotEnv(".env", ".env.local")
	cfg := config.Load()

	logger := newLogger(cfg)
	if dotenvErr != nil {
		logger.Warn().Err(dotenvErr).Msg("failed loading .env files")
	} else if len(loaded) > 0 {
		logger.Info().Strs("files", loaded).Msg("loaded .env files")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := loadCatalog(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.ModelCatalogPath).Msg("invalid model catalog")
	}
	logger.Info().Int("models", catalog.Len()).Msg("model catalog loaded")

	repo, repoCloser := setupRepository(ctx, cfg, logger)
	defer repoCloser()

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	geoCache, cacheCloser := setupCache(ctx, cfg, logger)
	defer cacheCloser()

	gateway := ai.NewGatewayClient(ai.GatewayClientConfig{
		APIKey:       cfg.GatewayAPIKey,
		BaseURL:      cfg.GatewayBaseURL,
		Timeout:      cfg.GatewayTimeout(),
		MaxRetries:   cfg.GatewayMaxRetries,
		SiteURL:      cfg.GatewaySiteURL,
		AppName:      cfg.GatewayAppName,
		SystemPrompt: cfg.SystemPrompt,
	})
	if !gateway.Available() {
		logger.Warn().Msg("AI_GATEWAY_API_KEY not configured, /ai-chat and /geo-analyze will fail")
	}

	api := handlers.NewAPI(handlers.APIDependencies{
		Chat: service.NewChatService(service.ChatDependencies{
			Classifier:    ai.NewClassifier(nil),
			Selector:      ai.NewSelector(cfg.ModelCostPenalty),
			Catalog:       catalog,
			Gateway:       gateway,
			Conversations: repo,
			Producer:      producer,
			Logger:        logger.With().Str("component", "chat").Logger(),
		}),
		Conversations: service.NewConversationsService(repo),
		Geo: service.NewGeoService(service.GeoDependencies{
			Client:    gateway,
			Cache:     geoCache,
			Model:     cfg.GeoModel,
			MaxTokens: cfg.GeoMaxTokens,
			Logger:    logger.With().Str("component", "geo").Logger(),
		}),
		StreamIdleTimeout: cfg.StreamIdleTimeout(),
		Logger:            logger,
	})

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		processor := worker.NewProcessor(consumer, repo, logger.With().Str("component", "worker").Logger())
		go processor.Start(ctx)
		logger.Info().Msg("persistence worker started")
	} else {
		logger.Info().Msg("persistence worker disabled by configuration")
	}

	// WriteTimeout stays short for JSON routes; /ai-chat clears its own
	// deadline.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api listening")
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.LogFormat, "console") {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "jarvis-back").
		Logger()
}

func loadCatalog(cfg config.Config) (ai.Catalog, error) {
	if strings.TrimSpace(cfg.ModelCatalogPath) == "" {
		return ai.DefaultCatalog(), nil
	}
	return ai.LoadCatalogFile(cfg.ModelCatalogPath)
}

func setupRepository(
	ctx context.Context,
	cfg config.Config,
	logger zerolog.Logger,
) (repository.ConversationsRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Info().Msg("DATABASE_URL not configured, using in-memory repository")
		return repository.NewMemoryConversationsRepository(), func() {}
	}

	pgRepo, err := repository.NewPostgresConversationsRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize postgres repository, fallback to memory")
		return repository.NewMemoryConversationsRepository(), func() {}
	}
	logger.Info().Msg("postgres repository initialized")
	return pgRepo, pgRepo.Close
}

func setupQueue(
	ctx context.Context,
	cfg config.Config,
	logger zerolog.Logger,
) (queue.Producer, queue.Consumer, func()) {
	queueLogger := logger.With().Str("component", "queue").Logger()
	if cfg.RedisAddr == "" {
		logger.Info().Msg("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, 3, queueLogger)
		return local, local, func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Stream:      cfg.RedisStream,
		DLQStream:   cfg.RedisDLQ,
		Group:       cfg.RedisGroup,
		Consumer:    cfg.RedisConsumer,
		MaxAttempts: 3,
	}, queueLogger)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize redis streams queue, fallback to local")
		local := queue.NewLocalQueue(512, 3, queueLogger)
		return local, local, func() {}
	}

	logger.Info().Str("stream", cfg.RedisStream).Msg("redis streams queue initialized")
	return streams, streams, func() {
		_ = streams.Close()
	}
}

func setupCache(ctx context.Context, cfg config.Config, logger zerolog.Logger) (cache.Cache, func()) {
	memory := func() cache.Cache {
		return cache.NewMemoryCache(cache.Config{
			TTL:        cfg.GeoCacheTTL(),
			MaxEntries: cfg.GeoCacheMaxEntries,
		})
	}
	if cfg.RedisAddr == "" {
		return memory(), func() {}
	}

	redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.RedisCachePrefix,
		TTL:      cfg.GeoCacheTTL(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize redis cache, fallback to memory")
		return memory(), func() {}
	}
	logger.Info().Msg("redis geo cache initialized")
	return redisCache, func() {
		_ = redisCache.Close()
	}
}
