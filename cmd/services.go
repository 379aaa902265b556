package cmd

import (
	"context"
	"os"
	"time"

	"sjsage522/dealrefresher/config"
	"sjsage522/dealrefresher/internal/crawler"
	"sjsage522/dealrefresher/internal/deals"
	"sjsage522/dealrefresher/internal/picnic"
	"sjsage522/dealrefresher/internal/store"
	"sjsage522/dealrefresher/logger"
	"sjsage522/dealrefresher/services/cache"
	"sjsage522/dealrefresher/services/publisher"
	"sjsage522/dealrefresher/services/worker"
)

const (
	runLockKey = "dealrefresher:refresh"
	// runLockTTL outlives the longest possible run.
	runLockTTL = 30 * time.Minute
)

// Services holds all the initialized services
type Services struct {
	Store     *store.Store
	Client    *picnic.Client
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Deals     *deals.Service
	Worker    *worker.Worker
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices opens the store and builds the refresh pipeline. Without
// store credentials the query side still works and Worker stays nil.
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.Default
	services := &Services{}

	dsn := cfg.DBPath
	if cfg.DBDriver == "postgres" {
		dsn = cfg.DatabaseURL
	}
	st, err := store.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, err
	}
	services.Store = st
	log.Info().Str("driver", cfg.DBDriver).Msg("Opened promotion cache store")

	var fetcher deals.Fetcher
	if cfg.HasPicnicCredentials() {
		client, err := picnic.New(picnic.Options{
			Username:    cfg.PicnicUsername,
			Password:    cfg.PicnicPassword,
			CountryCode: cfg.PicnicCountryCode,
			BaseURL:     cfg.PicnicBaseURL,
			MinInterval: 100 * time.Millisecond,
		})
		if err != nil {
			services.Cleanup()
			return nil, err
		}
		services.Client = client
		fetcher = client
	} else {
		log.Warn().Msg("PICNIC_USERNAME / PICNIC_PASSWORD not set, refresh and live lookups are disabled")
	}

	services.Deals = deals.NewService(st, fetcher)

	if services.Client == nil {
		return services, nil
	}

	memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
	if err := memcacheService.Ping(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, run lock is process local")
	} else {
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}
	services.Cache = memcacheService

	redisPublisher := publisher.NewRedisPublisher(
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if err := redisPublisher.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, refresh events are not published")
		redisPublisher.Close()
		services.Publisher = publisher.Nop{}
	} else {
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)", cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		services.Publisher = redisPublisher
	}

	host, _ := os.Hostname()
	lock := cache.NewRunLock(services.Cache, runLockKey, host, runLockTTL)
	dealCrawler := crawler.NewDealCrawler(services.Client, st)
	services.Worker = worker.NewWorker(dealCrawler, services.Publisher, lock, cfg.RefreshInterval)

	return services, nil
}
