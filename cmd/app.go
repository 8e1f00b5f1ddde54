package cmd

import (
	"context"

	"github.com/SteveArevalo/CS499-CapStone/config"
	"github.com/SteveArevalo/CS499-CapStone/internal/api/handlers"
	"github.com/SteveArevalo/CS499-CapStone/internal/cache"
	"github.com/SteveArevalo/CS499-CapStone/internal/database"
	"github.com/SteveArevalo/CS499-CapStone/internal/metrics"
	"github.com/SteveArevalo/CS499-CapStone/internal/repositories"
	"github.com/SteveArevalo/CS499-CapStone/internal/search"
	"github.com/SteveArevalo/CS499-CapStone/internal/services"
	"github.com/SteveArevalo/CS499-CapStone/internal/tracing"

	"github.com/rs/zerolog/log"
)

// app holds the dependencies shared by every command
type app struct {
	mongo   *database.Mongo
	cache   *cache.RedisCache
	search  *search.ElasticClient
	tracer  tracing.Tracer
	metrics *metrics.Metrics
	service *services.ShelterService
}

// newApp connects to MongoDB and wires the optional cache, search index and
// tracer. Only the MongoDB connection is required.
func newApp(ctx context.Context, cfg config.Config, plotter repositories.Plotter) (*app, error) {
	mongo, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}

	repo, err := repositories.NewAnimalRepository(repositories.AnimalRepositoryOptions{
		Collection:        mongo.Collection(),
		Timeout:           cfg.DB.Timeout,
		SeasonalDateField: cfg.Analytics.SeasonalDateField,
		Plotter:           plotter,
	})
	if err != nil {
		_ = mongo.Close(context.Background())
		return nil, err
	}

	a := &app{
		mongo:   mongo,
		metrics: metrics.NewMetrics(),
	}
	opts := services.ShelterServiceOptions{
		Store:     repo,
		Metrics:   a.metrics,
		ReportTTL: cfg.Cache.ReportTTL,
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	} else if redisCache.Enabled() {
		a.cache = redisCache
		opts.Cache = redisCache
	}

	if cfg.Elastic.Enabled {
		es, err := search.NewElasticClient(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		} else {
			a.search = es
			opts.Index = es
		}
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		a.tracer = tracing.Disabled()
	} else {
		a.tracer = tracer
	}
	opts.Tracer = a.tracer

	a.service = services.NewShelterService(opts)
	return a, nil
}

// healthChecks returns a probe per configured dependency
func (a *app) healthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		a.mongo.Name(): a.mongo.Ping,
	}
	if a.cache != nil {
		checks["redis"] = a.cache.Ping
	}
	if a.search != nil {
		checks["elasticsearch"] = a.search.Ping
	}
	return checks
}

func (a *app) close(ctx context.Context) {
	a.tracer.Close()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis connection")
		}
	}
	if err := a.mongo.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to close MongoDB connection")
	}
}
