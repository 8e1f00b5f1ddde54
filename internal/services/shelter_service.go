package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SteveArevalo/CS499-CapStone/internal/cache"
	"github.com/SteveArevalo/CS499-CapStone/internal/messaging"
	"github.com/SteveArevalo/CS499-CapStone/internal/metrics"
	"github.com/SteveArevalo/CS499-CapStone/internal/models"
	"github.com/SteveArevalo/CS499-CapStone/internal/repositories"
	"github.com/SteveArevalo/CS499-CapStone/internal/tracing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultReportTTL = 10 * time.Minute

// ErrSearchDisabled is returned by SearchAnimals when no search index is
// configured
var ErrSearchDisabled = errors.New("search is disabled")

// AnimalStore is the record store behind the service
type AnimalStore interface {
	Create(ctx context.Context, data models.Record, lookup models.Query) (bool, error)
	Read(ctx context.Context, query models.Query) ([]models.Record, error)
	Update(ctx context.Context, query models.Query, update models.Query) (int64, error)
	Delete(ctx context.Context, query models.Query) (int64, error)
	AnalyzeAdoptions(ctx context.Context) ([]models.BreedAdoption, error)
	SeasonalAdoptionTrends(ctx context.Context, showPlot bool) ([]models.MonthlyAdoption, error)
	SeasonalDateField() string
}

// ReportCache stores computed reports
type ReportCache interface {
	Enabled() bool
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// AnimalIndex is the full-text index of animal records
type AnimalIndex interface {
	IndexAnimal(ctx context.Context, record models.Record) error
	SearchAnimals(ctx context.Context, text string, size int) ([]map[string]interface{}, error)
}

// ShelterServiceOptions configures a ShelterService. Cache, Index and Tracer
// are optional.
type ShelterServiceOptions struct {
	Store     AnimalStore
	Cache     ReportCache
	Index     AnimalIndex
	Metrics   *metrics.Metrics
	Tracer    tracing.Tracer
	ReportTTL time.Duration
}

// ShelterService handles animal record and report use cases for the API,
// the CLI and the worker
type ShelterService struct {
	store     AnimalStore
	cache     ReportCache
	index     AnimalIndex
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
	reportTTL time.Duration
}

// NewShelterService creates a new shelter service
func NewShelterService(opts ShelterServiceOptions) *ShelterService {
	s := &ShelterService{
		store:     opts.Store,
		cache:     opts.Cache,
		index:     opts.Index,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		reportTTL: opts.ReportTTL,
	}
	if s.metrics == nil {
		s.metrics = metrics.NewMetrics()
	}
	if s.tracer == nil {
		s.tracer = tracing.Disabled()
	}
	if s.reportTTL <= 0 {
		s.reportTTL = defaultReportTTL
	}
	return s
}

// Metrics returns the collector the service records into
func (s *ShelterService) Metrics() *metrics.Metrics {
	return s.metrics
}

// CreateAnimal inserts data unless a record matching lookup exists. New
// records invalidate the cached reports and are indexed for search.
func (s *ShelterService) CreateAnimal(ctx context.Context, data models.Record, lookup models.Query) (bool, error) {
	ctx, finish := s.begin(ctx, "animals.create")
	created, err := s.store.Create(ctx, data, lookup)
	finish(err)

	if !created {
		return false, err
	}

	s.metrics.IncrementCounter("animals_created")
	s.invalidateReports(ctx)

	if s.index != nil {
		if err := s.index.IndexAnimal(ctx, data); err != nil {
			s.metrics.IncrementCounter("search_index_failures")
			log.Warn().Err(err).Interface("animal_id", data[models.FieldAnimalID]).Msg("Failed to index animal")
		}
	}
	return true, nil
}

// ReadAnimals returns the records matching query
func (s *ShelterService) ReadAnimals(ctx context.Context, query models.Query) ([]models.Record, error) {
	ctx, finish := s.begin(ctx, "animals.read")
	records, err := s.store.Read(ctx, query)
	s.tracer.AddAttribute(newrelic.FromContext(ctx), "records", len(records))
	finish(err)

	s.metrics.IncrementCounterBy("animals_read", int64(len(records)))
	return records, err
}

// UpdateAnimals applies update to the records matching query
func (s *ShelterService) UpdateAnimals(ctx context.Context, query models.Query, update models.Query) (int64, error) {
	ctx, finish := s.begin(ctx, "animals.update")
	n, err := s.store.Update(ctx, query, update)
	finish(err)

	if n > 0 {
		s.metrics.IncrementCounterBy("animals_updated", n)
		s.invalidateReports(ctx)
	}
	return n, err
}

// DeleteAnimals removes the records matching query
func (s *ShelterService) DeleteAnimals(ctx context.Context, query models.Query) (int64, error) {
	ctx, finish := s.begin(ctx, "animals.delete")
	n, err := s.store.Delete(ctx, query)
	finish(err)

	if n > 0 {
		s.metrics.IncrementCounterBy("animals_deleted", n)
		s.invalidateReports(ctx)
	}
	return n, err
}

// AdoptionsByBreed returns the adoptions-by-breed report, from cache when
// available
func (s *ShelterService) AdoptionsByBreed(ctx context.Context) ([]models.BreedAdoption, error) {
	ctx, finish := s.begin(ctx, "reports.adoptions")

	var rows []models.BreedAdoption
	if s.cacheGet(ctx, cache.AdoptionsReportKey, &rows) {
		finish(nil)
		return rows, nil
	}

	rows, err := s.store.AnalyzeAdoptions(ctx)
	finish(err)
	if err == nil {
		s.cacheSet(ctx, cache.AdoptionsReportKey, rows)
	}
	return rows, err
}

// SeasonalTrends returns the seasonal adoption report. Plotting always runs
// the query so the chart reflects the store.
func (s *ShelterService) SeasonalTrends(ctx context.Context, showPlot bool) ([]models.MonthlyAdoption, error) {
	ctx, finish := s.begin(ctx, "reports.seasonal")
	key := cache.SeasonalReportKey(s.store.SeasonalDateField())

	var rows []models.MonthlyAdoption
	if !showPlot && s.cacheGet(ctx, key, &rows) {
		finish(nil)
		return rows, nil
	}

	rows, err := s.store.SeasonalAdoptionTrends(ctx, showPlot)
	finish(err)
	if err == nil {
		s.cacheSet(ctx, key, rows)
	}
	return rows, err
}

// SearchAnimals runs a full-text search over the indexed records
func (s *ShelterService) SearchAnimals(ctx context.Context, text string, size int) ([]map[string]interface{}, error) {
	if s.index == nil {
		return nil, ErrSearchDisabled
	}
	ctx, finish := s.begin(ctx, "animals.search")
	docs, err := s.index.SearchAnimals(ctx, text, size)
	finish(err)
	return docs, err
}

// RefreshReports recomputes both reports and rewrites the cache
func (s *ShelterService) RefreshReports(ctx context.Context) error {
	if s.cache == nil || !s.cache.Enabled() {
		log.Debug().Msg("Report cache disabled, skipping refresh")
		return nil
	}

	ctx, finish := s.begin(ctx, "reports.refresh")

	breeds, err := s.store.AnalyzeAdoptions(ctx)
	if err != nil {
		finish(err)
		return errors.Wrap(err, "failed to refresh adoptions report")
	}
	s.cacheSet(ctx, cache.AdoptionsReportKey, breeds)

	months, err := s.store.SeasonalAdoptionTrends(ctx, false)
	if err != nil {
		finish(err)
		return errors.Wrap(err, "failed to refresh seasonal report")
	}
	s.cacheSet(ctx, cache.SeasonalReportKey(s.store.SeasonalDateField()), months)

	finish(nil)
	log.Info().Int("breeds", len(breeds)).Int("months", len(months)).Msg("Reports refreshed")
	return nil
}

// ProcessIntakeMessage creates the record carried by an intake message.
// Duplicates are accepted so the message is not redelivered; malformed
// messages are reported as poison.
func (s *ShelterService) ProcessIntakeMessage(ctx context.Context, msg *azservicebus.ReceivedMessage) error {
	var intake models.IntakeMessage
	if err := json.Unmarshal(msg.Body, &intake); err != nil {
		return errors.Wrapf(messaging.ErrPoisonMessage, "invalid intake message: %v", err)
	}
	if intake.EventType != models.EventAnimalIntake {
		return errors.Wrapf(messaging.ErrPoisonMessage, "unknown event type %q", intake.EventType)
	}

	data, err := models.ParseRecord(intake.Data)
	if err != nil {
		return errors.Wrapf(messaging.ErrPoisonMessage, "invalid intake data: %v", err)
	}
	lookup, err := models.ParseQuery(intake.Lookup)
	if err != nil {
		return errors.Wrapf(messaging.ErrPoisonMessage, "invalid intake lookup: %v", err)
	}
	if len(lookup) == 0 {
		if id, ok := data[models.FieldAnimalID]; ok {
			lookup = models.Query{models.FieldAnimalID: id}
		}
	}

	s.metrics.IncrementCounter("intake_messages")
	created, err := s.CreateAnimal(ctx, data, lookup)
	switch {
	case errors.Is(err, repositories.ErrDuplicateKey):
		log.Info().Str("message_id", msg.MessageID).Interface("lookup", lookup).Msg("Intake record already exists, skipping")
		return nil
	case errors.Is(err, repositories.ErrInvalidArgument):
		return errors.Wrapf(messaging.ErrPoisonMessage, "invalid intake record: %v", err)
	case err != nil:
		return err
	case !created:
		return errors.New("intake record was not acknowledged by the store")
	}

	log.Info().Str("message_id", msg.MessageID).Interface("animal_id", data[models.FieldAnimalID]).Msg("Intake record created")
	return nil
}

// begin starts a segment of the request transaction carried by ctx, or a
// new transaction when there is none. finish records the outcome.
func (s *ShelterService) begin(ctx context.Context, name string) (context.Context, func(err error)) {
	start := time.Now()

	if txn := newrelic.FromContext(ctx); txn != nil {
		seg := s.tracer.StartSegment(txn, name)
		return ctx, func(err error) {
			seg.End()
			if isFailure(err) {
				s.tracer.RecordError(txn, err)
			}
			s.metrics.Observe(name, start, failure(err))
		}
	}

	txn := s.tracer.StartTransaction(name)
	if txn != nil {
		ctx = newrelic.NewContext(ctx, txn)
	}
	return ctx, func(err error) {
		if isFailure(err) {
			s.tracer.RecordError(txn, err)
		}
		s.tracer.EndTransaction(txn)
		s.metrics.Observe(name, start, failure(err))
	}
}

// Duplicates and invalid arguments are caller errors, not service failures.
func isFailure(err error) bool {
	return err != nil &&
		!errors.Is(err, repositories.ErrDuplicateKey) &&
		!errors.Is(err, repositories.ErrInvalidArgument)
}

func failure(err error) error {
	if isFailure(err) {
		return err
	}
	return nil
}

func (s *ShelterService) cacheGet(ctx context.Context, key string, value interface{}) bool {
	if s.cache == nil || !s.cache.Enabled() {
		return false
	}
	if err := s.cache.Get(ctx, key, value); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Str("key", key).Msg("Failed to read report cache")
		}
		s.metrics.IncrementCounter("report_cache_misses")
		return false
	}
	s.metrics.IncrementCounter("report_cache_hits")
	return true
}

func (s *ShelterService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.reportTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to write report cache")
	}
}

func (s *ShelterService) invalidateReports(ctx context.Context) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	keys := []string{cache.AdoptionsReportKey, cache.SeasonalReportKey(s.store.SeasonalDateField())}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("Failed to invalidate report cache")
	}
}
