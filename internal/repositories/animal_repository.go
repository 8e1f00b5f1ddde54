package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/SteveArevalo/CS499-CapStone/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultTimeout           = 10 * time.Second
	defaultSeasonalDateField = models.FieldDateOfBirth
)

// Plotter renders the seasonal adoption series for display
type Plotter interface {
	PlotMonthlyAdoptions(rows []models.MonthlyAdoption) error
}

// AnimalRepositoryOptions configures an AnimalRepository
type AnimalRepositoryOptions struct {
	Collection *mongo.Collection
	Timeout    time.Duration
	// SeasonalDateField is the date field bucketed by month in
	// SeasonalAdoptionTrends. Defaults to date_of_birth.
	SeasonalDateField string
	Plotter           Plotter
	Logger            *zerolog.Logger
}

// AnimalRepository provides CRUD and analytics over the animals collection
type AnimalRepository struct {
	coll      collection
	timeout   time.Duration
	dateField string
	plotter   Plotter
	log       zerolog.Logger
}

// NewAnimalRepository creates a new animal repository
func NewAnimalRepository(opts AnimalRepositoryOptions) (*AnimalRepository, error) {
	if opts.Collection == nil {
		return nil, errors.New("collection is required")
	}
	return newAnimalRepository(mongoCollection{coll: opts.Collection}, opts), nil
}

func newAnimalRepository(coll collection, opts AnimalRepositoryOptions) *AnimalRepository {
	r := &AnimalRepository{
		coll:      coll,
		timeout:   opts.Timeout,
		dateField: opts.SeasonalDateField,
		plotter:   opts.Plotter,
		log:       log.Logger,
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if r.dateField == "" {
		r.dateField = defaultSeasonalDateField
	}
	if opts.Logger != nil {
		r.log = *opts.Logger
	}
	return r
}

// SeasonalDateField returns the field bucketed by SeasonalAdoptionTrends
func (r *AnimalRepository) SeasonalDateField() string {
	return r.dateField
}

// Create inserts data unless a record matching lookup already exists.
//
// It returns true when the insert was acknowledged by the store.
func (r *AnimalRepository) Create(ctx context.Context, data models.Record, lookup models.Query) (bool, error) {
	if len(data) == 0 {
		return false, errors.Wrap(ErrInvalidArgument, "data must be a non-empty document")
	}
	if len(lookup) == 0 {
		return false, errors.Wrap(ErrInvalidArgument, "lookup must be a non-empty document")
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := r.coll.FindOne(ctx, bson.M(lookup)).Err()
	switch {
	case err == nil:
		return false, ErrDuplicateKey
	case !errors.Is(err, mongo.ErrNoDocuments):
		return false, r.storeFailure("create", err)
	}

	if _, err := r.coll.InsertOne(ctx, bson.M(data)); err != nil {
		if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
			return false, nil
		}
		return false, r.storeFailure("create", err)
	}
	return true, nil
}

// Read returns every record matching query. A nil or empty query matches all
// records.
func (r *AnimalRepository) Read(ctx context.Context, query models.Query) ([]models.Record, error) {
	filter := bson.M(query)
	if filter == nil {
		filter = bson.M{}
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return []models.Record{}, r.storeFailure("read", err)
	}
	records := []models.Record{}
	if err := cur.All(ctx, &records); err != nil {
		return []models.Record{}, r.storeFailure("read", err)
	}
	return records, nil
}

// Update applies update to every record matching query and returns the
// number of records modified.
func (r *AnimalRepository) Update(ctx context.Context, query models.Query, update models.Query) (int64, error) {
	if len(query) == 0 {
		return 0, errors.Wrap(ErrInvalidArgument, "query must be a non-empty document")
	}
	if len(update) == 0 {
		return 0, errors.Wrap(ErrInvalidArgument, "update must be a non-empty document")
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateMany(ctx, bson.M(query), bson.M(update))
	if err != nil {
		return 0, r.storeFailure("update", err)
	}
	return res.ModifiedCount, nil
}

// Delete removes every record matching query and returns the number removed.
func (r *AnimalRepository) Delete(ctx context.Context, query models.Query) (int64, error) {
	if len(query) == 0 {
		return 0, errors.Wrap(ErrInvalidArgument, "query must be a non-empty document")
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.DeleteMany(ctx, bson.M(query))
	if err != nil {
		return 0, r.storeFailure("delete", err)
	}
	return res.DeletedCount, nil
}

// AnalyzeAdoptions counts adoptions per breed, most adopted first.
func (r *AnimalRepository) AnalyzeAdoptions(ctx context.Context) ([]models.BreedAdoption, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var groups []breedGroup
	if err := r.aggregate(ctx, adoptionsByBreedPipeline(), &groups); err != nil {
		return []models.BreedAdoption{}, r.storeFailure("analyze adoptions", err)
	}

	rows := make([]models.BreedAdoption, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, models.BreedAdoption{Breed: breedName(g.Breed), Adoptions: g.Adoptions})
	}
	return rows, nil
}

// breedGroup keeps the group key untyped since breed is not guaranteed to be
// a string in every record
type breedGroup struct {
	Breed     interface{} `bson:"_id"`
	Adoptions int64       `bson:"adoption_count"`
}

func breedName(v interface{}) string {
	switch b := v.(type) {
	case nil:
		return ""
	case string:
		return b
	default:
		return fmt.Sprint(b)
	}
}

// SeasonalAdoptionTrends counts adoptions per calendar month of the
// configured date field, ascending by month. When showPlot is set and there
// is data, the series is handed to the plotter.
func (r *AnimalRepository) SeasonalAdoptionTrends(ctx context.Context, showPlot bool) ([]models.MonthlyAdoption, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows := []models.MonthlyAdoption{}
	if err := r.aggregate(ctx, seasonalAdoptionsPipeline(r.dateField), &rows); err != nil {
		return []models.MonthlyAdoption{}, r.storeFailure("seasonal adoption trends", err)
	}

	if showPlot && len(rows) > 0 && r.plotter != nil {
		if err := r.plotter.PlotMonthlyAdoptions(rows); err != nil {
			r.log.Warn().Err(err).Msg("Failed to render seasonal adoption chart")
		}
	}
	return rows, nil
}

func (r *AnimalRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline, out interface{}) error {
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (r *AnimalRepository) storeFailure(op string, err error) error {
	r.log.Error().Err(err).Str("operation", op).Msg("Animal repository operation failed")
	return &storeError{op: op, err: err}
}

func (r *AnimalRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, r.timeout)
}

func adoptionsByBreedPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: models.FieldOutcomeType, Value: models.OutcomeAdoption}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: convert("$"+models.FieldBreed, "string", "$"+models.FieldBreed)},
			{Key: "adoption_count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "adoption_count", Value: -1},
			{Key: "_id", Value: 1},
		}}},
	}
}

// The date field may hold BSON dates or the ISO date strings the published
// dataset stores. Records whose date cannot be converted are left out.
func seasonalAdoptionsPipeline(dateField string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: models.FieldOutcomeType, Value: models.OutcomeAdoption}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "month", Value: bson.D{{Key: "$month", Value: convert("$"+dateField, "date", nil)}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "month", Value: bson.D{{Key: "$ne", Value: nil}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$month"},
			{Key: "adoptions", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

// convert builds a $convert expression that yields onError instead of
// failing the aggregation, and null for missing input
func convert(input string, to string, onError interface{}) bson.D {
	return bson.D{{Key: "$convert", Value: bson.D{
		{Key: "input", Value: input},
		{Key: "to", Value: to},
		{Key: "onError", Value: onError},
		{Key: "onNull", Value: nil},
	}}}
}

type collection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) singleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (cursor, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (cursor, error)
}

type singleResult interface {
	Err() error
}

type cursor interface {
	All(ctx context.Context, results interface{}) error
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) singleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c mongoCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (cursor, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (c mongoCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, document, opts...)
}

func (c mongoCollection) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.coll.UpdateMany(ctx, filter, update, opts...)
}

func (c mongoCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	return c.coll.DeleteMany(ctx, filter, opts...)
}

func (c mongoCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (cursor, error) {
	cur, err := c.coll.Aggregate(ctx, pipeline, opts...)
	if err != nil {
		return nil, err
	}
	return cur, nil
}
