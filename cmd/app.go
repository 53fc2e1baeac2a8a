package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/chrisdamba/messforecast/internal/cloudwriter"
	"github.com/chrisdamba/messforecast/internal/forecaster"
	"github.com/chrisdamba/messforecast/internal/ingredients"
	"github.com/chrisdamba/messforecast/internal/logging"
	"github.com/chrisdamba/messforecast/internal/metrics"
	"github.com/chrisdamba/messforecast/internal/models"
	"github.com/chrisdamba/messforecast/internal/output"
	"github.com/chrisdamba/messforecast/internal/pipeline"
	"github.com/chrisdamba/messforecast/internal/repositories"
	"github.com/chrisdamba/messforecast/internal/repositories/memory"
	mongorepo "github.com/chrisdamba/messforecast/internal/repositories/mongo"
	"github.com/chrisdamba/messforecast/internal/repositories/postgres"
)

// app holds everything a command needs, built once from the configuration.
type app struct {
	cfg      *models.Config
	registry *prometheus.Registry
	metrics  *metrics.Pipeline

	attendance  repositories.AttendanceRepository
	menus       repositories.MenuRepository
	ingredients repositories.IngredientRepository
	orders      repositories.OrderRepository

	pipeline *pipeline.Pipeline
	pool     *pgxpool.Pool
	closers  []func() error
}

func newApp(ctx context.Context, cfg *models.Config) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if err := a.openRepositories(ctx); err != nil {
		return err
	}

	sink, err := a.buildSinks(ctx)
	if err != nil {
		return err
	}

	policy, err := ingredients.ParseMatchPolicy(cfg.IngredientMatchPolicy)
	if err != nil {
		return &pipeline.ConfigurationError{Err: err}
	}

	fc := forecaster.New(forecaster.Config{
		Horizon:         cfg.ForecastHorizon,
		MinObservations: cfg.MinObservations,
		SeasonLength:    cfg.SeasonLength,
		Workers:         cfg.FitWorkers,
		CacheSize:       cfg.FitCacheSize,
	}, a.metrics)

	deps := pipeline.Deps{
		Attendance:  a.attendance,
		Menus:       a.menus,
		Ingredients: a.ingredients,
		Orders:      a.orders,
		Sink:        sink,
		Forecaster:  fc,
		Estimator:   ingredients.NewEstimator(policy),
		Metrics:     a.metrics,
	}
	a.pipeline, err = pipeline.New(deps, pipeline.Options{
		FitTimeout:      cfg.FitTimeout,
		IngredientWeeks: cfg.IngredientWeeks,
	})
	return err
}

func (a *app) openRepositories(ctx context.Context) error {
	switch a.cfg.Storage {
	case models.StoragePostgres:
		pool, err := a.postgresPool(ctx)
		if err != nil {
			return err
		}
		a.attendance = postgres.NewAttendanceRepository(pool)
		a.menus = postgres.NewMenuRepository(pool)
		a.ingredients = postgres.NewIngredientRepository(pool)
	default:
		store, err := memory.Open(a.cfg.DataDir)
		if err != nil {
			return &pipeline.ConfigurationError{Err: fmt.Errorf("opening file store: %w", err)}
		}
		a.attendance = store.Attendance()
		a.menus = store.Menus()
		a.ingredients = store.Ingredients()
		a.orders = store.Orders()
	}

	if a.cfg.MongoURI != "" {
		client, err := mongorepo.Connect(ctx, a.cfg.MongoURI)
		if err != nil {
			return &pipeline.ConfigurationError{Err: err}
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		a.orders = mongorepo.NewOrderRepository(client.Database(a.cfg.MongoDatabase), a.cfg.MongoCollection)
		logging.Info().Str("database", a.cfg.MongoDatabase).Str("collection", a.cfg.MongoCollection).
			Msg("reading orders from mongo")
	}
	return nil
}

// postgresPool connects and migrates once, however many components need the database.
func (a *app) postgresPool(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	pool, err := postgres.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, &pipeline.ConfigurationError{Err: err}
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	if err := postgres.Migrate(ctx, pool); err != nil {
		return nil, &pipeline.ConfigurationError{Err: err}
	}
	a.pool = pool
	return pool, nil
}

// buildSinks returns nil when no sink is configured.
func (a *app) buildSinks(ctx context.Context) (output.SnapshotSink, error) {
	var sinks []output.SnapshotSink
	for _, name := range a.cfg.Sinks {
		switch name {
		case models.SinkJSONL:
			jsonl := output.NewJSONLSink(a.cfg.OutputPath, a.cfg.OutputFolder)
			logging.Debug().Str("path", jsonl.Path()).Msg("appending snapshots to jsonl")
			sinks = append(sinks, jsonl)
		case models.SinkParquet:
			if a.cfg.CloudStorage.Provider == models.CloudProviderS3 {
				factory, err := cloudwriter.NewS3WriterFactory(ctx, a.cfg.CloudStorage.Region)
				if err != nil {
					return nil, &pipeline.ConfigurationError{Err: err}
				}
				sinks = append(sinks, output.NewCloudParquetSink(factory, a.cfg.CloudStorage.BucketName, a.cfg.OutputFolder))
				continue
			}
			sinks = append(sinks, output.NewParquetSink(a.cfg.OutputPath, a.cfg.OutputFolder))
		case models.SinkKafka:
			producer, err := output.NewSaramaProducer(a.cfg.KafkaBrokerList)
			if err != nil {
				return nil, &pipeline.ConfigurationError{Err: err}
			}
			sinks = append(sinks, output.NewKafkaSink(producer, a.cfg.KafkaTopic))
		case models.SinkPostgres:
			pool, err := a.postgresPool(ctx)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, postgres.NewSnapshotRepository(pool))
		default:
			return nil, &pipeline.ConfigurationError{Err: fmt.Errorf("unsupported sink %q", name)}
		}
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	multi := output.NewMultiSink(a.metrics, sinks...)
	a.closers = append(a.closers, multi.Close)
	logging.Info().Strs("sinks", sinkNames(multi)).Msg("snapshot sinks configured")
	return multi, nil
}

func sinkNames(multi *output.MultiSink) []string {
	names := make([]string, 0, len(multi.Sinks()))
	for _, s := range multi.Sinks() {
		names = append(names, s.Name())
	}
	return names
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// setup loads the configuration and builds the app for a command.
func setup(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}
