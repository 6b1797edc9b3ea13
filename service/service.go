// package service provides functions and methods
// for creating and running the api of the evm rpc middleware service
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/negroni"

	"github.com/kava-labs/evm-rpc-middleware/clients/blocktracker"
	"github.com/kava-labs/evm-rpc-middleware/clients/cache"
	"github.com/kava-labs/evm-rpc-middleware/clients/database"
	"github.com/kava-labs/evm-rpc-middleware/clients/database/migrations"
	"github.com/kava-labs/evm-rpc-middleware/clients/database/noop"
	"github.com/kava-labs/evm-rpc-middleware/config"
	"github.com/kava-labs/evm-rpc-middleware/logging"
	"github.com/kava-labs/evm-rpc-middleware/routines"
	"github.com/kava-labs/evm-rpc-middleware/service/batchmdw"
)

const maxRequestBodyBytes = 10 << 20

// Clients wraps the external dependencies of the service
type Clients struct {
	Tracker blocktracker.BlockTracker
	// Cache is nil when caching is disabled
	Cache    cache.BlockCache
	Database database.MetricsDatabase
}

// ProxyService represents an instance of the evm rpc middleware service API
type ProxyService struct {
	httpProxy      *http.Server
	Pipeline       *Pipeline
	BatchProcessor *batchmdw.BatchProcessor
	Clients        Clients
	*logging.ServiceLogger
}

// New creates the clients described by config and returns a new ProxyService
// using them and error (if any). Background routines are bound to ctx.
func New(ctx context.Context, config config.Config, serviceLogger *logging.ServiceLogger) (ProxyService, error) {
	clients, err := createClients(ctx, config, serviceLogger)
	if err != nil {
		return ProxyService{}, err
	}

	return NewWithClients(config, clients, serviceLogger)
}

// NewWithClients returns a new ProxyService answering requests
// with the given clients and error (if any)
func NewWithClients(config config.Config, clients Clients, serviceLogger *logging.ServiceLogger) (ProxyService, error) {
	pipeline, err := NewPipeline(NewPipelineConfig(config), clients.Tracker, clients.Cache, clients.Database, serviceLogger)
	if err != nil {
		return ProxyService{}, err
	}

	service := ProxyService{
		Pipeline:       pipeline,
		BatchProcessor: batchmdw.NewBatchProcessor(pipeline, batchmdw.DefaultMaxConcurrency, serviceLogger.Component("batch")),
		Clients:        clients,
		ServiceLogger:  serviceLogger,
	}

	// create an http router for registering handlers for a given route
	mux := http.NewServeMux()

	mux.HandleFunc("/", createRPCHandler(&service))
	mux.HandleFunc("/healthcheck", createHealthcheckHandler(&service))
	mux.HandleFunc("/servicecheck", createServicecheckHandler(&service))
	mux.Handle("/metrics", promhttp.Handler())

	n := negroni.New()
	n.Use(createRecoveryMiddleware(serviceLogger))
	n.Use(createRequestLoggingMiddleware(serviceLogger))
	n.UseHandler(mux)

	// create an http server for the caller to start at their own discretion
	service.httpProxy = &http.Server{
		Addr:              fmt.Sprintf(":%s", config.ProxyServicePort),
		Handler:           n,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return service, nil
}

// Handler returns the http handler serving every route of the service
func (p *ProxyService) Handler() http.Handler {
	return p.httpProxy.Handler
}

// Run runs the proxy service, returning error (if any) in the event
// the proxy service stops
func (p *ProxyService) Run() error {
	return p.httpProxy.ListenAndServe()
}

// Shutdown gracefully stops the http server and closes the clients holding connections
func (p *ProxyService) Shutdown(ctx context.Context) error {
	err := p.httpProxy.Shutdown(ctx)

	for _, client := range []interface{}{p.Clients.Cache, p.Clients.Database} {
		if closer, ok := client.(io.Closer); ok {
			err = errors.Join(err, closer.Close())
		}
	}

	return err
}

func createClients(ctx context.Context, config config.Config, serviceLogger *logging.ServiceLogger) (Clients, error) {
	var clients Clients

	ethClient, err := ethclient.DialContext(ctx, config.UpstreamRPCURL)
	if err != nil {
		return clients, fmt.Errorf("error creating block tracker client: %w", err)
	}

	tracker, err := blocktracker.NewPollingBlockTracker(blocktracker.PollingBlockTrackerConfig{
		Client:       ethClient,
		PollInterval: config.BlockTrackerPollInterval,
		Logger:       serviceLogger.Component("block_tracker"),
	})
	if err != nil {
		return clients, err
	}
	tracker.Run(ctx)
	clients.Tracker = tracker

	clients.Cache, err = createBlockCache(config, serviceLogger)
	if err != nil {
		return clients, err
	}

	clients.Database, err = createDatabaseClient(ctx, config, serviceLogger)
	if err != nil {
		return clients, err
	}

	return clients, nil
}

func createBlockCache(serviceConfig config.Config, serviceLogger *logging.ServiceLogger) (cache.BlockCache, error) {
	if !serviceConfig.CacheEnabled {
		return nil, nil
	}

	switch serviceConfig.CacheBackend {
	case config.CACHE_BACKEND_REDIS:
		return cache.NewRedisCache(&cache.RedisConfig{
			Address:  serviceConfig.RedisEndpointURL,
			Password: serviceConfig.RedisPassword,
			DB:       serviceConfig.RedisDB,
			Prefix:   serviceConfig.CachePrefix,
		}, serviceLogger.Component("redis"))
	default:
		return cache.NewInMemoryCache(), nil
	}
}

func createDatabaseClient(ctx context.Context, config config.Config, serviceLogger *logging.ServiceLogger) (database.MetricsDatabase, error) {
	if !config.MetricDatabaseEnabled {
		return noop.New(), nil
	}

	db, err := database.NewPostgresClient(database.PostgresDatabaseConfig{
		DatabaseName:                     config.DatabaseName,
		DatabaseEndpointURL:              config.DatabaseEndpointURL,
		DatabaseUsername:                 config.DatabaseUserName,
		DatabasePassword:                 config.DatabasePassword,
		ReadTimeoutSeconds:               config.DatabaseReadTimeoutSeconds,
		DatabaseMaxIdleConnections:       config.DatabaseMaxIdleConnections,
		DatabaseConnectionMaxIdleSeconds: config.DatabaseConnectionMaxIdleSeconds,
		DatabaseMaxOpenConnections:       config.DatabaseMaxOpenConnections,
		SSLEnabled:                       config.DatabaseSSLEnabled,
		QueryLoggingEnabled:              config.DatabaseQueryLoggingEnabled,
		Logger:                           serviceLogger.Component("database"),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating database client: %w", err)
	}

	if config.RunDatabaseMigrations {
		// wait for database to be reachable before running migrations
		for {
			if err := db.HealthCheck(); err == nil {
				break
			}

			serviceLogger.Debug().Msg("unable to connect to database, will retry in 1 second")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
			}
		}

		if _, err := database.Migrate(ctx, db.DB, *migrations.Migrations, serviceLogger); err != nil {
			return nil, fmt.Errorf("error running database migrations: %w", err)
		}
	}

	if config.MetricPruningEnabled {
		routine, err := routines.NewMetricPruningRoutine(routines.MetricPruningRoutineConfig{
			Interval:                     config.MetricPruningRoutineInterval,
			StartDelay:                   config.MetricPruningRoutineDelayFirstRun,
			MaxRequestMetricsHistoryDays: config.MetricPruningMaxHistoryDays,
			Database:                     db,
			Logger:                       serviceLogger.Component("metric_pruning"),
		})
		if err != nil {
			return nil, err
		}

		errs := routine.Run(ctx)
		go func() {
			for range errs {
				// logged by the routine
			}
		}()
	}

	return db, nil
}
