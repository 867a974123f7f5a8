package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/fastprodman/ledgerengine/internal/api"
	"github.com/fastprodman/ledgerengine/internal/config"
	"github.com/fastprodman/ledgerengine/internal/infra/logging"
	"github.com/fastprodman/ledgerengine/internal/infra/pgutils"
	"github.com/fastprodman/ledgerengine/internal/metrics"
	accountspg "github.com/fastprodman/ledgerengine/internal/repos/accounts/postgres"
	"github.com/fastprodman/ledgerengine/internal/repos/deadletters"
	deadletterskafka "github.com/fastprodman/ledgerengine/internal/repos/deadletters/kafka"
	deadletterspg "github.com/fastprodman/ledgerengine/internal/repos/deadletters/postgres"
	"github.com/fastprodman/ledgerengine/internal/services/engine"
	"github.com/fastprodman/ledgerengine/pkg/boundedqueue"
	"github.com/fastprodman/ledgerengine/pkg/envconf"
	"github.com/fastprodman/ledgerengine/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

//nolint:funlen
func run(ctx context.Context) (retErr error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg := new(apiConfig)

	err = envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	err = cfg.validate()
	if err != nil {
		return err
	}

	logging.SetupJSON("ledger-api", cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add("close db", func(context.Context) error {
		return db.Close()
	})

	sink, err := newDeadLetterSink(cfg.DeadLetter, db)
	if err != nil {
		return err
	}

	// --- Engine ---
	queue := boundedqueue.New[engine.Request](cfg.Engine.Capacity())
	agg := metrics.New(queue.Len)
	store := accountspg.New(db)

	strategy, err := engine.NewStrategy(cfg.Engine, engine.Deps{
		Queue:       queue,
		Store:       store,
		Metrics:     agg,
		DeadLetters: sink,
		Retryable:   pgutils.IsTransient,
	})
	if err != nil {
		return fmt.Errorf("init strategy: %w", err)
	}

	sampler := engine.NewSampler(store, agg, cfg.Engine.SamplerInterval)
	admission := engine.NewAdmission(queue, agg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		agg,
		collectors.NewGoCollector(),
		collectors.NewDBStatsCollector(db, "ledger"),
	)

	// --- Supervised tasks ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return strategy.Run(gctx)
	})

	g.Go(func() error {
		return sampler.Run(gctx)
	})

	// Runs after the server stops accepting requests, so in-flight work
	// finishes before the sinks and the pool close.
	shutdownqueue.Add("engine", func(c context.Context) error {
		done := make(chan error, 1)

		go func() { done <- g.Wait() }()

		select {
		case err := <-done:
			return err
		case <-c.Done():
			return fmt.Errorf("wait for engine: %w", c.Err())
		}
	})

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.NewHandler(admission, agg, store), reg)

	shutdownqueue.Add("http server", func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	})

	slog.Info("API started",
		"port", cfg.Port,
		"strategy", strategy.Name(),
		"queue_capacity", queue.Cap(),
	)

	// Either a signal or a failed task; deferred shutdown does the rest and
	// reports the task error.
	<-gctx.Done()

	slog.Info("API stopping", "queued", queue.Len())

	return nil
}

func newDeadLetterSink(cfg config.DeadLetter, db *sql.DB) (deadletters.Sink, error) {
	switch cfg.Sink {
	case config.SinkLog:
		return deadletters.LogSink{}, nil
	case config.SinkPostgres:
		return deadletterspg.New(db), nil
	case config.SinkKafka:
		sink := deadletterskafka.New(cfg.KafkaBrokers, cfg.KafkaTopic)

		shutdownqueue.Add("kafka writer", func(context.Context) error {
			return sink.Close()
		})

		return sink, nil
	default:
		return nil, fmt.Errorf("%w: unknown dead-letter sink %q", config.ErrInvalidConfig, cfg.Sink)
	}
}
