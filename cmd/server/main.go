package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	bankhandler "foodvote/internal/bank/handler"
	"foodvote/internal/bank/loader"
	"foodvote/internal/bank/source"
	"foodvote/internal/counter/store"
	"foodvote/internal/platform/config"
	"foodvote/internal/platform/httpserver"
	"foodvote/internal/platform/logger"
	"foodvote/internal/platform/metrics"
	"foodvote/internal/platform/redis"
	"foodvote/internal/search"
	httptransport "foodvote/internal/transport/http"
	"foodvote/internal/votes"
	votehandler "foodvote/internal/votes/handler"
	votemetrics "foodvote/internal/votes/metrics"
	"foodvote/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	counters, err := store.NewRedis(redisClient, store.WithHashKey(cfg.Redis.HashKey))
	if err != nil {
		return err
	}

	src, err := bankSource(cfg.Bank)
	if err != nil {
		return err
	}
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.Bank.FetchTimeout)
	initial, err := loader.Fetch(fetchCtx, src)
	cancel()
	if err != nil {
		return fmt.Errorf("initial registry load from %s: %w", src.Describe(), err)
	}
	log.Info("registry loaded",
		"source", src.Describe(),
		"foods", initial.Foods.Len(),
		"locations", initial.Locations.Len(),
		"checksum", initial.Checksum,
	)
	holder := loader.NewHolder(initial)

	voteService, err := votes.New(holder, counters,
		votes.WithLogger(log),
		votes.WithMetrics(votemetrics.New()),
	)
	if err != nil {
		return err
	}
	if _, err := voteService.InitializeCounters(ctx, initial); err != nil {
		return err
	}

	sink, closeSink, err := searchSink(ctx, cfg.Search, log)
	if err != nil {
		return err
	}
	defer closeSink()
	syncer, err := search.New(holder, counters, sink,
		search.WithLogger(log),
		search.WithInterval(cfg.Search.Interval),
	)
	if err != nil {
		return err
	}

	reloadOpts := []loader.Option{
		loader.WithLogger(log),
		loader.WithMetrics(loader.NewMetrics()),
		loader.WithInterval(cfg.Bank.ReloadInterval),
		loader.OnSwap(func(ctx context.Context, _, next *loader.Snapshot) {
			if _, err := voteService.InitializeCounters(ctx, next); err != nil {
				log.ErrorContext(ctx, "counter initialization after reload failed", "error", err)
			}
			syncer.Trigger()
		}),
	}
	if cfg.Bank.Source == config.SourceFile && cfg.Bank.Watch {
		reloadOpts = append(reloadOpts, loader.WithWatch(cfg.Bank.Path))
	}
	reloader, err := loader.NewReloader(src, holder, reloadOpts...)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Handlers: []httptransport.Registrar{
			votehandler.New(voteService, log,
				votehandler.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
				votehandler.WithRegistryVersion(func() string { return holder.Current().Checksum }),
			),
			bankhandler.New(holder, voteService, log),
		},
		Checks: map[string]httptransport.HealthCheck{
			"redis": redisClient.Health,
			"registry": func(context.Context) error {
				if holder.Current() == nil {
					return errors.New("registry not loaded")
				}
				return nil
			},
		},
		RegistryVersion: func() string { return holder.Current().Checksum },
		Metrics:         metrics.New(),
		TrustProxy:      cfg.Server.TrustProxy,
		Logger:          log,
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return reloader.Run(gctx) })
	g.Go(func() error { return syncer.Run(gctx) })
	g.Go(func() error {
		log.Info("starting foodvote", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func bankSource(cfg config.BankConfig) (source.Source, error) {
	switch cfg.Source {
	case config.SourceHTTP:
		return source.NewHTTP(cfg.URL, cfg.FetchTimeout), nil
	case config.SourceObject:
		return source.NewObject(source.ObjectConfig{
			Endpoint:  cfg.Object.Endpoint,
			AccessKey: cfg.Object.AccessKey,
			SecretKey: cfg.Object.SecretKey,
			Bucket:    cfg.Object.Bucket,
			Key:       cfg.Object.Key,
			UseTLS:    cfg.Object.UseTLS,
		})
	default:
		return source.NewFile(cfg.Path), nil
	}
}

func searchSink(ctx context.Context, cfg config.SearchConfig, log *slog.Logger) (search.Sink, func(), error) {
	if len(cfg.Brokers) == 0 {
		log.Info("no search brokers configured, search documents will only be logged")
		return search.NewLogSink(log), func() {}, nil
	}
	kafka, err := search.NewKafkaSink(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, nil, err
	}
	if err := kafka.EnsureTopic(ctx, cfg.Partitions, cfg.Replication); err != nil {
		// The indexer may own the topic; producing still works if it exists.
		log.WarnContext(ctx, "could not ensure search topic", "topic", cfg.Topic, "error", err)
	}
	sink := search.NewFallbackSink(kafka, search.NewLogSink(log), circuit.New("search-sink"), log)
	return sink, kafka.Close, nil
}
