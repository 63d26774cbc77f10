package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/lair/internal/api"
	"github.com/dyluth/lair/internal/catalog"
	"github.com/dyluth/lair/internal/config"
	"github.com/dyluth/lair/internal/fanout"
	"github.com/dyluth/lair/internal/orchestrator"
	"github.com/dyluth/lair/internal/puzzle"
	"github.com/dyluth/lair/pkg/devicebus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load environment variables
	rt, err := config.LoadRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(rt.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, rt, logger); err != nil {
		logger.WithError(err).Error("orchestrator failed")
		os.Exit(1)
	}
	logger.Info("orchestrator stopped")
}

func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LAIR_LOG_LEVEL: %w", err)
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFieldName: "timestamp"})
	logger.SetLevel(lvl)
	return logger, nil
}

// run wires the daemon and blocks until ctx is cancelled or a component fails.
func run(ctx context.Context, rt config.Runtime, logger *logrus.Logger) error {
	// 3. Load lair.yml
	cfg, err := config.Load(rt.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", rt.ConfigPath, err)
	}

	// 4. Connect to the device bus
	redisOpts, err := redis.ParseURL(rt.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client, err := devicebus.NewClient(redisOpts, rt.InstanceName, devicebus.Topics{
		Inbound:  cfg.Bus.InboundTopic,
		Outbound: cfg.Bus.OutboundTopic,
	})
	if err != nil {
		return fmt.Errorf("failed to create device bus client: %w", err)
	}
	defer client.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err = client.Ping(pingCtx)
	cancelPing()
	if err != nil {
		return fmt.Errorf("redis not accessible: %w", err)
	}

	// 5. Build puzzles, outputs and the engine
	outbox := devicebus.NewOutbox(client, cfg.Bus.OutboxSize, logger.WithField("component", "outbox"))
	active := &puzzle.Active{}

	var engine *orchestrator.Engine
	hub := fanout.NewHub(func() puzzle.Update { return engine.Snapshot() }, 0, logger)
	defer hub.Close()

	sink := puzzle.MultiSink{hub, puzzle.SinkFunc(func(u puzzle.Update) { outbox.Mirror(u) })}
	machines, err := catalog.Build(cfg, puzzle.Env{
		Sink:      sink,
		Publisher: outbox,
		Clock:     puzzle.RealClock(),
		Active:    active,
		Seed:      rt.Seed,
		Logger:    logger.WithField("component", "puzzle"),
	})
	if err != nil {
		return fmt.Errorf("failed to build puzzles: %w", err)
	}

	metrics := orchestrator.NewCollector("")
	engine, err = orchestrator.NewEngine(active, machines, orchestrator.Options{
		Client:             client,
		InstanceName:       rt.InstanceName,
		Sink:               sink,
		Publisher:          outbox,
		MaxEventsPerSecond: cfg.Bus.MaxEventsPerSecond,
		Burst:              cfg.Bus.Burst,
		Logger:             logger,
		Metrics:            metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	addr := cfg.HTTP.Addr
	if rt.HTTPAddr != "" {
		addr = rt.HTTPAddr
	}
	server := api.NewServer(engine, api.Options{
		Stream:  hub,
		Health:  orchestrator.NewHealthHandler(client, engine),
		Metrics: metrics,
		Logger:  logger,
	})

	logger.WithFields(logrus.Fields{
		"instance": rt.InstanceName,
		"puzzles":  engine.Puzzles(),
		"addr":     addr,
	}).Info("orchestrator starting")

	// 6. Run until shutdown; any component returning stops the others
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	components := []func(context.Context) error{
		outbox.Run,
		engine.Run,
		func(ctx context.Context) error { return server.ListenAndServe(ctx, addr) },
	}
	for _, component := range components {
		g.Go(func() error {
			defer cancel()
			return component(gctx)
		})
	}
	return g.Wait()
}
