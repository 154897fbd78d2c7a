package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"teamtasks/backend/internal/cache"
	"teamtasks/backend/internal/config"
	"teamtasks/backend/internal/database"
	"teamtasks/backend/internal/middleware"
	"teamtasks/backend/internal/monitoring"
	"teamtasks/backend/internal/server"
	"teamtasks/backend/internal/services"
	"teamtasks/backend/internal/worker"
)

var (
	serveAddr       string
	serveNoWorker   bool
	shutdownTimeout time.Duration
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder worker",
		Long: `Run the HTTP API.

When Redis is enabled the accessible-workspace cache lives in Redis and the
reminder worker runs in-process. Without Redis an in-memory cache is used and
reminders are off.

Examples:
  teamtasks serve
  teamtasks serve --addr :9090 --db-driver sqlite
  teamtasks serve --no-worker`,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address host:port (overrides HOST and PORT)")
	cmd.Flags().BoolVar(&serveNoWorker, "no-worker", false, "do not start the reminder worker")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "how long to drain requests on shutdown")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, pool, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	if serveAddr != "" {
		host, port, err := net.SplitHostPort(serveAddr)
		if err != nil {
			return err
		}
		cfg.Server.Host, cfg.Server.Port = host, port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	if err := database.Migrate(pool.DB); err != nil {
		return err
	}

	monitor := monitoring.New()
	monitor.RegisterHealthCheck("database", pool.HealthContext)
	monitor.RegisterStats("database", pool.Stats)

	appCache, queue, reminderWorker := setupRedis(cfg, log, monitor)
	defer appCache.Close()

	svc := server.NewServices(cfg, pool.DB, appCache, queue)

	if reminderWorker != nil && svc.Reminders != nil && !serveNoWorker {
		reminderWorker.RegisterHandler(worker.JobTypeTaskReminder, svc.Reminders.HandleReminder)
		reminderWorker.Start(ctx)
		defer reminderWorker.Stop()
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstSize, cfg.RateLimit.CleanupInterval)
		go limiter.Run(cfg.RateLimit.CleanupInterval, ctx.Done())
	}

	router := server.NewRouter(cfg, log, svc, monitor, limiter)
	return server.New(cfg.Server, router, log).Run(ctx, shutdownTimeout)
}

// setupRedis returns the cache, and when Redis is enabled and reachable the
// job queue and worker sharing its client. Otherwise it falls back to the
// in-memory cache with no queue.
func setupRedis(cfg *config.Config, log zerolog.Logger, monitor *monitoring.Monitor) (cache.Cache, services.JobScheduler, *worker.Worker) {
	if !cfg.Redis.Enabled {
		log.Info().Msg("redis disabled: using in-memory cache, reminders off")
		memory := cache.NewMemoryCache()
		monitor.RegisterStats("cache", memory.Stats)
		return memory, nil, nil
	}

	redisCache := cache.NewRedisCache(&cache.CacheConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err := redisCache.Health(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.GetRedisAddr()).Msg("redis unreachable: using in-memory cache, reminders off")
		redisCache.Close()
		memory := cache.NewMemoryCache()
		monitor.RegisterStats("cache", memory.Stats)
		return memory, nil, nil
	}

	monitor.RegisterStats("cache", redisCache.Stats)
	monitor.RegisterHealthCheck("redis", func(ctx context.Context) error {
		return redisCache.Client().Ping(ctx).Err()
	})

	client := redisCache.Client()
	reminderWorker := worker.NewWorker(worker.WorkerConfig{
		RedisClient:  client,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		Queues:       cfg.Worker.Queues,
		RetryBase:    cfg.Worker.RetryBase,
		Logger:       log,
	})
	return redisCache, worker.NewJobQueue(client).WithMaxTries(cfg.Worker.MaxRetries), reminderWorker
}
