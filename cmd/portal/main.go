package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"news_portal/internal/cache"
	"news_portal/internal/config"
	"news_portal/internal/mail"
	"news_portal/internal/metrics"
	"news_portal/internal/publisher"
	"news_portal/internal/scheduler"
	"news_portal/internal/service"
	"news_portal/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	loc, err := cfg.Portal.Location()
	if err != nil {
		logger.Error("invalid portal timezone", "error", err)
		os.Exit(1)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(db); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	redisStore := cache.NewRedisStore(redisClient, cfg.Redis.KeyPrefix)
	if err := redisStore.Ping(ctx); err != nil {
		// notifications are still sent without the guard, only redelivery dedup is lost
		logger.Warn("redis unavailable", "error", err)
	}

	consumer, err := publisher.NewConsumer(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
		Prefetch:   cfg.RabbitMQ.Prefetch,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	postStore := postgres.NewPostStore(db)
	categoryStore := postgres.NewCategoryStore(db)
	siteStore := postgres.NewSiteStore(db, cfg.Site.ID)
	jobStore := postgres.NewJobExecutionStore(db)

	smtpSender := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
		SSL:      cfg.SMTP.SSL,
		Timeout:  cfg.SMTP.Timeout,
	})
	mailer := mail.NewThrottled(smtpSender, cfg.Notification.SendsPerSecond)

	renderer, err := service.NewRenderer(cfg.Site.Scheme, cfg.Site.Locales, cfg.Notification.PreviewLength)
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	dispatcher := service.NewNotificationDispatcher(
		postStore,
		categoryStore,
		siteStore,
		mailer,
		redisStore,
		renderer,
		cfg.Notification,
		smtpSender.From(),
		cfg.Site.DefaultDomain,
		logger,
	)

	digest := service.NewWeeklyDigest(
		postStore,
		categoryStore,
		siteStore,
		mailer,
		renderer,
		cfg.Schedule.DigestWindow,
		cfg.Notification.SendTimeout,
		cfg.Notification.Workers,
		cfg.Site.DefaultDomain,
		logger,
	)
	pruner := service.NewJobHistoryPruner(jobStore, cfg.Schedule.Retention(), logger)

	sched := scheduler.NewScheduler(loc, jobStore, cfg.Schedule.JobTimeout, logger)
	if err := sched.Register(cfg.Schedule.WeeklyDigest, digest); err != nil {
		logger.Error("failed to schedule digest", "error", err)
		os.Exit(1)
	}
	if err := sched.Register(cfg.Schedule.PruneJobHistory, pruner); err != nil {
		logger.Error("failed to schedule pruning", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)
	metrics.StartServer(ctx, logger, cfg.Metrics.Addr, registry)

	logger.Info("starting news portal worker",
		"queue", cfg.RabbitMQ.QueueName,
		"timezone", loc.String(),
		"weekly_digest", cfg.Schedule.WeeklyDigest,
		"prune_job_history", cfg.Schedule.PruneJobHistory,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx, dispatcher.HandleTask)
	})
	g.Go(func() error {
		return sched.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
