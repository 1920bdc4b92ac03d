package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"news_portal/internal/cache"
	"news_portal/internal/config"
	"news_portal/internal/domain"
	"news_portal/internal/events"
	"news_portal/internal/publisher"
	"news_portal/internal/service"
	"news_portal/internal/storage/postgres"
)

const usage = `usage: portalctl [-config path] <command> [flags]

commands:
  migrate                                     apply schema migrations
  become-author  -user ID                     register the user as an author
  publish        -user ID -type news|article -title T [-content C] -categories 1,2
  update         -user ID -post ID -title T [-content C]
  delete         -user ID -post ID
  subscribe      -user ID -category ID
  unsubscribe    -user ID -category ID
  subscriptions  -user ID                     list the user's subscriptions
  delete-news    -category NAME [-yes]        delete every news post of a category
`

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = setupLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, command string, args []string) error {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if command == "migrate" {
		if err := postgres.Migrate(db); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	}

	loc, err := cfg.Portal.Location()
	if err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	queue, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	defer queue.Close()

	postStore := postgres.NewPostStore(db)
	bus := events.NewBus(logger)
	invalidator := cache.NewInvalidator(cache.NewRedisStore(redisClient, cfg.Redis.KeyPrefix), logger)
	service.RegisterHandlers(bus, invalidator, queue, logger)

	svc := service.NewPublicationService(
		postStore,
		postgres.NewCategoryStore(db),
		postgres.NewAuthorStore(db),
		postgres.NewTransactionManager(db),
		service.NewNewsRateLimiter(postStore, loc, cfg.Portal.NewsPerDay),
		bus,
		logger,
	)

	cli := &commands{svc: svc, in: os.Stdin, out: os.Stdout}
	return cli.dispatch(ctx, command, args)
}

type commands struct {
	svc *service.PublicationService
	in  io.Reader
	out io.Writer
}

func (c *commands) dispatch(ctx context.Context, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	userID := fs.Int64("user", 0, "user id")
	postID := fs.Int64("post", 0, "post id")
	categoryID := fs.Int64("category-id", 0, "category id")
	postType := fs.String("type", string(domain.PostTypeNews), "post type")
	title := fs.String("title", "", "post title")
	content := fs.String("content", "", "post content")
	categories := fs.String("categories", "", "comma separated category ids")
	categoryName := fs.String("category", "", "category name or id")
	yes := fs.Bool("yes", false, "skip confirmation")

	if err := fs.Parse(args); err != nil {
		return err
	}

	switch command {
	case "become-author":
		author, err := c.svc.BecomeAuthor(ctx, *userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "author %d for user %d\n", author.ID, author.UserID)

	case "publish":
		ids, err := parseIDs(*categories)
		if err != nil {
			return err
		}
		post, err := c.svc.Publish(ctx, *userID, domain.PostDraft{
			Type:        domain.PostType(*postType),
			Title:       *title,
			Content:     *content,
			CategoryIDs: ids,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "published %s %d\n", post.Type, post.ID)

	case "update":
		post, err := c.svc.Update(ctx, *userID, *postID, *title, *content)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "updated %d\n", post.ID)

	case "delete":
		if err := c.svc.Delete(ctx, *userID, *postID); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "deleted %d\n", *postID)

	case "subscribe", "unsubscribe":
		id, err := categoryRef(*categoryID, *categoryName)
		if err != nil {
			return err
		}
		if command == "subscribe" {
			err = c.svc.Subscribe(ctx, *userID, id)
		} else {
			err = c.svc.Unsubscribe(ctx, *userID, id)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%sd user %d, category %d\n", command, *userID, id)

	case "subscriptions":
		subs, err := c.svc.Subscriptions(ctx, *userID)
		if err != nil {
			return err
		}
		writeSubscriptions(c.out, subs)

	case "delete-news":
		if *categoryName == "" {
			return errors.New("-category is required")
		}
		if !*yes && !c.confirm(fmt.Sprintf("Delete all news in category %q? [yes/no]: ", *categoryName)) {
			fmt.Fprintln(c.out, "cancelled")
			return nil
		}
		n, err := c.svc.DeleteNewsByCategory(ctx, *categoryName)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "deleted %d news from category %q\n", n, *categoryName)

	default:
		return fmt.Errorf("unknown command %q", command)
	}

	return nil
}

func writeSubscriptions(w io.Writer, subs []domain.Subscription) {
	if len(subs) == 0 {
		fmt.Fprintln(w, "no subscriptions")
		return
	}
	for _, sub := range subs {
		fmt.Fprintf(w, "category %d\tsince %s\n", sub.CategoryID, sub.CreatedAt.Format(time.RFC3339))
	}
}

func (c *commands) confirm(prompt string) bool {
	fmt.Fprint(c.out, prompt)
	answer, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}

// categoryRef accepts either -category-id or a numeric -category.
func categoryRef(id int64, ref string) (int64, error) {
	if id > 0 {
		return id, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid category %q", ref)
	}
	return n, nil
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid category id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
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
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}
