package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"news_portal/internal/cache"
	"news_portal/internal/config"
	"news_portal/internal/domain"
	"news_portal/internal/metrics"
)

// NotificationDispatcher fans a freshly published news post out to every
// subscriber of its categories, one email per distinct user.
type NotificationDispatcher struct {
	posts         PostStore
	categories    CategoryStore
	site          SiteResolver
	mailer        Mailer
	dedup         Deduplicator
	renderer      *Renderer
	cfg           config.NotificationConfig
	fromAddress   string
	defaultDomain string
	logger        *slog.Logger
}

func NewNotificationDispatcher(
	posts PostStore,
	categories CategoryStore,
	site SiteResolver,
	mailer Mailer,
	dedup Deduplicator,
	renderer *Renderer,
	cfg config.NotificationConfig,
	fromAddress string,
	defaultDomain string,
	logger *slog.Logger,
) *NotificationDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &NotificationDispatcher{
		posts:         posts,
		categories:    categories,
		site:          site,
		mailer:        mailer,
		dedup:         dedup,
		renderer:      renderer,
		cfg:           cfg,
		fromAddress:   fromAddress,
		defaultDomain: defaultDomain,
		logger:        logger.With("component", "notification_dispatcher"),
	}
}

// HandleTask adapts the dispatcher to the queue consumer.
func (d *NotificationDispatcher) HandleTask(ctx context.Context, task domain.DispatchTask) {
	d.OnCategoriesFinalized(ctx, task.PostID)
}

// OnCategoriesFinalized sends the new-post notification. It never fails:
// a missing post, a non-news post or individual send errors are logged and
// reflected in the returned stats.
func (d *NotificationDispatcher) OnCategoriesFinalized(ctx context.Context, postID int64) domain.DispatchStats {
	start := time.Now()
	stats := domain.DispatchStats{PostID: postID}
	logger := d.logger.With("post_id", postID)

	post, err := d.posts.GetByID(ctx, postID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("post not found, skipping notification")
		return stats
	}
	if err != nil {
		logger.Error("failed to load post", "error", err)
		return stats
	}

	if !post.IsNews() {
		logger.Info("post is not news, skipping notification", "type", post.Type)
		return stats
	}

	subscribers, err := d.categories.SubscribersOf(ctx, post.CategoryIDs)
	if err != nil {
		logger.Error("failed to load subscribers", "error", err)
		return stats
	}
	subscribers = distinctUsers(subscribers)
	stats.Subscribers = len(subscribers)

	if len(subscribers) == 0 {
		logger.Info("post has no subscribers")
		return stats
	}

	siteDomain := resolveDomain(ctx, d.site, d.defaultDomain, logger)

	var mu sync.Mutex
	record := func(outcome string) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case "sent":
			stats.Sent++
		case "failed":
			stats.Failed++
		default:
			stats.Skipped++
		}
		metrics.NotificationsTotal.WithLabelValues(outcome).Inc()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	for _, user := range subscribers {
		if !d.eligible(user) {
			record("skipped")
			continue
		}

		g.Go(func() error {
			record(d.notify(gctx, *post, user, siteDomain, logger))
			return nil
		})
	}
	_ = g.Wait()

	stats.Duration = time.Since(start)
	logger.Info("notification dispatch completed",
		"subscribers", stats.Subscribers,
		"sent", stats.Sent,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"duration", stats.Duration,
	)

	return stats
}

func (d *NotificationDispatcher) eligible(user domain.User) bool {
	email := strings.TrimSpace(user.Email)
	if email == "" {
		return false
	}
	return d.fromAddress == "" || !strings.EqualFold(email, d.fromAddress)
}

// notify sends to one recipient under its own timeout and reports the outcome.
func (d *NotificationDispatcher) notify(ctx context.Context, post domain.Post, user domain.User, siteDomain string, logger *slog.Logger) string {
	logger = logger.With("user_id", user.ID, "email", user.Email)

	msg, err := d.renderer.Notification(user, post, siteDomain)
	if err != nil {
		logger.Error("failed to render notification", "error", err)
		return "failed"
	}

	send := func() error {
		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
		return d.mailer.Send(sendCtx, msg)
	}

	if d.dedup == nil {
		return d.outcome(send(), logger)
	}

	ran, err := d.dedup.Once(ctx, cache.NotifyKey(post.ID, user.ID), d.cfg.DedupTTL, send)
	if !ran {
		if err != nil {
			// guard store unavailable: send unguarded
			logger.Warn("idempotency guard unavailable, sending anyway", "error", err)
			return d.outcome(send(), logger)
		}
		logger.Info("notification already sent, skipping")
		return "skipped"
	}

	return d.outcome(err, logger)
}

func (d *NotificationDispatcher) outcome(err error, logger *slog.Logger) string {
	if err != nil {
		logger.Error("failed to send notification", "error", err)
		return "failed"
	}
	logger.Info("notification sent")
	return "sent"
}

// resolveDomain returns the canonical site domain or the fallback when the
// lookup fails.
func resolveDomain(ctx context.Context, site SiteResolver, fallback string, logger *slog.Logger) string {
	siteDomain, err := site.CanonicalDomain(ctx)
	if err != nil || strings.TrimSpace(siteDomain) == "" {
		logger.Warn("canonical domain unavailable, using fallback",
			"fallback", fallback,
			"error", err,
		)
		return fallback
	}
	return siteDomain
}

func distinctUsers(users []domain.User) []domain.User {
	seen := make(map[int64]struct{}, len(users))
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	return out
}
