package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"news_portal/internal/domain"
	"news_portal/internal/metrics"
)

const WeeklyDigestJob = "weekly_digest"

// WeeklyDigest mails every subscriber of a category the posts created in it
// during the trailing window. Categories are independent of each other.
type WeeklyDigest struct {
	posts         PostStore
	categories    CategoryStore
	site          SiteResolver
	mailer        Mailer
	renderer      *Renderer
	window        time.Duration
	sendTimeout   time.Duration
	workers       int
	defaultDomain string
	logger        *slog.Logger
	now           func() time.Time
}

func NewWeeklyDigest(
	posts PostStore,
	categories CategoryStore,
	site SiteResolver,
	mailer Mailer,
	renderer *Renderer,
	window time.Duration,
	sendTimeout time.Duration,
	workers int,
	defaultDomain string,
	logger *slog.Logger,
) *WeeklyDigest {
	if workers <= 0 {
		workers = 1
	}
	return &WeeklyDigest{
		posts:         posts,
		categories:    categories,
		site:          site,
		mailer:        mailer,
		renderer:      renderer,
		window:        window,
		sendTimeout:   sendTimeout,
		workers:       workers,
		defaultDomain: defaultDomain,
		logger:        logger.With("job", WeeklyDigestJob),
		now:           time.Now,
	}
}

func (w *WeeklyDigest) Name() string {
	return WeeklyDigestJob
}

func (w *WeeklyDigest) Run(ctx context.Context) error {
	_, err := w.Collect(ctx)
	return err
}

// Collect runs the digest and reports what was sent. Only failure to list
// categories is returned as an error.
func (w *WeeklyDigest) Collect(ctx context.Context) (domain.DigestStats, error) {
	start := w.now()
	since := start.Add(-w.window)
	var stats domain.DigestStats

	categories, err := w.categories.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list categories: %w", err)
	}

	siteDomain := resolveDomain(ctx, w.site, w.defaultDomain, w.logger)

	for _, category := range categories {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		logger := w.logger.With("category_id", category.ID, "category", category.Name)

		posts, err := w.posts.ListByCategorySince(ctx, category.ID, since)
		if err != nil {
			logger.Error("failed to list posts", "error", err)
			continue
		}
		if len(posts) == 0 {
			logger.Info("no new posts, skipping category")
			stats.SkippedCategories++
			continue
		}

		subscribers, err := w.categories.SubscribersOf(ctx, []int64{category.ID})
		if err != nil {
			logger.Error("failed to load subscribers", "error", err)
			continue
		}

		sent, failed := w.sendCategory(ctx, category, posts, distinctUsers(subscribers), siteDomain, logger)
		stats.Categories++
		stats.Sent += sent
		stats.Failed += failed
	}

	stats.Duration = w.now().Sub(start)
	w.logger.Info("weekly digest completed",
		"categories", stats.Categories,
		"skipped_categories", stats.SkippedCategories,
		"sent", stats.Sent,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (w *WeeklyDigest) sendCategory(
	ctx context.Context,
	category domain.Category,
	posts []domain.Post,
	subscribers []domain.User,
	siteDomain string,
	logger *slog.Logger,
) (sent, failed int) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)

	for _, user := range subscribers {
		if strings.TrimSpace(user.Email) == "" {
			continue
		}

		g.Go(func() error {
			err := w.sendOne(gctx, category, posts, user, siteDomain)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("failed to send digest", "user_id", user.ID, "email", user.Email, "error", err)
				metrics.DigestEmailsTotal.WithLabelValues("failed").Inc()
				failed++
				return nil
			}
			metrics.DigestEmailsTotal.WithLabelValues("sent").Inc()
			sent++
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("digest sent for category", "posts", len(posts), "sent", sent, "failed", failed)
	return sent, failed
}

func (w *WeeklyDigest) sendOne(ctx context.Context, category domain.Category, posts []domain.Post, user domain.User, siteDomain string) error {
	msg, err := w.renderer.Digest(user, category, posts, siteDomain)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	return w.mailer.Send(sendCtx, msg)
}
