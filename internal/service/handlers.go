package service

import (
	"context"
	"fmt"
	"log/slog"

	"news_portal/internal/domain"
	"news_portal/internal/events"
	"news_portal/internal/metrics"
)

// RegisterHandlers connects post events to cache invalidation and to the
// notification dispatch queue.
func RegisterHandlers(bus *events.Bus, invalidator CacheInvalidator, queue DispatchQueue, logger *slog.Logger) {
	bus.Subscribe(domain.EventPostCreated, "cache_invalidator", func(ctx context.Context, e domain.Event) error {
		post := e.(domain.PostCreated).Post
		return invalidator.OnPostWritten(ctx, &post)
	})
	bus.Subscribe(domain.EventPostUpdated, "cache_invalidator", func(ctx context.Context, e domain.Event) error {
		post := e.(domain.PostUpdated).Post
		return invalidator.OnPostWritten(ctx, &post)
	})
	bus.Subscribe(domain.EventPostDeleted, "cache_invalidator", func(ctx context.Context, e domain.Event) error {
		post := e.(domain.PostDeleted).Post
		return invalidator.OnPostDeleted(ctx, &post)
	})
	bus.Subscribe(domain.EventPostCategoriesFinalized, "notification_enqueue", func(ctx context.Context, e domain.Event) error {
		finalized := e.(domain.PostCategoriesFinalized)
		if finalized.PostType != domain.PostTypeNews {
			return nil
		}

		// the write has already committed; a failed enqueue only loses notifications
		if err := queue.Enqueue(context.WithoutCancel(ctx), finalized.PostID); err != nil {
			metrics.DispatchTasksTotal.WithLabelValues("enqueue", "error").Inc()
			return fmt.Errorf("enqueue dispatch for post %d: %w", finalized.PostID, err)
		}

		metrics.DispatchTasksTotal.WithLabelValues("enqueue", "success").Inc()
		logger.Info("notification dispatch enqueued", "post_id", finalized.PostID)
		return nil
	})
}
