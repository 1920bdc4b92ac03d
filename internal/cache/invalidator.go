package cache

import (
	"context"
	"log/slog"

	"news_portal/internal/domain"
	"news_portal/internal/metrics"
)

type KeyDeleter interface {
	Delete(ctx context.Context, keys ...string) error
}

// Invalidator evicts the list and detail entries derived from a post after it
// has been written or deleted. Evicting an absent key succeeds.
type Invalidator struct {
	store  KeyDeleter
	logger *slog.Logger
}

func NewInvalidator(store KeyDeleter, logger *slog.Logger) *Invalidator {
	return &Invalidator{
		store:  store,
		logger: logger.With("component", "cache_invalidator"),
	}
}

func (i *Invalidator) OnPostWritten(ctx context.Context, post *domain.Post) error {
	return i.evict(ctx, post, "written")
}

func (i *Invalidator) OnPostDeleted(ctx context.Context, post *domain.Post) error {
	return i.evict(ctx, post, "deleted")
}

func (i *Invalidator) evict(ctx context.Context, post *domain.Post, reason string) error {
	keys := []string{DetailKey(post.ID)}
	if post.Type.Valid() {
		keys = append([]string{ListKey(post.Type)}, keys...)
	}

	if err := i.store.Delete(ctx, keys...); err != nil {
		metrics.CacheInvalidations.WithLabelValues("error").Inc()
		return err
	}

	metrics.CacheInvalidations.WithLabelValues("success").Inc()
	i.logger.Debug("cache invalidated",
		"post_id", post.ID,
		"reason", reason,
		"keys", keys,
	)
	return nil
}
