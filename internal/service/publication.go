package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"news_portal/internal/domain"
	"news_portal/internal/metrics"
)

// PublicationService is the single writer of posts, categories links and
// subscriptions. Events are emitted only after the write has committed.
type PublicationService struct {
	posts      PostStore
	categories CategoryStore
	authors    AuthorStore
	txManager  TransactionManager
	limiter    *NewsRateLimiter
	events     EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewPublicationService(
	posts PostStore,
	categories CategoryStore,
	authors AuthorStore,
	txManager TransactionManager,
	limiter *NewsRateLimiter,
	events EventPublisher,
	logger *slog.Logger,
) *PublicationService {
	return &PublicationService{
		posts:      posts,
		categories: categories,
		authors:    authors,
		txManager:  txManager,
		limiter:    limiter,
		events:     events,
		logger:     logger.With("component", "publication"),
		now:        time.Now,
	}
}

// Publish creates a post with its full category set in one transaction. For
// news posts the daily limit is checked under a per-author lock, so concurrent
// submissions by the same author cannot both pass the count.
func (s *PublicationService) Publish(ctx context.Context, userID int64, draft domain.PostDraft) (*domain.Post, error) {
	if !draft.Type.Valid() {
		return nil, domain.ErrInvalidPostType
	}
	if strings.TrimSpace(draft.Title) == "" {
		return nil, domain.ErrEmptyTitle
	}

	categoryIDs := uniqueIDs(draft.CategoryIDs)
	if len(categoryIDs) == 0 {
		return nil, domain.ErrNoCategories
	}

	post := &domain.Post{
		Type:        draft.Type,
		Title:       draft.Title,
		Content:     draft.Content,
		CategoryIDs: categoryIDs,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		author, err := s.authors.GetOrCreate(txCtx, userID)
		if err != nil {
			return fmt.Errorf("get author: %w", err)
		}
		post.AuthorID = author.ID

		existing, err := s.categories.CountExisting(txCtx, categoryIDs)
		if err != nil {
			return fmt.Errorf("check categories: %w", err)
		}
		if existing != len(categoryIDs) {
			return domain.ErrUnknownCategory
		}

		post.CreatedAt = s.now()
		if post.IsNews() {
			if err := s.txManager.LockAuthor(txCtx, post.AuthorID); err != nil {
				return fmt.Errorf("lock author: %w", err)
			}

			ok, err := s.limiter.CanPublishNews(txCtx, post.AuthorID, post.CreatedAt)
			if err != nil {
				return err
			}
			if !ok {
				metrics.RateLimitRejections.Inc()
				return domain.ErrNewsLimitReached
			}
		}

		id, err := s.posts.Create(txCtx, post)
		if err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		post.ID = id

		if err := s.posts.AttachCategories(txCtx, id, categoryIDs); err != nil {
			return fmt.Errorf("attach categories: %w", err)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNewsLimitReached) {
			s.logger.Info("news rejected by daily limit", "user_id", userID)
		}
		return nil, err
	}

	s.logger.Info("post published",
		"post_id", post.ID,
		"author_id", post.AuthorID,
		"type", post.Type,
		"categories", len(categoryIDs),
	)

	s.events.Publish(ctx, domain.PostCreated{Post: *post})
	s.events.Publish(ctx, domain.PostCategoriesFinalized{PostID: post.ID, PostType: post.Type})

	return post, nil
}

// Update changes title and content. Type and categories are fixed at creation.
func (s *PublicationService) Update(ctx context.Context, userID, postID int64, title, content string) (*domain.Post, error) {
	if strings.TrimSpace(title) == "" {
		return nil, domain.ErrEmptyTitle
	}

	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	post.Title = title
	post.Content = content
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	s.logger.Info("post updated", "post_id", post.ID)
	s.events.Publish(ctx, domain.PostUpdated{Post: *post})

	return post, nil
}

func (s *PublicationService) Delete(ctx context.Context, userID, postID int64) error {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}

	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	s.logger.Info("post deleted", "post_id", post.ID)
	s.events.Publish(ctx, domain.PostDeleted{Post: *post})

	return nil
}

// DeleteNewsByCategory removes every news post in the named category and
// returns how many were deleted.
func (s *PublicationService) DeleteNewsByCategory(ctx context.Context, categoryName string) (int, error) {
	category, err := s.categories.GetByName(ctx, categoryName)
	if err != nil {
		return 0, fmt.Errorf("get category %q: %w", categoryName, err)
	}

	news, err := s.posts.ListByCategory(ctx, category.ID, domain.PostTypeNews)
	if err != nil {
		return 0, fmt.Errorf("list news: %w", err)
	}

	var deleted []domain.Post
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		deleted = deleted[:0]
		for _, post := range news {
			err := s.posts.Delete(txCtx, post.ID)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("delete post %d: %w", post.ID, err)
			}
			deleted = append(deleted, post)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, post := range deleted {
		s.events.Publish(ctx, domain.PostDeleted{Post: post})
	}

	s.logger.Info("news deleted by category",
		"category", category.Name,
		"deleted", len(deleted),
	)

	return len(deleted), nil
}

// BecomeAuthor registers the user as an author. Repeated calls are no-ops.
func (s *PublicationService) BecomeAuthor(ctx context.Context, userID int64) (*domain.Author, error) {
	author, err := s.authors.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get author: %w", err)
	}
	return author, nil
}

func (s *PublicationService) Subscribe(ctx context.Context, userID, categoryID int64) error {
	if err := s.categories.Subscribe(ctx, userID, categoryID); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("subscribed", "user_id", userID, "category_id", categoryID)
	return nil
}

func (s *PublicationService) Unsubscribe(ctx context.Context, userID, categoryID int64) error {
	if err := s.categories.Unsubscribe(ctx, userID, categoryID); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	s.logger.Info("unsubscribed", "user_id", userID, "category_id", categoryID)
	return nil
}

// Subscriptions lists the user's subscriptions, oldest first.
func (s *PublicationService) Subscriptions(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	subs, err := s.categories.Subscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *PublicationService) ownedPost(ctx context.Context, userID, postID int64) (*domain.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	author, err := s.authors.GetByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("get author: %w", err)
	}
	if author.ID != post.AuthorID {
		return nil, domain.ErrForbidden
	}

	return post, nil
}

func uniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
