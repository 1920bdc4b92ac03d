package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"news_portal/internal/domain"
)

type PostStore interface {
	Create(ctx context.Context, post *domain.Post) (int64, error)
	Update(ctx context.Context, post *domain.Post) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Post, error)
	CountByAuthorBetween(ctx context.Context, authorID int64, postType domain.PostType, from, to time.Time) (int, error)
	ListByCategorySince(ctx context.Context, categoryID int64, since time.Time) ([]domain.Post, error)
	ListByCategory(ctx context.Context, categoryID int64, postType domain.PostType) ([]domain.Post, error)
	AttachCategories(ctx context.Context, postID int64, categoryIDs []int64) error
}

type CategoryStore interface {
	List(ctx context.Context) ([]domain.Category, error)
	GetByName(ctx context.Context, name string) (*domain.Category, error)
	CountExisting(ctx context.Context, ids []int64) (int, error)
	SubscribersOf(ctx context.Context, categoryIDs []int64) ([]domain.User, error)
	Subscribe(ctx context.Context, userID, categoryID int64) error
	Unsubscribe(ctx context.Context, userID, categoryID int64) error
	Subscriptions(ctx context.Context, userID int64) ([]domain.Subscription, error)
}

type AuthorStore interface {
	GetOrCreate(ctx context.Context, userID int64) (*domain.Author, error)
	GetByUserID(ctx context.Context, userID int64) (*domain.Author, error)
}

type JobExecutionStore interface {
	DeleteRunAtOrBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	LockAuthor(ctx context.Context, authorID int64) error
}

type SiteResolver interface {
	CanonicalDomain(ctx context.Context) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, msg domain.Email) error
}

// Deduplicator runs fn at most once per key within ttl.
type Deduplicator interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
}

type DispatchQueue interface {
	Enqueue(ctx context.Context, postID int64) error
}

type CacheInvalidator interface {
	OnPostWritten(ctx context.Context, post *domain.Post) error
	OnPostDeleted(ctx context.Context, post *domain.Post) error
}
