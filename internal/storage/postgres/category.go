package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"news_portal/internal/domain"
)

type CategoryStore struct {
	db *sqlx.DB
}

func NewCategoryStore(db *sqlx.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) List(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &categories,
		"SELECT id, name FROM categories ORDER BY id")
	return categories, err
}

func (s *CategoryStore) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	var category domain.Category
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &category,
		"SELECT id, name FROM categories WHERE name = $1", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// CountExisting reports how many of ids refer to existing categories.
func (s *CategoryStore) CountExisting(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var count int
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &count,
		"SELECT COUNT(*) FROM categories WHERE id = ANY($1)", pq.Array(ids))
	return count, err
}

// SubscribersOf returns the users subscribed to any of the given categories,
// each user exactly once.
func (s *CategoryStore) SubscribersOf(ctx context.Context, categoryIDs []int64) ([]domain.User, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT u.id, u.username, u.email
		FROM users u
		INNER JOIN subscriptions s ON s.user_id = u.id
		WHERE s.category_id = ANY($1)
		ORDER BY u.id`

	var users []domain.User
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &users, query, pq.Array(categoryIDs))
	return users, err
}

func (s *CategoryStore) Subscribe(ctx context.Context, userID, categoryID int64) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, category_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, category_id) DO NOTHING`,
		userID, categoryID,
	)
	return err
}

func (s *CategoryStore) Unsubscribe(ctx context.Context, userID, categoryID int64) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"DELETE FROM subscriptions WHERE user_id = $1 AND category_id = $2",
		userID, categoryID,
	)
	return err
}

func (s *CategoryStore) Subscriptions(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &subs, `
		SELECT id, user_id, category_id, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at`, userID)
	return subs, err
}
