package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"news_portal/internal/domain"
)

type AuthorStore struct {
	db *sqlx.DB
}

func NewAuthorStore(db *sqlx.DB) *AuthorStore {
	return &AuthorStore{db: db}
}

// GetOrCreate returns the author record for a user, creating it on first use.
func (s *AuthorStore) GetOrCreate(ctx context.Context, userID int64) (*domain.Author, error) {
	query := `
		INSERT INTO authors (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, rating`

	var author domain.Author
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &author, query, userID); err != nil {
		return nil, err
	}
	return &author, nil
}

func (s *AuthorStore) GetByUserID(ctx context.Context, userID int64) (*domain.Author, error) {
	var author domain.Author
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &author,
		"SELECT id, user_id, rating FROM authors WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &author, nil
}
