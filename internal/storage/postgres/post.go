package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"news_portal/internal/domain"
)

type PostStore struct {
	db *sqlx.DB
}

func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db}
}

func (s *PostStore) Create(ctx context.Context, post *domain.Post) (int64, error) {
	query := `
		INSERT INTO posts (author_id, post_type, title, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		post.AuthorID,
		post.Type,
		post.Title,
		post.Content,
		post.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

func (s *PostStore) Update(ctx context.Context, post *domain.Post) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"UPDATE posts SET title = $1, content = $2 WHERE id = $3",
		post.Title, post.Content, post.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *PostStore) Delete(ctx context.Context, id int64) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, "DELETE FROM posts WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// GetByID loads a post together with its category ids.
func (s *PostStore) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	exec := GetExecutor(ctx, s.db)

	var post domain.Post
	err := sqlx.GetContext(ctx, exec, &post, `
		SELECT id, author_id, post_type, title, content, created_at
		FROM posts
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	err = sqlx.SelectContext(ctx, exec, &post.CategoryIDs,
		"SELECT category_id FROM post_categories WHERE post_id = $1 ORDER BY category_id", id)
	if err != nil {
		return nil, err
	}

	return &post, nil
}

// CountByAuthorBetween counts posts of the given type created in [from, to).
func (s *PostStore) CountByAuthorBetween(ctx context.Context, authorID int64, postType domain.PostType, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM posts
		WHERE author_id = $1 AND post_type = $2 AND created_at >= $3 AND created_at < $4`

	var count int
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &count, query, authorID, postType, from, to)
	return count, err
}

// ListByCategorySince returns posts of any type in the category created at or after since.
func (s *PostStore) ListByCategorySince(ctx context.Context, categoryID int64, since time.Time) ([]domain.Post, error) {
	query := `
		SELECT p.id, p.author_id, p.post_type, p.title, p.content, p.created_at
		FROM posts p
		INNER JOIN post_categories pc ON pc.post_id = p.id
		WHERE pc.category_id = $1 AND p.created_at >= $2
		ORDER BY p.created_at DESC`

	var posts []domain.Post
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &posts, query, categoryID, since)
	return posts, err
}

func (s *PostStore) ListByCategory(ctx context.Context, categoryID int64, postType domain.PostType) ([]domain.Post, error) {
	query := `
		SELECT p.id, p.author_id, p.post_type, p.title, p.content, p.created_at
		FROM posts p
		INNER JOIN post_categories pc ON pc.post_id = p.id
		WHERE pc.category_id = $1 AND p.post_type = $2
		ORDER BY p.id`

	var posts []domain.Post
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &posts, query, categoryID, postType)
	return posts, err
}

// AttachCategories links a freshly created post to every given category.
func (s *PostStore) AttachCategories(ctx context.Context, postID int64, categoryIDs []int64) error {
	if len(categoryIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO post_categories (post_id, category_id)
		SELECT $1, UNNEST($2::BIGINT[])
		ON CONFLICT DO NOTHING`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, postID, pq.Array(categoryIDs))
	return err
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
