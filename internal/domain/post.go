package domain

import "time"

type PostType string

const (
	PostTypeNews    PostType = "news"
	PostTypeArticle PostType = "article"
)

func (t PostType) Valid() bool {
	return t == PostTypeNews || t == PostTypeArticle
}

type Post struct {
	ID          int64     `db:"id"`
	AuthorID    int64     `db:"author_id"`
	Type        PostType  `db:"post_type"`
	Title       string    `db:"title"`
	Content     string    `db:"content"`
	CreatedAt   time.Time `db:"created_at"`
	CategoryIDs []int64   `db:"-"`
}

func (p *Post) IsNews() bool {
	return p.Type == PostTypeNews
}

// PostDraft is the author's submission before it is persisted.
type PostDraft struct {
	Type        PostType
	Title       string
	Content     string
	CategoryIDs []int64
}

type Category struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type User struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	Email    string `db:"email"`
}

type Author struct {
	ID     int64 `db:"id"`
	UserID int64 `db:"user_id"`
	Rating int   `db:"rating"`
}

type Subscription struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	CategoryID int64     `db:"category_id"`
	CreatedAt  time.Time `db:"created_at"`
}
