package domain

type EventType string

const (
	EventPostCreated             EventType = "post.created"
	EventPostUpdated             EventType = "post.updated"
	EventPostDeleted             EventType = "post.deleted"
	EventPostCategoriesFinalized EventType = "post.categories_finalized"
)

type Event interface {
	Type() EventType
}

type PostCreated struct {
	Post Post
}

func (PostCreated) Type() EventType { return EventPostCreated }

type PostUpdated struct {
	Post Post
}

func (PostUpdated) Type() EventType { return EventPostUpdated }

type PostDeleted struct {
	Post Post
}

func (PostDeleted) Type() EventType { return EventPostDeleted }

// PostCategoriesFinalized fires once per post, after the post row and all of its
// category links have been committed together.
type PostCategoriesFinalized struct {
	PostID   int64
	PostType PostType
}

func (PostCategoriesFinalized) Type() EventType { return EventPostCategoriesFinalized }
