package cache

import (
	"strconv"

	"news_portal/internal/domain"
)

// ListKey is the single cached list entry for a post type ("news_list", "article_list").
func ListKey(postType domain.PostType) string {
	return string(postType) + "_list"
}

// DetailKey is the cached detail entry for one post.
func DetailKey(postID int64) string {
	return "post_" + strconv.FormatInt(postID, 10)
}

// NotifyKey guards a single notification of a post to a user.
func NotifyKey(postID, userID int64) string {
	return "notify:" + strconv.FormatInt(postID, 10) + ":" + strconv.FormatInt(userID, 10)
}
