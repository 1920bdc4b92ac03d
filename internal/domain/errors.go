package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyTitle       = errors.New("title must not be empty")
	ErrNoCategories     = errors.New("select at least one category")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrNewsLimitReached = errors.New("cannot publish more than 3 news items per day")
	ErrInvalidPostType  = errors.New("invalid post type")
	ErrForbidden        = errors.New("only the author can modify this post")
)
