package service

import (
	"context"
	"fmt"
	"time"

	"news_portal/internal/domain"
)

// NewsRateLimiter caps the number of news posts an author may publish per
// calendar day of the deployment's time zone.
type NewsRateLimiter struct {
	posts PostStore
	loc   *time.Location
	limit int
}

func NewNewsRateLimiter(posts PostStore, loc *time.Location, limit int) *NewsRateLimiter {
	if loc == nil {
		loc = time.UTC
	}
	return &NewsRateLimiter{posts: posts, loc: loc, limit: limit}
}

// CanPublishNews reports whether the author is still below the limit on the
// local day containing asOf.
func (r *NewsRateLimiter) CanPublishNews(ctx context.Context, authorID int64, asOf time.Time) (bool, error) {
	from, to := DayBounds(asOf, r.loc)

	count, err := r.posts.CountByAuthorBetween(ctx, authorID, domain.PostTypeNews, from, to)
	if err != nil {
		return false, fmt.Errorf("count news: %w", err)
	}

	return count < r.limit, nil
}

// DayBounds returns [start, end) of the calendar day in loc that contains t.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return start, end
}
