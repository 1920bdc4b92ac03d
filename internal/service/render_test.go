package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news_portal/internal/domain"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("http", []string{"ru", "en"}, 50)
	require.NoError(t, err)
	return r
}

func TestPreview(t *testing.T) {
	r := newTestRenderer(t)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "short", content: "Hello", want: "Hello..."},
		{name: "markup stripped", content: "<p>Tom &amp; <b>Jerry</b></p>", want: "Tom & Jerry..."},
		{name: "truncated", content: strings.Repeat("a", 80), want: strings.Repeat("a", 50) + "..."},
		{name: "runes not bytes", content: strings.Repeat("я", 60), want: strings.Repeat("я", 50) + "..."},
		{name: "empty", content: "", want: "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Preview(tt.content))
		})
	}
}

func TestCanonicalHost(t *testing.T) {
	locales := []string{"ru", "en"}

	tests := []struct {
		domain string
		want   string
	}{
		{domain: "example.com", want: "example.com"},
		{domain: "example.com/ru", want: "example.com"},
		{domain: "example.com/en/", want: "example.com"},
		{domain: "https://portal.test/ru/", want: "portal.test"},
		{domain: "portal.test/media", want: "portal.test/media"},
		{domain: "ru.portal.test", want: "ru.portal.test"},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalHost(tt.domain, locales))
		})
	}
}

func TestRenderer_Notification(t *testing.T) {
	r := newTestRenderer(t)
	user := domain.User{ID: 1, Username: "reader", Email: "reader@example.com"}
	post := domain.Post{ID: 42, Type: domain.PostTypeNews, Title: "Rates changed", Content: "<p>The central bank raised rates today.</p>"}

	msg, err := r.Notification(user, post, "example.com/ru")
	require.NoError(t, err)

	assert.Equal(t, "reader@example.com", msg.To)
	assert.Equal(t, "Rates changed", msg.Subject)
	assert.Contains(t, msg.TextBody, "http://example.com/news/42/")
	assert.Contains(t, msg.TextBody, "The central bank raised rates today....")
	assert.Contains(t, msg.HTMLBody, "http://example.com/news/42/")
	assert.NotContains(t, msg.HTMLBody, "/ru/")
}

func TestRenderer_Digest(t *testing.T) {
	r := newTestRenderer(t)
	user := domain.User{ID: 1, Username: "reader", Email: "reader@example.com"}
	category := domain.Category{ID: 3, Name: "Economy"}
	posts := []domain.Post{
		{ID: 1, Title: "First", CreatedAt: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)},
		{ID: 2, Title: "Second", CreatedAt: time.Date(2024, 5, 12, 9, 0, 0, 0, time.UTC)},
	}

	msg, err := r.Digest(user, category, posts, "example.com")
	require.NoError(t, err)

	assert.Equal(t, "New posts in «Economy» this week", msg.Subject)
	for _, want := range []string{"First", "Second", "http://example.com/news/1/", "http://example.com/news/2/"} {
		assert.Contains(t, msg.TextBody, want)
		assert.Contains(t, msg.HTMLBody, want)
	}
}
