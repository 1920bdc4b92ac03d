package events

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"news_portal/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBus_DeliversInOrderAndIsolatesFailures(t *testing.T) {
	bus := NewBus(testLogger())

	var order []string
	bus.Subscribe(domain.EventPostCreated, "first", func(context.Context, domain.Event) error {
		order = append(order, "first")
		return errors.New("boom")
	})
	bus.Subscribe(domain.EventPostCreated, "second", func(_ context.Context, e domain.Event) error {
		created := e.(domain.PostCreated)
		order = append(order, created.Post.Title)
		return nil
	})
	bus.Subscribe(domain.EventPostDeleted, "other", func(context.Context, domain.Event) error {
		order = append(order, "deleted")
		return nil
	})

	bus.Publish(context.Background(), domain.PostCreated{Post: domain.Post{Title: "hello"}})

	assert.Equal(t, []string{"first", "hello"}, order)
}

func TestBus_NoHandlers(t *testing.T) {
	bus := NewBus(testLogger())

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), domain.PostCategoriesFinalized{PostID: 1})
	})
}
