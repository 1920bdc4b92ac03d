package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"news_portal/internal/config"
	"news_portal/internal/domain"
	"news_portal/internal/service/mocks"
)

type NotificationDispatcherTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	posts      *mocks.MockPostStore
	categories *mocks.MockCategoryStore
	site       *mocks.MockSiteResolver
	mailer     *recordingMailer
	dedup      *memoryDedup

	dispatcher *NotificationDispatcher
}

func (s *NotificationDispatcherTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.posts = mocks.NewMockPostStore(s.ctrl)
	s.categories = mocks.NewMockCategoryStore(s.ctrl)
	s.site = mocks.NewMockSiteResolver(s.ctrl)
	s.mailer = newRecordingMailer()
	s.dedup = newMemoryDedup()

	renderer, err := NewRenderer("http", []string{"ru", "en"}, 50)
	s.Require().NoError(err)

	cfg := config.NotificationConfig{
		PreviewLength: 50,
		SendTimeout:   time.Second,
		Workers:       2,
		DedupTTL:      time.Hour,
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.dispatcher = NewNotificationDispatcher(
		s.posts,
		s.categories,
		s.site,
		s.mailer,
		s.dedup,
		renderer,
		cfg,
		"noreply@portal.test",
		"example.com",
		logger,
	)
}

func (s *NotificationDispatcherTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestNotificationDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(NotificationDispatcherTestSuite))
}

func (s *NotificationDispatcherTestSuite) newsPost() *domain.Post {
	return &domain.Post{
		ID:          42,
		AuthorID:    1,
		Type:        domain.PostTypeNews,
		Title:       "Rates changed",
		Content:     "The central bank raised rates today.",
		CategoryIDs: []int64{1, 2},
	}
}

func (s *NotificationDispatcherTestSuite) TestSubscriberOfSeveralCategoriesGetsOneEmail() {
	ctx := context.Background()

	s.posts.EXPECT().GetByID(ctx, int64(42)).Return(s.newsPost(), nil)
	s.categories.EXPECT().SubscribersOf(ctx, []int64{1, 2}).Return([]domain.User{
		{ID: 1, Email: "u1@example.com"},
		{ID: 3, Email: "u3@example.com"},
		{ID: 3, Email: "u3@example.com"},
	}, nil)
	s.site.EXPECT().CanonicalDomain(ctx).Return("portal.test/ru", nil)

	stats := s.dispatcher.OnCategoriesFinalized(ctx, 42)

	s.Equal(2, stats.Subscribers)
	s.Equal(2, stats.Sent)
	s.Equal([]string{"u1@example.com", "u3@example.com"}, s.mailer.recipients())
	for _, msg := range s.mailer.sent {
		s.Equal("Rates changed", msg.Subject)
		s.Contains(msg.TextBody, "http://portal.test/news/42/")
	}
}

func (s *NotificationDispatcherTestSuite) TestArticleSendsNothing() {
	ctx := context.Background()
	post := s.newsPost()
	post.Type = domain.PostTypeArticle

	s.posts.EXPECT().GetByID(ctx, int64(42)).Return(post, nil)

	stats := s.dispatcher.OnCategoriesFinalized(ctx, 42)

	s.Zero(stats.Sent)
	s.Empty(s.mailer.recipients())
}

func (s *NotificationDispatcherTestSuite) TestMissingPostIsSkipped() {
	ctx := context.Background()

	s.posts.EXPECT().GetByID(ctx, int64(42)).Return(nil, domain.ErrNotFound)

	stats := s.dispatcher.OnCategoriesFinalized(ctx, 42)

	s.Zero(stats.Subscribers)
	s.Empty(s.mailer.recipients())
}

func (s *NotificationDispatcherTestSuite) TestNoSubscribers() {
	ctx := context.Background()

	s.posts.EXPECT().GetByID(ctx, int64(42)).Return(s.newsPost(), nil)
	s.categories.EXPECT().SubscribersOf(ctx, []int64{1, 2}).Return(nil, nil)

	stats := s.dispatcher.OnCategoriesFinalized(ctx, 42)

	s.Zero(stats.Subscribers)
	s.Empty(s.mailer.recipients())
}

func (s *NotificationDispatcherTestSuite) TestSkipsEmptyAndOwnAddresses() {
	ctx := context.Background()

	s.posts.EXPECT().GetByID(ctx, int64(42)).Return(s.newsPost(), nil)
	s.categories.EXPECT().SubscribersOf(ctx, gomock.Any()).Return([]domain.User{
		{ID: 1, Email: ""},
		{ID: 2, Email: "NoReply@portal.test"},
		{ID: 3, Email: "u3@example.com"},
	}, nil)
	s.site.EXPECT().CanonicalDomain(ctx).Return("portal.test", nil)

	stats := s.dispatcher.OnCategoriesFinalized(ctx, 42)

	s.Equal(3, stats.Subscribers)
	s.Equal(1, stats.Sent)
	s.Equal(2, stats.Skipped)
	s.Equal([]string{"u3@example.com"}, s.mailer.recipients())
}

func (s *NotificationDispatcherTestSuite) TestSendFailureDoesNotStopOthers() {
	ctx := context.Background()
	s.mailer.fail["u1@example.com"] = errSMTPDown

	s.posts.EXPECT().GetByID(ctx, int64(42)).Return(s.newsPost(), nil)
	s.categories.EXPECT().SubscribersOf(ctx, gomock.Any()).Return([]domain.User{
		{ID: 1, Email: "u1@example.com"},
		{ID: 2, Email: "u2@example.com"},
		{ID: 3, Email: "u3@example.com"},
	}, nil)
	s.site.EXPECT().CanonicalDomain(ctx).Return("portal.test", nil)

	stats := s.dispatcher.OnCategoriesFinalized(ctx, 42)

	s.Equal(1, stats.Failed)
	s.Equal(2, stats.Sent)
	s.Equal([]string{"u2@example.com", "u3@example.com"}, s.mailer.recipients())
}

func (s *NotificationDispatcherTestSuite) TestFallsBackToDefaultDomain() {
	ctx := context.Background()

	s.posts.EXPECT().GetByID(ctx, int64(42)).Return(s.newsPost(), nil)
	s.categories.EXPECT().SubscribersOf(ctx, gomock.Any()).Return([]domain.User{{ID: 1, Email: "u1@example.com"}}, nil)
	s.site.EXPECT().CanonicalDomain(ctx).Return("", domain.ErrNotFound)

	s.dispatcher.OnCategoriesFinalized(ctx, 42)

	s.Require().Len(s.mailer.sent, 1)
	s.Contains(s.mailer.sent[0].TextBody, "http://example.com/news/42/")
}

func (s *NotificationDispatcherTestSuite) TestRedeliveryDoesNotResend() {
	ctx := context.Background()

	s.posts.EXPECT().GetByID(ctx, int64(42)).Return(s.newsPost(), nil).Times(2)
	s.categories.EXPECT().SubscribersOf(ctx, gomock.Any()).Return([]domain.User{{ID: 1, Email: "u1@example.com"}}, nil).Times(2)
	s.site.EXPECT().CanonicalDomain(ctx).Return("portal.test", nil).Times(2)

	first := s.dispatcher.OnCategoriesFinalized(ctx, 42)
	second := s.dispatcher.OnCategoriesFinalized(ctx, 42)

	s.Equal(1, first.Sent)
	s.Equal(0, second.Sent)
	s.Equal(1, second.Skipped)
	s.Len(s.mailer.recipients(), 1)
}

func (s *NotificationDispatcherTestSuite) TestGuardUnavailableStillSends() {
	ctx := context.Background()
	s.dedup.err = errors.New("redis down")

	s.posts.EXPECT().GetByID(ctx, int64(42)).Return(s.newsPost(), nil)
	s.categories.EXPECT().SubscribersOf(ctx, gomock.Any()).Return([]domain.User{{ID: 1, Email: "u1@example.com"}}, nil)
	s.site.EXPECT().CanonicalDomain(ctx).Return("portal.test", nil)

	stats := s.dispatcher.OnCategoriesFinalized(ctx, 42)

	s.Equal(1, stats.Sent)
}

func (s *NotificationDispatcherTestSuite) TestHandleTask() {
	ctx := context.Background()

	s.posts.EXPECT().GetByID(ctx, int64(42)).Return(nil, domain.ErrNotFound)

	s.dispatcher.HandleTask(ctx, domain.DispatchTask{PostID: 42})
}

func (s *NotificationDispatcherTestSuite) TestHangingSendIsBounded() {
	ctx := context.Background()
	s.mailer.hang["u1@example.com"] = true

	renderer, err := NewRenderer("http", []string{"ru", "en"}, 50)
	s.Require().NoError(err)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	dispatcher := NewNotificationDispatcher(
		s.posts, s.categories, s.site, s.mailer, s.dedup, renderer,
		config.NotificationConfig{SendTimeout: 100 * time.Millisecond, Workers: 1, DedupTTL: time.Hour},
		"noreply@portal.test", "example.com", logger,
	)

	s.posts.EXPECT().GetByID(ctx, int64(42)).Return(s.newsPost(), nil)
	s.categories.EXPECT().SubscribersOf(ctx, gomock.Any()).Return([]domain.User{
		{ID: 1, Email: "u1@example.com"},
		{ID: 2, Email: "u2@example.com"},
		{ID: 3, Email: "u3@example.com"},
	}, nil)
	s.site.EXPECT().CanonicalDomain(ctx).Return("portal.test", nil)

	start := time.Now()
	stats := dispatcher.OnCategoriesFinalized(ctx, 42)
	elapsed := time.Since(start)

	s.Equal(1, stats.Failed)
	s.Equal(2, stats.Sent)
	s.Equal([]string{"u2@example.com", "u3@example.com"}, s.mailer.recipients())
	s.Less(elapsed, time.Second)
}
