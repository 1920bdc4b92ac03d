//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *redis.RedisContainer
	client    *goredis.Client
	store     *RedisStore
}

func (s *RedisIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := redis.Run(s.ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(s.ctx)
	s.Require().NoError(err)

	opts, err := goredis.ParseURL(uri)
	s.Require().NoError(err)
	s.client = goredis.NewClient(opts)
	s.store = NewRedisStore(s.client, "test:")
}

func (s *RedisIntegrationSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *RedisIntegrationSuite) SetupTest() {
	s.Require().NoError(s.client.FlushDB(s.ctx).Err())
}

func TestRedisIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RedisIntegrationSuite))
}

func (s *RedisIntegrationSuite) TestDelete_PresentAndAbsent() {
	s.Require().NoError(s.client.Set(s.ctx, "test:news_list", "cached", time.Minute).Err())

	s.NoError(s.store.Delete(s.ctx, "news_list", "post_1"))
	s.NoError(s.store.Delete(s.ctx, "news_list", "post_1"))

	exists, err := s.client.Exists(s.ctx, "test:news_list").Result()
	s.NoError(err)
	s.Zero(exists)
}

func (s *RedisIntegrationSuite) TestOnce_RunsOnlyOnce() {
	calls := 0
	fn := func() error { calls++; return nil }

	ran, err := s.store.Once(s.ctx, NotifyKey(1, 2), time.Minute, fn)
	s.NoError(err)
	s.True(ran)

	ran, err = s.store.Once(s.ctx, NotifyKey(1, 2), time.Minute, fn)
	s.NoError(err)
	s.False(ran)
	s.Equal(1, calls)
}

func (s *RedisIntegrationSuite) TestOnce_FailureReleasesClaim() {
	ran, err := s.store.Once(s.ctx, NotifyKey(3, 4), time.Minute, func() error { return errors.New("smtp down") })
	s.Error(err)
	s.True(ran)

	ran, err = s.store.Once(s.ctx, NotifyKey(3, 4), time.Minute, func() error { return nil })
	s.NoError(err)
	s.True(ran)
}
