package provider

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, "test:coint", time.Hour)
	ctx := context.Background()

	mock.ExpectSet("test:coint:AAPL_MSFT:252:10", "0.03", time.Hour).SetVal("OK")
	cache.SetPValue(ctx, "AAPL_MSFT:252:10", 0.03)

	mock.ExpectGet("test:coint:AAPL_MSFT:252:10").SetVal("0.03")
	p, ok := cache.GetPValue(ctx, "AAPL_MSFT:252:10")
	require.True(t, ok)
	assert.Equal(t, 0.03, p)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheMissAndFailureAreSoft(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, "", 0) // defaults

	mock.ExpectGet("spreadrun:coint:missing").RedisNil()
	_, ok := cache.GetPValue(context.Background(), "missing")
	assert.False(t, ok, "a miss is not an error")

	mock.ExpectGet("spreadrun:coint:broken").SetVal("not-a-float")
	_, ok = cache.GetPValue(context.Background(), "broken")
	assert.False(t, ok, "unparseable payload degrades to a miss")
}
