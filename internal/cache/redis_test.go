package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/eventlog/config"
	"example.com/backstage/services/eventlog/internal/event"
)

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	c, err := NewRedisCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	var id event.ID
	id[0] = 1

	require.NoError(t, c.SetPayload(ctx, id, []byte("payload")))

	_, err = c.GetPayload(ctx, id)
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Invalidate(ctx, id))
	require.NoError(t, c.Close())
}

func TestPayloadKey(t *testing.T) {
	var id event.ID
	id[0] = 0xab

	key := PayloadKey(id)

	assert.Equal(t, "event:payload:"+id.String(), key)
	assert.Len(t, key, len("event:payload:")+2*event.IDSize)
}
