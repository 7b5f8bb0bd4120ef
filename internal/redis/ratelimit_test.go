package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowMessage(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter(newTestClient(t), RateLimitConfig{MessageLimit: 2, MessageWindow: time.Minute})

	for i, want := range []bool{true, true, false} {
		res, err := rl.AllowMessage(ctx, "a1")
		require.NoError(t, err, "AllowMessage %d", i)
		assert.Equal(t, want, res.Allowed, "AllowMessage %d = %+v", i, res)
	}

	// quotas are per user
	res, err := rl.AllowMessage(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)

	require.NoError(t, rl.ResetUser(ctx, "a1"))
	res, err = rl.AllowMessage(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestDefaultRateLimitConfig(t *testing.T) {
	rl := NewRateLimiter(nil, RateLimitConfig{})
	assert.Equal(t, DefaultRateLimitConfig(), rl.config)
}
