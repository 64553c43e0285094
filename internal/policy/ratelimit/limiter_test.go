package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterWaitsBetweenRequestsToSameHost(t *testing.T) {
	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://www.giantsclub.com/html/?pcode=257"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://www.giantsclub.com/html/?pcode=258"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://www.giantsclub.com/"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://www.koreabaseball.com/"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterDisabled(t *testing.T) {
	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for range 20 {
		require.NoError(t, l.Wait(ctx, "https://www.giantsclub.com/"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterHonoursContext(t *testing.T) {
	l := New(Config{RPS: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://a.test/"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "https://a.test/"))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "www.koreabaseball.com", hostOf("https://www.koreabaseball.com/Record"))
	assert.Equal(t, "unknown", hostOf("::not a url"))
	assert.Equal(t, "unknown", hostOf("relative/path"))
}
