package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

func TestNewClient_Standalone(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(Config{Mode: "standalone", Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Underlying().Ping(context.Background()).Err())
}

func TestNewClient_ConnectionRefused(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(Config{Addr: addr, DialTimeout: 200 * time.Millisecond}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheUnavail))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(Config{Addr: mr.Addr()}, nil)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Ping(context.Background()), ErrClientClosed)
}

func TestBuildTLSConfig_MissingCA(t *testing.T) {
	_, err := buildTLSConfig(Config{TLSEnabled: true, TLSCAFile: "/nonexistent/ca.pem"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	tc, err := buildTLSConfig(Config{})
	assert.NoError(t, err)
	assert.Nil(t, tc)
}

func TestLock_ExclusiveUntilUnlocked(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(Config{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	defer client.Close()
	ctx := context.Background()

	first := NewLock(client, "run-1", time.Minute)
	second := NewLock(client, "run-1", time.Minute)

	require.NoError(t, first.TryLock(ctx))
	assert.ErrorIs(t, second.TryLock(ctx), ErrLockNotAcquired)
	assert.ErrorIs(t, second.Unlock(ctx), ErrLockNotHeld)

	require.NoError(t, first.Unlock(ctx))
	assert.NoError(t, second.TryLock(ctx))
}

func TestLock_LeaseExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(Config{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	defer client.Close()
	ctx := context.Background()

	require.NoError(t, NewLock(client, "run-2", time.Second).TryLock(ctx))
	mr.FastForward(2 * time.Second)
	assert.NoError(t, NewLock(client, "run-2", time.Second).TryLock(ctx))
}
