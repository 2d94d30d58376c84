package liveness

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemChecker_IsLive(t *testing.T) {
	lookup := func(_ context.Context, host string) ([]string, error) {
		switch host {
		case "live.example":
			return []string{"192.0.2.10"}, nil
		case "empty.example":
			return nil, nil
		default:
			return nil, errors.New("no such host")
		}
	}
	c := NewSystem(SystemOptions{Lookup: lookup})

	assert.True(t, c.IsLive(context.Background(), "live.example"))
	assert.True(t, c.IsLive(context.Background(), "LIVE.example."))
	assert.False(t, c.IsLive(context.Background(), "live.example:443"), "port is part of the key")
	assert.False(t, c.IsLive(context.Background(), "user@live.example"), "userinfo is part of the key")
	assert.False(t, c.IsLive(context.Background(), "empty.example"))
	assert.False(t, c.IsLive(context.Background(), "dead.example"))
}

func TestSystemChecker_InvalidHostSkipsLookup(t *testing.T) {
	var calls atomic.Int32
	c := NewSystem(SystemOptions{Lookup: func(context.Context, string) ([]string, error) {
		calls.Add(1)
		return []string{"192.0.2.1"}, nil
	}})

	assert.False(t, c.IsLive(context.Background(), "not a host/at all"))
	assert.False(t, c.IsLive(context.Background(), ""))
	assert.Equal(t, int32(0), calls.Load())
}

func TestSystemChecker_TimeoutIsBounded(t *testing.T) {
	var calls atomic.Int32
	c := NewSystem(SystemOptions{
		Timeout: 50 * time.Millisecond,
		Lookup: func(ctx context.Context, _ string) ([]string, error) {
			calls.Add(1)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	start := time.Now()
	assert.False(t, c.IsLive(context.Background(), "slow.example"))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), calls.Load(), "no retries")
}

func TestSystemChecker_Defaults(t *testing.T) {
	c := NewSystem(SystemOptions{})
	require.NotNil(t, c.lookup)
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.NotNil(t, c.logger)
}

func TestNew(t *testing.T) {
	c, err := New(ModeSystem, 0, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &SystemChecker{}, c)

	c, err = New(ModeUpstream, time.Second, []string{"127.0.0.1:53"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &UpstreamChecker{}, c)

	_, err = New(ModeUpstream, time.Second, nil, nil)
	assert.Error(t, err)

	_, err = New(Mode("carrier-pigeon"), time.Second, nil, nil)
	assert.EqualError(t, err, "unsupported liveness mode: carrier-pigeon")
}

func TestLookupIPv4(t *testing.T) {
	addrs, err := lookupIPv4(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, addrs)

	_, err = lookupIPv4(context.Background(), "::1")
	assert.Error(t, err, "IPv6-only names have no A record")
}
