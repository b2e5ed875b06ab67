package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values     map[string]string
	getErr     error
	setErr     error
	pingErr    error
	evalReply  interface{} // overrides the emulated script reply when set
	lastSet    string
	lastScript string
	setCalls   int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

// Eval emulates putIfAbsentScript against the in-memory map.
func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.setCalls++
	f.lastScript = script
	f.lastSet = keys[0]
	if f.setErr != nil {
		return redis.NewCmdResult(nil, f.setErr)
	}
	if f.evalReply != nil {
		return redis.NewCmdResult(f.evalReply, nil)
	}
	if current := f.values[keys[0]]; current != "" {
		return redis.NewCmdResult([]interface{}{int64(0), current}, nil)
	}
	f.values[keys[0]] = args[0].(string)
	return redis.NewCmdResult([]interface{}{int64(1), args[0]}, nil)
}

func (f *fakeRedis) Ping(_ context.Context) *redis.StatusCmd {
	if f.pingErr != nil {
		return redis.NewStatusResult("", f.pingErr)
	}
	return redis.NewStatusResult("PONG", nil)
}

func mustNewRedisClient(t *testing.T, f *fakeRedis) *RedisClient {
	t.Helper()
	c, err := NewRedisClient(f)
	require.NoError(t, err)
	return c
}

func TestNewRedisClient_NilAPI(t *testing.T) {
	_, err := NewRedisClient(nil)
	require.Error(t, err)
}

func TestRedisGetThread_Hit(t *testing.T) {
	f := newFakeRedis()
	f.values["thread:555"] = "th_abc"
	c := mustNewRedisClient(t, f)

	v, found, err := c.GetThread(context.Background(), "555")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "th_abc", v)
}

func TestRedisGetThread_Miss(t *testing.T) {
	c := mustNewRedisClient(t, newFakeRedis())

	v, found, err := c.GetThread(context.Background(), "555")
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, v)
}

func TestRedisGetThread_Error(t *testing.T) {
	f := newFakeRedis()
	f.getErr = errors.New("connection refused")
	c := mustNewRedisClient(t, f)

	_, _, err := c.GetThread(context.Background(), "555")
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestRedisPutThreadIfAbsent_Created(t *testing.T) {
	f := newFakeRedis()
	c := mustNewRedisClient(t, f)

	stored, created, err := c.PutThreadIfAbsent(context.Background(), "555", "th_new")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "th_new", stored)
	require.Equal(t, "thread:555", f.lastSet)
	require.Equal(t, putIfAbsentScript, f.lastScript)
	require.Equal(t, "th_new", f.values["thread:555"])
}

func TestRedisPutThreadIfAbsent_ReplacesEmptyValue(t *testing.T) {
	f := newFakeRedis()
	f.values["thread:555"] = ""
	c := mustNewRedisClient(t, f)

	stored, created, err := c.PutThreadIfAbsent(context.Background(), "555", "th_repaired")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "th_repaired", stored)
	require.Equal(t, "th_repaired", f.values["thread:555"])
}

func TestRedisPutThreadIfAbsent_UnexpectedReply(t *testing.T) {
	f := newFakeRedis()
	f.evalReply = []interface{}{int64(1)}
	c := mustNewRedisClient(t, f)

	_, _, err := c.PutThreadIfAbsent(context.Background(), "555", "th_new")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected reply")

	f.evalReply = "OK"
	_, _, err = c.PutThreadIfAbsent(context.Background(), "555", "th_new")
	require.Error(t, err)
}

func TestRedisPutThreadIfAbsent_ExistingWins(t *testing.T) {
	f := newFakeRedis()
	f.values["thread:555"] = "th_first"
	c := mustNewRedisClient(t, f)

	stored, created, err := c.PutThreadIfAbsent(context.Background(), "555", "th_second")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "th_first", stored)
	require.Equal(t, "th_first", f.values["thread:555"])
}

func TestRedisPutThreadIfAbsent_Error(t *testing.T) {
	f := newFakeRedis()
	f.setErr = errors.New("READONLY")
	c := mustNewRedisClient(t, f)

	_, _, err := c.PutThreadIfAbsent(context.Background(), "555", "th_new")
	require.Error(t, err)
	require.Contains(t, err.Error(), "READONLY")
}

func TestRedisPing(t *testing.T) {
	f := newFakeRedis()
	c := mustNewRedisClient(t, f)
	require.NoError(t, c.Ping(context.Background()))

	f.pingErr = errors.New("i/o timeout")
	err := c.Ping(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "i/o timeout")
}

func TestOpenRedis(t *testing.T) {
	c, err := OpenRedis("redis://:secret@cache.internal:6380/2")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.Equal(t, "cache.internal:6380", c.Options().Addr)
	require.Equal(t, "secret", c.Options().Password)
	require.Equal(t, 2, c.Options().DB)

	d, err := OpenRedis("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.Equal(t, "localhost:6379", d.Options().Addr)

	_, err = OpenRedis("http://not-redis")
	require.Error(t, err)
}
