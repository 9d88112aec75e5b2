package limiter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"supportdesk/backend/internal/limiter"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// counterScripter emulates the fixed-window script with an in-memory counter.
type counterScripter struct {
	counts map[string]int
	limit  int
	err    error
	keys   []string
}

func (s *counterScripter) run(keys []string) *redis.Cmd {
	if s.err != nil {
		return redis.NewCmdResult(nil, s.err)
	}
	s.keys = append(s.keys, keys[0])
	s.counts[keys[0]]++
	if s.counts[keys[0]] > s.limit {
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(int64(1), nil)
}

func (s *counterScripter) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys)
}

func (s *counterScripter) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys)
}

func (s *counterScripter) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys)
}

func (s *counterScripter) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys)
}

func (s *counterScripter) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult([]bool{true}, nil)
}

func (s *counterScripter) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func TestLimiter_AllowsUpToLimitPerKey(t *testing.T) {
	rdb := &counterScripter{counts: map[string]int{}, limit: 2}
	l := limiter.New(rdb, 2, time.Minute, zap.NewNop())
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "anon:a"))
	assert.True(t, l.Allow(ctx, "anon:a"))
	assert.False(t, l.Allow(ctx, "anon:a"))
	assert.True(t, l.Allow(ctx, "anon:b"), "keys are independent")
	assert.Equal(t, "supportdesk:ratelimit:anon:a", rdb.keys[0])
}

func TestLimiter_FailsOpen(t *testing.T) {
	rdb := &counterScripter{counts: map[string]int{}, err: errors.New("connection refused")}
	l := limiter.New(rdb, 1, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(context.Background(), "user:1"))
	}
}

func TestLimiter_Disabled(t *testing.T) {
	var nilLimiter *limiter.Limiter
	assert.True(t, nilLimiter.Allow(context.Background(), "k"))
	assert.True(t, limiter.New(nil, 5, time.Minute, zap.NewNop()).Allow(context.Background(), "k"))
	assert.True(t, limiter.New(&counterScripter{counts: map[string]int{}}, 0, time.Minute, zap.NewNop()).Allow(context.Background(), "k"))
}
