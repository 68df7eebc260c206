package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

type solveSummary struct {
	Status    string  `json:"status"`
	Objective float64 `json:"objective"`
}

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.cache = NewCache(NewClientFrom(db, logging.NewNopLogger()), nil, WithPrefix("test:"), WithJitter(0))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

func (s *CacheTestSuite) TestGet_Hit() {
	want := solveSummary{Status: "optimal", Objective: -40}
	raw, _ := json.Marshal(want)
	s.mock.ExpectGet("test:k1").SetVal(string(raw))

	var got solveSummary
	s.Require().NoError(s.cache.Get(context.Background(), "k1", &got))
	s.Equal(want, got)
}

func (s *CacheTestSuite) TestGet_Miss() {
	s.mock.ExpectGet("test:k1").RedisNil()

	var got solveSummary
	err := s.cache.Get(context.Background(), "k1", &got)
	s.True(errors.IsCode(err, errors.ErrCodeCacheMiss))
}

func (s *CacheTestSuite) TestGet_Unavailable() {
	s.mock.ExpectGet("test:k1").SetErr(stderrors.New("connection reset"))

	var got solveSummary
	err := s.cache.Get(context.Background(), "k1", &got)
	s.True(errors.IsCode(err, errors.ErrCodeCacheUnavail))
}

func (s *CacheTestSuite) TestGet_CorruptValue() {
	s.mock.ExpectGet("test:k1").SetVal("{not json")

	var got solveSummary
	err := s.cache.Get(context.Background(), "k1", &got)
	s.True(errors.IsCode(err, errors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestSet_ExplicitTTL() {
	v := solveSummary{Status: "infeasible"}
	raw, _ := json.Marshal(v)
	s.mock.ExpectSet("test:k2", raw, time.Minute).SetVal("OK")

	s.NoError(s.cache.Set(context.Background(), "k2", v, time.Minute))
}

func (s *CacheTestSuite) TestDelete() {
	s.mock.ExpectDel("test:a", "test:b").SetVal(2)

	s.NoError(s.cache.Delete(context.Background(), "a", "b"))
	s.NoError(s.cache.Delete(context.Background()))
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func newMiniCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(Config{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewCache(client, nil, WithJitter(0), WithDefaultTTL(time.Hour)), mr
}

func TestGetOrLoad_LoadsOnceAndCaches(t *testing.T) {
	c, mr := newMiniCache(t)
	ctx := context.Background()
	var calls int32

	load := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return solveSummary{Status: "optimal", Objective: -28.8}, nil
	}

	var wg sync.WaitGroup
	results := make([]solveSummary, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.GetOrLoad(ctx, "run", &results[i], 0, load))
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, -28.8, r.Objective)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	assert.True(t, mr.Exists("procsynth:run"))
	assert.Equal(t, time.Hour, mr.TTL("procsynth:run"))

	before := atomic.LoadInt32(&calls)
	var again solveSummary
	require.NoError(t, c.GetOrLoad(ctx, "run", &again, 0, load))
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestGetOrLoad_LoaderErrorNotCached(t *testing.T) {
	c, mr := newMiniCache(t)
	boom := errors.New(errors.ErrCodeSolverFailure, "solver crashed")

	var got solveSummary
	err := c.GetOrLoad(context.Background(), "bad", &got, 0, func(context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.True(t, errors.IsCode(err, errors.ErrCodeSolverFailure))
	assert.False(t, mr.Exists("procsynth:bad"))
}

func TestTTLJitterStaysInRange(t *testing.T) {
	c := &redisCache{defaultTTL: 100 * time.Second, jitter: 0.1}
	for i := 0; i < 50; i++ {
		d := c.ttl(0)
		assert.GreaterOrEqual(t, d, 90*time.Second)
		assert.LessOrEqual(t, d, 110*time.Second)
	}
}
