package app

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProcSynth/internal/application/optimization"
	"github.com/turtacn/ProcSynth/internal/config"
	"github.com/turtacn/ProcSynth/internal/infrastructure/solver/bnb"
	"github.com/turtacn/ProcSynth/internal/testutil"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/common"
)

func TestNew_DefaultsAreOffline(t *testing.T) {
	rt, err := New(context.Background(), nil, nil, Options{})
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, bnb.Name, rt.Solver.Name())
	assert.Nil(t, rt.Redis)
	assert.Nil(t, rt.Runs)
	assert.Nil(t, rt.Producer)
	assert.Nil(t, rt.MetricsHandler())
	assert.Empty(t, rt.Health(context.Background()))

	resp, err := rt.Service.Execute(context.Background(), &optimization.Request{Case: testutil.TwoUnitCase()})
	require.NoError(t, err)
	assert.InDelta(t, -40, *resp.Single.Objective, 1e-6)
}

func TestNew_SolverSelection(t *testing.T) {
	cfg := config.Default()
	cfg.Solver.Backend = "cplex"
	_, err := New(context.Background(), cfg, nil, Options{})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	cfg = config.Default()
	cfg.Solver.Backend = config.SolverHiGHS
	cfg.Solver.HiGHS.Binary = "/nonexistent/highs"
	_, err = New(context.Background(), cfg, nil, Options{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeSolverUnavailable))
}

func TestNew_MetricsAreServed(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = true
	rt, err := New(context.Background(), cfg, testutil.NewMockLogger(), Options{})
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Service.Execute(context.Background(), &optimization.Request{Case: testutil.TwoUnitCase()})
	require.NoError(t, err)

	h := rt.MetricsHandler()
	require.NotNil(t, h)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "procsynth_runs_total")
	assert.Contains(t, string(body), "procsynth_solves_total")
	assert.Contains(t, string(body), "procsynth_compile_duration_seconds")
}

func TestNew_RedisCacheAndHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	rt, err := New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	require.NotNil(t, rt.Cache)

	for i := 0; i < 2; i++ {
		resp, err := rt.Service.Execute(context.Background(), &optimization.Request{Case: testutil.TwoUnitCase()})
		require.NoError(t, err)
		assert.InDelta(t, -40, *resp.Single.Objective, 1e-6)
	}
	assert.NotEmpty(t, mr.Keys())

	health := rt.Health(context.Background())
	require.Len(t, health, 1)
	assert.Equal(t, "redis", health[0].Name)
	assert.Equal(t, common.HealthUp, health[0].Status)

	mr.Close()
	health = rt.Health(context.Background())
	assert.Equal(t, common.HealthDown, health[0].Status)
	assert.Equal(t, common.HealthDown, common.Overall(health, nil))
	assert.Equal(t, common.HealthDegraded, common.Overall(health, map[string]bool{"redis": true}))

	require.NoError(t, rt.Close())
}

func TestNew_OfflineIgnoresBackingServices(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.Kafka.Enabled = true

	rt, err := New(context.Background(), cfg, nil, Options{Offline: true})
	require.NoError(t, err)
	assert.Nil(t, rt.Redis)
	assert.Nil(t, rt.Producer)
}
