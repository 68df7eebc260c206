package run

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("wait_and_see")
	require.NoError(t, err)
	assert.Equal(t, ModeWaitAndSee, m)

	_, err = ParseMode("robust")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestRun_Lifecycle(t *testing.T) {
	r := New(ModeStochastic, "two-source", "NPC", "bnb")
	assert.Equal(t, StatusPending, r.Status)
	assert.NotEqual(t, uuid.Nil, r.ID)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, r.Start(now))
	assert.Equal(t, now, *r.StartedAt)
	assert.True(t, errors.IsCode(r.Start(now), errors.CodeConflict))

	require.NoError(t, r.Succeed(now.Add(time.Second), map[string]float64{"VSS": 0, "EVPI": 0.1667}))
	assert.True(t, r.Status.Terminal())
	assert.InDelta(t, 0.1667, r.Summary["EVPI"], 1e-9)
	assert.True(t, errors.IsCode(r.Fail(now, nil), errors.CodeConflict))
}

func TestRun_FailRecordsCause(t *testing.T) {
	r := New(ModeSingle, "reactor", "TAC", "highs")
	require.NoError(t, r.Fail(time.Now(), stderrors.New("solver binary missing")))
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "solver binary missing", r.Error)
	assert.NotNil(t, r.FinishedAt)
}
