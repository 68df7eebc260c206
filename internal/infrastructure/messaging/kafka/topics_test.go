package kafka

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/common"
)

type mockConn struct {
	existing map[string]bool
	created  []kafka.TopicConfig
	err      error
}

func (c *mockConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if c.err != nil {
		return c.err
	}
	c.created = append(c.created, topics...)
	return nil
}

func (c *mockConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if len(topics) == 1 && c.existing[topics[0]] {
		return []kafka.Partition{{Topic: topics[0]}}, nil
	}
	return nil, stderrors.New("unknown topic")
}

func (c *mockConn) Close() error { return nil }

func TestEnsureDefaultTopics_SkipsExisting(t *testing.T) {
	conn := &mockConn{existing: map[string]bool{TopicRunRequested: true}}
	m := &TopicManager{conn: conn, logger: nopLogger()}

	require.NoError(t, m.EnsureDefaultTopics(context.Background()))
	assert.Len(t, conn.created, len(DefaultTopics())-1)
	for _, c := range conn.created {
		assert.NotEqual(t, TopicRunRequested, c.Topic)
		assert.Equal(t, "retention.ms", c.ConfigEntries[0].ConfigName)
	}
}

func TestCreateTopic_Validation(t *testing.T) {
	m := &TopicManager{conn: &mockConn{}, logger: nopLogger()}
	err := m.CreateTopic(context.Background(), common.TopicConfig{Name: "t"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	m = &TopicManager{conn: &mockConn{err: stderrors.New("not controller")}, logger: nopLogger()}
	err = m.CreateTopic(context.Background(), common.TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
}

func TestEnvelope(t *testing.T) {
	env, err := NewEventEnvelope(TopicRunRequested, "cli", RunRequestedPayload{RunID: "r1", Mode: "stochastic", CaseKey: "two-source.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "v1", env.SchemaVersion)
	assert.NotEmpty(t, env.EventID)

	msg, err := env.ToMessage(TopicRunRequested, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", string(msg.Key))
	assert.Equal(t, TopicRunRequested, msg.Headers["event_type"])

	_, err = MessageToEventEnvelope(&common.Message{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	_, err = MessageToEventEnvelope(&common.Message{Value: []byte("{")})
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))

	empty := &EventEnvelope{EventID: "e"}
	var p RunRequestedPayload
	assert.True(t, errors.IsCode(empty.DecodePayload(&p), errors.ErrCodeValidation))
}

func nopLogger() logging.Logger { return logging.NewNopLogger() }
