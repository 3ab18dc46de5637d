package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidtube-auth/internal/telemetry"
)

type fakeWriter struct {
	msgs     []kafka.Message
	writeErr error
	closed   int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

func TestNewKafkaProducer_DisabledWithoutBrokers(t *testing.T) {
	p, err := NewKafkaProducer(nil, "topic")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, p.Emit(context.Background(), &telemetry.Event{Action: "login_success"}))
	assert.NoError(t, p.Close())

	p, err = NewKafkaProducer([]string{"localhost:9092"}, "vidtube-auth-events")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close(), "second close is a no-op")
}

func TestKafkaProducer_EmitWritesJSONKeyedByUser(t *testing.T) {
	w := &fakeWriter{}
	var p Producer = &KafkaProducer{writer: w, topic: "vidtube-auth-events"}
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := p.Emit(context.Background(), &telemetry.Event{
		ID: "e1", Action: "refresh_reuse", UserID: "u1", Source: "vidtube-auth", CreatedAt: created,
		Metadata: map[string]string{"token_fp": "abcd"},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "u1", string(msg.Key))
	assert.Equal(t, created, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "refresh_reuse", string(msg.Headers[0].Value))

	var decoded telemetry.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "refresh_reuse", decoded.Action)
	assert.Equal(t, "abcd", decoded.Metadata["token_fp"])
}

func TestKafkaProducer_EmitError(t *testing.T) {
	boom := errors.New("broker unreachable")
	p := &KafkaProducer{writer: &fakeWriter{writeErr: boom}, topic: "t"}
	err := p.Emit(context.Background(), &telemetry.Event{Action: "logout"})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, p.Emit(context.Background(), nil))
}
