package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishAuditKeysByRef(t *testing.T) {
	w := &recordingWriter{}
	p := &DefaultKafkaPublisher{writer: w}
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	err := p.PublishAudit(context.Background(), &domain.AuditEvent{
		ID: "a1", Kind: domain.AuditLeaseIssued, RefID: "lease-1", Hash: "0xabc", Timestamp: ts,
		Details: map[string]any{"resourceId": "res-1"},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "lease-1", string(msg.Key))
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, "lease_issued", string(msg.Headers[0].Value))

	var decoded AuditMessage
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "a1", decoded.EventID)
	assert.Equal(t, "res-1", decoded.Details["resourceId"])
	assert.True(t, decoded.Timestamp.Equal(ts))
}

func TestPublishAuditWrapsWriterError(t *testing.T) {
	p := &DefaultKafkaPublisher{writer: &recordingWriter{err: errors.New("broker down")}}
	err := p.PublishAudit(context.Background(), &domain.AuditEvent{ID: "a1", RefID: "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a1")
}
