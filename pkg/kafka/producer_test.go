package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, &ProducerConfig{Compression: "gzip", ClientID: "test"})

	err := p.Publish(context.Background(), "reports", []byte("run-1"), map[string]float64{"mse": 0.5})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "reports", w.msgs[0].Topic)
	assert.Equal(t, []byte("run-1"), w.msgs[0].Key)

	var got map[string]float64
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, 0.5, got["mse"])
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.msgs.WithLabelValues("reports", "gzip", "ok")))
}

func TestPublishBatchPassesRawValues(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, &ProducerConfig{})

	err := p.PublishBatch(context.Background(), "t", []Message{
		{Key: []byte("a"), Value: "text"},
		{Key: []byte("b"), Value: []byte{1, 2}},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, []byte("text"), w.msgs[0].Value)
	assert.Equal(t, []byte{1, 2}, w.msgs[1].Value)

	require.NoError(t, p.PublishBatch(context.Background(), "t", nil))
	assert.Len(t, w.msgs, 2)
}

func TestPublishCountsErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, &ProducerConfig{})

	err := p.PublishMessage(context.Background(), "logs", []string{"x"})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.errs.WithLabelValues("logs")))
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	require.Error(t, err)
}
