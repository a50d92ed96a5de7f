package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sand/chain-compliance/backend/internal/entities"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisherWithoutBrokersDropsEvents(t *testing.T) {
	p := NewPublisher(slog.Default(), nil, "")

	assert.False(t, p.Enabled())
	require.NoError(t, p.PublishTransactionCreated(context.Background(), &entities.ComplianceTransaction{TxID: "tx"}))
	require.NoError(t, p.Close())
}

func TestPublishTransactionCreated(t *testing.T) {
	w := &recordingWriter{}
	p := &Publisher{logger: slog.Default(), writer: w}

	record := &entities.ComplianceTransaction{
		ID:                 7,
		TxID:               "abc",
		MonitoredAddressID: 42,
		Status:             entities.StatusUnassigned,
		RiskScores:         []int{80},
		Amount:             decimal.RequireFromString("0.5"),
	}

	require.NoError(t, p.PublishTransactionCreated(context.Background(), record))
	require.Len(t, w.messages, 1)
	assert.Equal(t, "42", string(w.messages[0].Key))

	var payload TransactionCreated
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &payload))
	assert.Equal(t, "abc", payload.TxID)
	assert.Equal(t, "0.5", payload.Amount)
	assert.Equal(t, []int{80}, payload.RiskScores)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishTransactionCreatedWriteError(t *testing.T) {
	p := &Publisher{logger: slog.Default(), writer: &recordingWriter{err: errors.New("broker down")}}

	err := p.PublishTransactionCreated(context.Background(), &entities.ComplianceTransaction{TxID: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
