package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sand/chain-compliance/backend/internal/entities"
)

// TopicTransactionCreated is the default topic of record-created events.
const TopicTransactionCreated = "compliance.transaction.created"

const writeTimeout = 5 * time.Second

// TransactionCreated is the payload of a record-created event.
type TransactionCreated struct {
	ID                 int64                      `json:"id"`
	TxID               string                     `json:"tx_id"`
	MonitoredAddressID int64                      `json:"monitored_address_id"`
	OrganizationID     *string                    `json:"organization_id,omitempty"`
	Status             entities.TransactionStatus `json:"status"`
	RiskScores         []int                      `json:"risk_scores"`
	Amount             string                     `json:"amount"`
	Notes              string                     `json:"notes,omitempty"`
	CreatedAt          time.Time                  `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes compliance events to Kafka. A publisher without brokers
// drops every event.
type Publisher struct {
	logger *slog.Logger
	writer messageWriter
}

// NewPublisher creates a publisher for topic. Empty brokers disable it.
func NewPublisher(logger *slog.Logger, brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		logger.Warn("Kafka brokers are not configured, compliance events are disabled")
		return &Publisher{logger: logger}
	}
	if topic == "" {
		topic = TopicTransactionCreated
	}

	return &Publisher{
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: writeTimeout,
		},
	}
}

// Enabled reports whether events are sent anywhere.
func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// PublishTransactionCreated sends the record keyed by monitored address, so
// events of one address stay ordered within a partition.
func (p *Publisher) PublishTransactionCreated(ctx context.Context, t *entities.ComplianceTransaction) error {
	if p.writer == nil {
		return nil
	}

	payload, err := json.Marshal(TransactionCreated{
		ID:                 t.ID,
		TxID:               t.TxID,
		MonitoredAddressID: t.MonitoredAddressID,
		OrganizationID:     t.OrganizationID,
		Status:             t.Status,
		RiskScores:         t.RiskScores,
		Amount:             t.Amount.String(),
		Notes:              t.Notes,
		CreatedAt:          t.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal transaction event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(t.MonitoredAddressID, 10)),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write transaction event: %w", err)
	}

	return nil
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
