package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/zenobundle/zenobundle-gobackend/internal/logging"
	"github.com/zenobundle/zenobundle-gobackend/internal/models"
)

// Publisher pushes completed-payment events to the analytics topic. Like
// the legacy mirror it is a best-effort sink; publish failures only log.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(broker, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 10 * time.Second,
		},
	}
}

type completedEvent struct {
	OrderID         string `json:"order_id"`
	CustomerID      string `json:"customer_id"`
	Amount          int64  `json:"amount"`
	Package         string `json:"package"`
	Network         string `json:"network"`
	Channel         string `json:"channel,omitempty"`
	AssignedVoucher string `json:"assigned_voucher,omitempty"`
	CompletedAt     string `json:"completed_at"`
}

// PublishCompleted emits one event for a transaction that just reached
// COMPLETED. Safe on a nil Publisher.
func (p *Publisher) PublishCompleted(ctx context.Context, txn *models.Transaction) {
	if p == nil {
		return
	}

	payload, err := json.Marshal(completedEvent{
		OrderID:         txn.OrderID,
		CustomerID:      txn.CustomerID,
		Amount:          txn.Amount,
		Package:         txn.Package,
		Network:         txn.Network,
		Channel:         txn.Channel,
		AssignedVoucher: txn.AssignedVoucher,
		CompletedAt:     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		logging.Logger.Errorf("Failed to marshal completed event for %s: %v", txn.OrderID, err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(txn.OrderID),
		Value: payload,
	})
	if err != nil {
		logging.Logger.Errorf("Failed to publish completed event for %s: %v", txn.OrderID, err)
		return
	}
	logging.Logger.Infof("[KAFKA] Completed event sent for order %s", txn.OrderID)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
