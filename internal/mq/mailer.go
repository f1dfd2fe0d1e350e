package mq

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceEmail asks the accounting mailer to send a finalized invoice to a client.
type InvoiceEmail struct {
	Template      string          `json:"template"`
	InvoiceID     string          `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	TicketID      string          `json:"ticket_id"`
	Recipient     string          `json:"recipient"`
	RecipientName string          `json:"recipient_name"`
	Total         decimal.Decimal `json:"total"`
}

// Mailer dispatches invoice emails.
type Mailer interface {
	SendInvoice(ctx context.Context, msg InvoiceEmail) error
}

// BrokerMailer hands invoice emails to the accounting mailer through the broker.
type BrokerMailer struct {
	publisher  Publisher
	routingKey string
}

// NewBrokerMailer builds a mailer publishing on routingKey.
func NewBrokerMailer(publisher Publisher, routingKey string) *BrokerMailer {
	return &BrokerMailer{publisher: publisher, routingKey: routingKey}
}

// SendInvoice publishes the message.
func (m *BrokerMailer) SendInvoice(ctx context.Context, msg InvoiceEmail) error {
	return m.publisher.Publish(ctx, m.routingKey, msg)
}

// LogMailer only logs; used when no broker is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendInvoice logs the message.
func (m *LogMailer) SendInvoice(_ context.Context, msg InvoiceEmail) error {
	m.logger.Info("invoice email",
		zap.String("template", msg.Template),
		zap.String("invoice_number", msg.InvoiceNumber),
		zap.String("recipient", msg.Recipient),
		zap.String("total", msg.Total.StringFixed(2)))
	return nil
}
