package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Producer publishes JSON payloads on one NATS subject. The key becomes a
// subject suffix so subscribers can filter by event type.
type Producer struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewProducer(url string, subject string, logger *slog.Logger) (*Producer, error) {
	nc, err := nats.Connect(url, nats.Name("mmps-directory"))
	if err != nil {
		return nil, err
	}

	logger.Info("NATS producer initialized", "url", url, "subject", subject)

	return &Producer{
		conn:    nc,
		subject: subject,
		logger:  logger,
	}, nil
}

func (p *Producer) Subject(key string) string {
	if key == "" {
		return p.subject
	}
	return p.subject + "." + key
}

func (p *Producer) SendMessage(ctx context.Context, key string, value interface{}) error {
	valueBytes, err := json.Marshal(value)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal message", "error", err)
		return err
	}

	subject := p.Subject(key)
	if err := p.conn.Publish(subject, valueBytes); err != nil {
		p.logger.ErrorContext(ctx, "failed to send message to NATS", "error", err)
		return err
	}

	p.logger.InfoContext(ctx, "message sent to NATS", "subject", subject)
	return nil
}

func (p *Producer) Close() error {
	return p.conn.Drain()
}
