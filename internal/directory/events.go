package directory

import (
	"context"
	"time"

	"github.com/hamzaconcepts-eng/MMPS/internal/student"
)

type EventType string

const (
	EventStudentUpdated  EventType = "student.updated"
	EventStudentsDeleted EventType = "students.deleted"
)

// StudentEvent announces a write that reached the record store.
type StudentEvent struct {
	Type       EventType    `json:"type"`
	StudentIDs []string     `json:"student_ids"`
	Student    *student.Row `json:"student,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Producer interface for messaging (NATS/Kafka)
type Producer interface {
	SendMessage(ctx context.Context, key string, value interface{}) error
	Close() error
}

type Publisher interface {
	Publish(ctx context.Context, event StudentEvent) error
}

type producerPublisher struct {
	producer Producer
}

// NewPublisher sends student events through a broker producer, keyed by event type.
func NewPublisher(producer Producer) Publisher {
	return &producerPublisher{producer: producer}
}

func (p *producerPublisher) Publish(ctx context.Context, event StudentEvent) error {
	return p.producer.SendMessage(ctx, string(event.Type), event)
}
