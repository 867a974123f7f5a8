package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/fastprodman/ledgerengine/internal/repos/deadletters"
)

var _ deadletters.Sink = (*Sink)(nil)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Sink struct {
	writer messageWriter
}

func New(brokers []string, topic string) *Sink {
	return &Sink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Publish writes one message per letter, keyed by account id.
func (s *Sink) Publish(ctx context.Context, letters ...deadletters.Letter) error {
	if len(letters) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(letters))

	for _, l := range letters {
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("marshal letter: %w", err)
		}

		msgs = append(msgs, kafka.Message{
			Key:   []byte(l.AccountID),
			Value: data,
		})
	}

	err := s.writer.WriteMessages(ctx, msgs...)
	if err != nil {
		return fmt.Errorf("write dead letters: %w", err)
	}

	return nil
}

func (s *Sink) Close() error {
	return s.writer.Close()
}
