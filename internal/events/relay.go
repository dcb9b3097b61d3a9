package events

import (
	"context"
	"io"
	"log"
	"time"

	outboxrepo "commerce-backoffice/internal/repository/outbox"
	"github.com/segmentio/kafka-go"
)

type pendingStore interface {
	FetchPending(ctx context.Context, limit int) ([]outboxrepo.Record, error)
	MarkSent(ctx context.Context, ids []int64) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Relay copies pending outbox rows to Kafka and marks them sent. Delivery is
// at least once: a crash between write and mark re-sends the batch.
type Relay struct {
	store    pendingStore
	writer   messageWriter
	batch    int
	interval time.Duration
	logger   *log.Logger
}

func NewRelay(store pendingStore, writer messageWriter, interval time.Duration, logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Relay{store: store, writer: writer, batch: 100, interval: interval, logger: logger}
}

// NewWriter builds a Kafka writer. The topic is taken from each message.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := r.Flush(ctx)
			if err != nil {
				r.logger.Printf("relay: flush error=%v", err)
				break
			}
			if n < r.batch {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Flush sends one batch and returns how many records were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	records, err := r.store.FetchPending(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		msgs = append(msgs, kafka.Message{
			Topic: rec.Topic,
			Key:   []byte(rec.Key),
			Value: rec.Payload,
			Time:  rec.CreatedAt.UTC(),
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(rec.EventID)},
			},
		})
		ids = append(ids, rec.ID)
	}
	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := r.store.MarkSent(ctx, ids); err != nil {
		return 0, err
	}
	r.logger.Printf("relay: sent count=%d last_id=%d", len(ids), ids[len(ids)-1])
	return len(ids), nil
}
