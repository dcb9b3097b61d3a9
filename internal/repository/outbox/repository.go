package outbox

import (
	"context"
	"encoding/json"
	"time"
)

type Record struct {
	ID        int64
	EventID   string
	Topic     string
	Key       string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    *time.Time
}

type Repository interface {
	// Insert joins the caller's transaction when ctx carries one, so the
	// record commits or rolls back with the state change it describes.
	Insert(ctx context.Context, eventID, topic, key string, payload any) error
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, ids []int64) error
}
