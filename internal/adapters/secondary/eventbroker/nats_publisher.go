package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/atlasnotes/post-service/internal/core/domain"
	"github.com/atlasnotes/post-service/internal/core/ports"
)

type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

var _ ports.EventPublisher = (*NatsPublisher)(nil)

// Contrat implicite avec les consommateurs aval (indexation, flux...).
type PostEvent struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id"`
	Title       string    `json:"title"`
	Status      int16     `json:"status"`
	CategoryIDs []int64   `json:"category_ids"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (p *NatsPublisher) PublishPostCreated(ctx context.Context, post *domain.Post) error {
	return p.publish(ctx, "post.created", post)
}

func (p *NatsPublisher) PublishPostUpdated(ctx context.Context, post *domain.Post) error {
	return p.publish(ctx, "post.updated", post)
}

func (p *NatsPublisher) PublishPostDeleted(ctx context.Context, postID string) error {
	return p.nc.Publish("post.deleted", []byte(postID))
}

func (p *NatsPublisher) publish(ctx context.Context, subject string, post *domain.Post) error {
	categoryIDs := make([]int64, len(post.Categories))
	for i, c := range post.Categories {
		categoryIDs[i] = c.ID
	}

	event := PostEvent{
		ID:          post.ID,
		AuthorID:    post.UserID,
		Title:       post.Title,
		Status:      int16(post.Status),
		CategoryIDs: categoryIDs,
		OccurredAt:  post.UpdatedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	// Injection du contexte de trace dans les headers NATS.
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	slog.Info("📢 Publishing event", "subject", subject, "post_id", post.ID)

	return p.nc.PublishMsg(msg)
}
