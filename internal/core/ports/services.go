package ports

import (
	"context"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishAnnotationEvent(ctx context.Context, ev *domain.AnnotationEvent) error
	// PublishRender fans a serialized render command out to browsers
	// watching the incident map.
	PublishRender(ctx context.Context, incidentID string, data []byte) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeAnnotationEvents(ctx context.Context, handler func(ctx context.Context, ev *domain.AnnotationEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// QREncoder renders a QR code image.
type QREncoder interface {
	EncodePNG(content string, size int) ([]byte, error)
}
