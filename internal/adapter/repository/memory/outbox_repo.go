package memory

import (
	"context"
	"time"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// Create appends an outbox event within a transaction.
func (r *OutboxRepository) Create(_ context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	return r.store.write(tx, func(st *state) error {
		cp := *event
		st.outbox = append(st.outbox, &cp)
		return nil
	})
}

// GetUnpublished retrieves unpublished events in creation order.
func (r *OutboxRepository) GetUnpublished(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	var out []*domain.OutboxEvent
	err := r.store.read(func(st *state) error {
		for _, e := range st.outbox {
			if e.Published {
				continue
			}
			cp := *e
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	return r.store.write(nil, func(st *state) error {
		for _, e := range st.outbox {
			if e.ID == id {
				t := publishedAt
				e.Published = true
				e.PublishedAt = &t
				return nil
			}
		}
		return nil
	})
}

// Events returns every stored event of the given type.
func (r *OutboxRepository) Events(eventType string) []*domain.OutboxEvent {
	var out []*domain.OutboxEvent
	_ = r.store.read(func(st *state) error {
		for _, e := range st.outbox {
			if e.EventType == eventType {
				cp := *e
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out
}
