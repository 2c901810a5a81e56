package usecase

import (
	"time"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/infrastructure/metrics"
)

func recordError(m *metrics.Metrics, operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.OperationErrors.WithLabelValues(operation, string(domain.KindOf(err))).Inc()
}

func newEvent(id, tenantID, aggregateID, aggregateType, eventType string, payload map[string]any, now time.Time) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            id,
		TenantID:      tenantID,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}
}
