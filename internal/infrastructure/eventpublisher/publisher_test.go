package eventpublisher

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/infrastructure/metrics"
	"github.com/iho/ledgerclose/internal/usecase"
)

func TestRunOncePublishesAndMarks(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []*domain.OutboxEvent{{ID: "evt-1", EventType: domain.EventTypeSnapshotFinalized}},
	}
	pub := &stubPublisher{}
	ep := newTestPublisher(repo, pub)

	n, err := ep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 published, got %d", n)
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(pub.published))
	}
	if len(repo.marked) != 1 || repo.marked[0] != "evt-1" {
		t.Fatalf("expected event to be marked published, got %#v", repo.marked)
	}
}

func TestRunOnceContinuesOnPublishError(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []*domain.OutboxEvent{
			{ID: "evt-1", EventType: domain.EventTypePeriodClosed},
			{ID: "evt-2", EventType: domain.EventTypePaymentAllocated},
		},
	}
	pub := &stubPublisher{
		errorsByID: map[string]error{"evt-1": errors.New("fail")},
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	ep := NewEventPublisher(Config{
		OutboxRepo: repo,
		Publisher:  pub,
		Metrics:    m,
		Logger:     zerolog.Nop(),
		BatchSize:  10,
	})

	n, err := ep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 published, got %d", n)
	}

	if len(pub.published) != 1 || pub.published[0].ID != "evt-2" {
		t.Fatalf("expected only evt-2 to be published, got %#v", pub.published)
	}
	if len(repo.marked) != 1 || repo.marked[0] != "evt-2" {
		t.Fatalf("expected only evt-2 to be marked, got %#v", repo.marked)
	}
	if got := testutil.ToFloat64(m.OutboxFailures); got != 1 {
		t.Fatalf("expected 1 failure recorded, got %v", got)
	}
	if got := testutil.ToFloat64(m.OutboxPublished); got != 1 {
		t.Fatalf("expected 1 publish recorded, got %v", got)
	}
}

func TestRunOnceRetriesMarkPublished(t *testing.T) {
	repo := &stubOutboxRepo{
		events:   []*domain.OutboxEvent{{ID: "evt-1", EventType: domain.EventTypeSnapshotGenerated}},
		markErrs: []error{errors.New("deadlock"), nil},
	}
	pub := &stubPublisher{}
	retrier := &countingRetrier{attempts: 2}
	ep := NewEventPublisher(Config{
		OutboxRepo: repo,
		Publisher:  pub,
		Retrier:    retrier,
		Logger:     zerolog.Nop(),
	})

	n, err := ep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if n != 1 || retrier.calls != 1 {
		t.Fatalf("expected one retried mark, got published=%d calls=%d", n, retrier.calls)
	}
	if len(repo.marked) != 1 {
		t.Fatalf("expected event marked once, got %#v", repo.marked)
	}
}

func TestRunOnceFetchError(t *testing.T) {
	repo := &stubOutboxRepo{fetchErr: errors.New("db down")}
	ep := newTestPublisher(repo, &stubPublisher{})

	if _, err := ep.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected fetch error")
	}
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	repo := &stubOutboxRepo{}
	pub := &stubPublisher{}
	ep := newTestPublisher(repo, pub)
	ep.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ep.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop after cancel")
	}
}

func TestLogPublisherWritesPayload(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))

	err := p.Publish(context.Background(), &domain.OutboxEvent{
		ID:        "evt-1",
		TenantID:  "tenant-a",
		EventType: domain.EventTypePeriodClosed,
		Payload:   map[string]any{"financial_year": "2024"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"financial_year":"2024"`) || !strings.Contains(out, `"tenant_id":"tenant-a"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func newTestPublisher(repo *stubOutboxRepo, pub *stubPublisher) *EventPublisher {
	return NewEventPublisher(Config{
		OutboxRepo: repo,
		Publisher:  pub,
		Logger:     zerolog.Nop(),
		BatchSize:  10,
		Interval:   5 * time.Millisecond,
	})
}

type stubOutboxRepo struct {
	events   []*domain.OutboxEvent
	marked   []string
	markErrs []error
	fetchErr error
}

func (s *stubOutboxRepo) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	return nil
}

func (s *stubOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if len(s.events) <= limit {
		return append([]*domain.OutboxEvent(nil), s.events...), nil
	}
	return append([]*domain.OutboxEvent(nil), s.events[:limit]...), nil
}

func (s *stubOutboxRepo) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if len(s.markErrs) > 0 {
		err := s.markErrs[0]
		s.markErrs = s.markErrs[1:]
		if err != nil {
			return err
		}
	}
	s.marked = append(s.marked, id)
	return nil
}

type stubPublisher struct {
	published  []*domain.OutboxEvent
	errorsByID map[string]error
}

func (s *stubPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	if err := s.errorsByID[event.ID]; err != nil {
		return err
	}
	s.published = append(s.published, event)
	return nil
}

// countingRetrier retries up to attempts times without backoff.
type countingRetrier struct {
	attempts int
	calls    int
}

func (r *countingRetrier) Retry(ctx context.Context, op func() error) error {
	r.calls++
	var err error
	for i := 0; i < r.attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}
