package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerclose/internal/domain"
	"github.com/iho/ledgerclose/internal/infrastructure/metrics"
)

// ComparisonUseCase compares two snapshots of the same tenant.
type ComparisonUseCase struct {
	snapshotRepo   SnapshotRepository
	comparisonRepo ComparisonRepository
	cache          Cache
	idGen          IDGenerator
	clock          Clock
	cacheTTL       time.Duration
	logger         zerolog.Logger
	metrics        *metrics.Metrics
}

// NewComparisonUseCase creates a new ComparisonUseCase.
// cache and comparisonRepo may be nil.
func NewComparisonUseCase(
	snapshotRepo SnapshotRepository,
	comparisonRepo ComparisonRepository,
	cache Cache,
	idGen IDGenerator,
	clock Clock,
	cacheTTL time.Duration,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *ComparisonUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	if cacheTTL <= 0 {
		cacheTTL = ComparisonCacheTTL
	}
	return &ComparisonUseCase{
		snapshotRepo:   snapshotRepo,
		comparisonRepo: comparisonRepo,
		cache:          cache,
		idGen:          idGen,
		clock:          clock,
		cacheTTL:       cacheTTL,
		logger:         logger.With().Str("component", "comparison").Logger(),
		metrics:        metrics,
	}
}

// Compare computes per-account and per-section deltas between two snapshots.
// Comparisons of two finalized snapshots never change and are cached.
func (uc *ComparisonUseCase) Compare(ctx context.Context, tenantID, currentID, previousID string) (*domain.ComparisonRecord, error) {
	record, err := uc.compare(ctx, tenantID, currentID, previousID)
	if err != nil {
		recordError(uc.metrics, "compare", err)
		return nil, err
	}
	return record, nil
}

func (uc *ComparisonUseCase) compare(ctx context.Context, tenantID, currentID, previousID string) (*domain.ComparisonRecord, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if currentID == previousID {
		return nil, domain.ErrInvalidComparison
	}

	current, err := uc.snapshotRepo.GetByID(ctx, tenantID, currentID)
	if err != nil {
		return nil, domain.WrapDependency("load current snapshot", err)
	}
	previous, err := uc.snapshotRepo.GetByID(ctx, tenantID, previousID)
	if err != nil {
		return nil, domain.WrapDependency("load previous snapshot", err)
	}

	cacheable := uc.cache != nil && current.IsFinalized() && previous.IsFinalized()
	key := comparisonCacheKey(tenantID, currentID, previousID)

	if cacheable {
		if record := uc.fromCache(ctx, key); record != nil {
			if uc.metrics != nil {
				uc.metrics.ComparisonsServed.WithLabelValues("cache").Inc()
			}
			return record, nil
		}
	}

	record, err := domain.Compare(current, previous, uc.clock.Now())
	if err != nil {
		return nil, err
	}
	record.ID = uc.idGen.Generate()

	if uc.comparisonRepo != nil {
		if err := uc.comparisonRepo.Create(ctx, record); err != nil {
			uc.logger.Warn().Err(err).Str("comparison_id", record.ID).Msg("failed to record comparison")
		}
	}

	if cacheable {
		uc.toCache(ctx, key, record)
	}

	if uc.metrics != nil {
		uc.metrics.ComparisonsServed.WithLabelValues("computed").Inc()
	}
	uc.logger.Debug().
		Str("tenant_id", tenantID).
		Str("current_id", currentID).
		Str("previous_id", previousID).
		Int("lines", len(record.Lines)).
		Msg("comparison computed")

	return record, nil
}

func (uc *ComparisonUseCase) fromCache(ctx context.Context, key string) *domain.ComparisonRecord {
	data, err := uc.cache.Get(ctx, key)
	if err != nil {
		uc.logger.Warn().Err(err).Str("key", key).Msg("comparison cache read failed")
		return nil
	}
	if data == nil {
		return nil
	}

	var record domain.ComparisonRecord
	if err := json.Unmarshal(data, &record); err != nil {
		uc.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt cached comparison")
		_ = uc.cache.Delete(ctx, key)
		return nil
	}
	return &record
}

func (uc *ComparisonUseCase) toCache(ctx context.Context, key string, record *domain.ComparisonRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := uc.cache.Set(ctx, key, data, uc.cacheTTL); err != nil {
		uc.logger.Warn().Err(err).Str("key", key).Msg("comparison cache write failed")
	}
}

func comparisonCacheKey(tenantID, currentID, previousID string) string {
	return fmt.Sprintf("comparison:%s:%s:%s", tenantID, currentID, previousID)
}
