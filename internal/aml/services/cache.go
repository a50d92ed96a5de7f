package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sand/chain-compliance/backend/internal/core/ports"
	"github.com/sand/chain-compliance/backend/internal/entities"
	"github.com/sand/chain-compliance/backend/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "risk-tables"

// пауза между попытками обновления, пока источник недоступен
const refreshRetryDelay = time.Minute

// RiskTables неизменяемый снимок справочников риска
type RiskTables struct {
	Jurisdictions map[string]entities.JurisdictionRisk
	EntityTypes   map[string]float64
	Tags          map[string]float64
	LoadedAt      time.Time
}

// Jurisdiction ищет страну без учета регистра
func (t *RiskTables) Jurisdiction(country string) (entities.JurisdictionRisk, bool) {
	j, ok := t.Jurisdictions[strings.ToUpper(strings.TrimSpace(country))]
	return j, ok
}

// EntityTypeRisk возвращает риск типа сущности
func (t *RiskTables) EntityTypeRisk(entityType string) (float64, bool) {
	v, ok := t.EntityTypes[strings.ToLower(strings.TrimSpace(entityType))]
	return v, ok
}

// TagRisk возвращает риск тега
func (t *RiskTables) TagRisk(tag string) (float64, bool) {
	v, ok := t.Tags[entities.NormalizeTag(tag)]
	return v, ok
}

// RiskCache хранит последний полный снимок справочников.
// Читатели получают снимок через атомарный указатель, параллельные
// обновления схлопываются в одно.
type RiskCache struct {
	logger  *slog.Logger
	source  ports.RiskReferenceSource
	metrics *metrics.Metrics
	ttl     time.Duration
	now     func() time.Time

	snapshot atomic.Pointer[RiskTables]
	group    singleflight.Group

	// unix nano; до этого момента устаревший снимок отдается без обновления
	retryAfter atomic.Int64
}

// NewRiskCache создает кеш справочников
func NewRiskCache(logger *slog.Logger, source ports.RiskReferenceSource, ttl time.Duration, m *metrics.Metrics) *RiskCache {
	if ttl <= 0 {
		ttl = ports.DefaultRiskCacheTTL
	}
	return &RiskCache{
		logger:  logger,
		source:  source,
		metrics: m,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Tables возвращает актуальный снимок, обновляя его при истечении TTL.
// Если обновление не удалось, возвращается устаревший снимок.
func (c *RiskCache) Tables(ctx context.Context) (*RiskTables, error) {
	current := c.snapshot.Load()
	now := c.now()
	if current != nil && now.Sub(current.LoadedAt) < c.ttl {
		return current, nil
	}
	if current != nil && now.UnixNano() < c.retryAfter.Load() {
		return current, nil
	}

	v, err, _ := c.group.Do(refreshKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		c.metrics.IncCacheRefresh("failed")
		if current != nil {
			retryAt := c.now().Add(min(refreshRetryDelay, c.ttl))
			c.retryAfter.Store(retryAt.UnixNano())
			c.logger.WarnContext(ctx, "Risk tables refresh failed, serving stale snapshot",
				"error", err,
				"loaded_at", current.LoadedAt,
				"retry_at", retryAt)
			return current, nil
		}
		return nil, err
	}

	return v.(*RiskTables), nil
}

// Invalidate помечает снимок устаревшим; он продолжает обслуживать
// запросы, пока следующее обновление не завершится
func (c *RiskCache) Invalidate() {
	c.retryAfter.Store(0)
	current := c.snapshot.Load()
	if current == nil {
		return
	}
	expired := *current
	expired.LoadedAt = time.Time{}
	c.snapshot.CompareAndSwap(current, &expired)
}

func (c *RiskCache) refresh(ctx context.Context) (*RiskTables, error) {
	jurisdictions, err := c.source.ListJurisdictions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load jurisdictions: %w", err)
	}

	typeRisks, err := c.source.ListEntityTypeRisks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity type risks: %w", err)
	}

	tagRisks, err := c.source.ListTagRisks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tag risks: %w", err)
	}

	tables := &RiskTables{
		Jurisdictions: make(map[string]entities.JurisdictionRisk, len(jurisdictions)),
		EntityTypes:   make(map[string]float64, len(typeRisks)),
		Tags:          make(map[string]float64, len(tagRisks)),
		LoadedAt:      c.now(),
	}
	for _, j := range jurisdictions {
		tables.Jurisdictions[strings.ToUpper(strings.TrimSpace(j.Country))] = j
	}
	for k, v := range typeRisks {
		tables.EntityTypes[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for k, v := range tagRisks {
		tables.Tags[entities.NormalizeTag(k)] = v
	}

	c.snapshot.Store(tables)
	c.retryAfter.Store(0)
	c.metrics.IncCacheRefresh("success")
	c.logger.InfoContext(ctx, "Risk tables refreshed",
		"jurisdictions", len(tables.Jurisdictions),
		"entity_types", len(tables.EntityTypes),
		"tags", len(tables.Tags))

	return tables, nil
}
