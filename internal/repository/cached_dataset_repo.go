package repository

import (
	"context"
	"time"

	"github.com/mozilla/clouseau/internal/domain"
	"github.com/mozilla/clouseau/pkg/cache"
	"github.com/mozilla/clouseau/pkg/logger"
)

// CacheConfig upstream response cache settings
type CacheConfig struct {
	CatalogTTL time.Duration
	DatasetTTL time.Duration
}

// DefaultCacheConfig default cache settings
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		CatalogTTL: cache.TTLCatalog,
		DatasetTTL: cache.TTLDataset,
	}
}

// CachedDatasetRepository reuses upstream responses across sessions for a short TTL
type CachedDatasetRepository struct {
	repo   DatasetRepository
	cache  cache.Service
	config *CacheConfig
}

// NewCachedDatasetRepository wraps repo; without an available cache repo is returned as is
func NewCachedDatasetRepository(repo DatasetRepository, cacheService cache.Service, config *CacheConfig) DatasetRepository {
	if cacheService == nil || !cacheService.IsAvailable() {
		return repo
	}
	if config == nil {
		config = DefaultCacheConfig()
	}
	return &CachedDatasetRepository{
		repo:   repo,
		cache:  cacheService,
		config: config,
	}
}

func (r *CachedDatasetRepository) FetchCatalog(ctx context.Context) (domain.Catalog, error) {
	var catalog domain.Catalog
	err := r.cache.GetCatalog(ctx, &catalog)
	if err == nil {
		cacheLookupsTotal.WithLabelValues(fetchKindCatalog, "hit").Inc()
		return catalog, nil
	}
	r.recordMiss(fetchKindCatalog, "catalog", err)

	catalog, err = r.repo.FetchCatalog(ctx)
	if err != nil {
		return domain.Catalog{}, err
	}
	if err := r.cache.SetCatalog(ctx, catalog, r.config.CatalogTTL); err != nil {
		logger.GetLogger().Warn().Err(err).Msg("failed to cache catalog")
	}
	return catalog, nil
}

func (r *CachedDatasetRepository) FetchDataset(ctx context.Context, key domain.DatasetKey) (domain.Dataset, error) {
	var ds domain.Dataset
	err := r.cache.GetDataset(ctx, key.Channel, key.Product, key.Date, &ds)
	if err == nil {
		cacheLookupsTotal.WithLabelValues(fetchKindDataset, "hit").Inc()
		return ds.Normalize(), nil
	}
	r.recordMiss(fetchKindDataset, key.String(), err)

	ds, err = r.repo.FetchDataset(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetDataset(ctx, key.Channel, key.Product, key.Date, ds, r.config.DatasetTTL); err != nil {
		logger.GetLogger().Warn().Err(err).Str("key", key.String()).Msg("failed to cache dataset")
	}
	return ds, nil
}

func (r *CachedDatasetRepository) recordMiss(kind, key string, err error) {
	if cache.IsMiss(err) {
		cacheLookupsTotal.WithLabelValues(kind, "miss").Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues(kind, "error").Inc()
	logger.GetLogger().Warn().Err(err).Str("key", key).Msg("cache lookup failed, falling back to upstream")
}
