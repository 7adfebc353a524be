package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/models"
)

// CatalogStore reads bookable items from persistent storage
type CatalogStore interface {
	GetByID(ctx context.Context, id int64) (*models.BookableItem, error)
	ListByKind(ctx context.Context, kind models.ItemKind, limit, offset int) ([]models.BookableItem, error)
}

// CatalogService serves bookable items through an optional Redis read-through cache
type CatalogService struct {
	store  CatalogStore
	cache  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCatalogService creates a catalog service. A nil cache disables caching.
func NewCatalogService(store CatalogStore, cache *redis.Client, ttl time.Duration, logger *logrus.Logger) *CatalogService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CatalogService{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func catalogCacheKey(id int64) string {
	return fmt.Sprintf("catalog:item:%d", id)
}

// GetItem returns an item of the given kind. Items of another kind are not found.
func (s *CatalogService) GetItem(ctx context.Context, kind models.ItemKind, id int64) (*models.BookableItem, error) {
	item, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.Kind != kind {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// ListItems lists items of one kind
func (s *CatalogService) ListItems(ctx context.Context, kind models.ItemKind, limit, offset int) ([]models.BookableItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListByKind(ctx, kind, limit, offset)
}

// Invalidate drops a cached item
func (s *CatalogService) Invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, catalogCacheKey(id)).Err(); err != nil {
		s.logger.WithError(err).WithField("item_id", id).Warn("Failed to invalidate catalog cache")
	}
}

func (s *CatalogService) lookup(ctx context.Context, id int64) (*models.BookableItem, error) {
	key := catalogCacheKey(id)

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var item models.BookableItem
			if jsonErr := json.Unmarshal(raw, &item); jsonErr == nil {
				return &item, nil
			}
		case !errors.Is(err, redis.Nil):
			// Cache trouble never fails a read
			s.logger.WithError(err).WithField("item_id", id).Warn("Catalog cache read failed")
		}
	}

	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	if item == nil {
		return nil, nil
	}

	if s.cache != nil {
		if payload, err := json.Marshal(item); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
				s.logger.WithError(err).WithField("item_id", id).Warn("Catalog cache write failed")
			}
		}
	}

	return item, nil
}
