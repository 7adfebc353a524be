package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/tripmate/travel-booking/internal/models"
	"github.com/tripmate/travel-booking/pkg/payment"
)

const bookableItemColumns = `id, kind, title, price_cents, currency, min_group_size, max_group_size, capacity, created_at`

// CatalogRepository reads bookable items
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetByID returns an item, or nil when it does not exist
func (r *CatalogRepository) GetByID(ctx context.Context, id int64) (*models.BookableItem, error) {
	var item models.BookableItem
	query := `SELECT ` + bookableItemColumns + ` FROM bookable_items WHERE id = $1`

	err := r.db.GetContext(ctx, &item, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bookable item: %w", err)
	}

	item.Currency = payment.NormalizeCurrency(item.Currency)
	return &item, nil
}

// ListByKind returns items of one kind ordered by id
func (r *CatalogRepository) ListByKind(ctx context.Context, kind models.ItemKind, limit, offset int) ([]models.BookableItem, error) {
	items := []models.BookableItem{}
	query := `
		SELECT ` + bookableItemColumns + `
		FROM bookable_items
		WHERE kind = $1
		ORDER BY id
		LIMIT $2 OFFSET $3`

	if err := r.db.SelectContext(ctx, &items, query, kind, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list bookable items: %w", err)
	}

	for i := range items {
		items[i].Currency = payment.NormalizeCurrency(items[i].Currency)
	}
	return items, nil
}
