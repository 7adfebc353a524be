package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/models"
)

// CatalogReader serves bookable items
type CatalogReader interface {
	GetItem(ctx context.Context, kind models.ItemKind, id int64) (*models.BookableItem, error)
	ListItems(ctx context.Context, kind models.ItemKind, limit, offset int) ([]models.BookableItem, error)
}

// CatalogHandler handles catalog endpoints of every booking feature
type CatalogHandler struct {
	catalog CatalogReader
	logger  *logrus.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog CatalogReader, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// GetItem handles GET /api/v1/{feature}/items/:item_id
func (h *CatalogHandler) GetItem(c *gin.Context) {
	itemID, ok := int64Param(c, "item_id")
	if !ok {
		return
	}

	item, err := h.catalog.GetItem(c.Request.Context(), itemKind(c), itemID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// ListItems handles GET /api/v1/{feature}/items?limit=&offset=
func (h *CatalogHandler) ListItems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.catalog.ListItems(c.Request.Context(), itemKind(c), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

// int64Param parses a positive path parameter, writing a 400 when it is not one
func int64Param(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || value <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return value, true
}
