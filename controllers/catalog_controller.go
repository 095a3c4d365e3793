package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lunora/arcana/models"
	"github.com/lunora/arcana/tarot"
	"github.com/lunora/arcana/utils"
)

// CatalogController serves the static card and spread catalogs, the moon
// phase, and the user's card collection.
type CatalogController struct {
	db      *gorm.DB
	catalog *tarot.Catalog
}

// NewCatalogController creates a new controller instance.
func NewCatalogController(db *gorm.DB, catalog *tarot.Catalog) *CatalogController {
	return &CatalogController{db: db, catalog: catalog}
}

// Cards returns the full 78-card catalog. The payload is static, so it is
// cached aggressively.
func (c *CatalogController) Cards(ctx *gin.Context) {
	const cacheKey = "cache:catalog:cards"
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: gin.H{"items": c.catalog.All()}}
	utils.CacheSetJSON(cacheKey, wrapper, 24*time.Hour)
	utils.Success(ctx, gin.H{"items": c.catalog.All()})
}

// Spreads returns every spread definition with its ordered positions.
func (c *CatalogController) Spreads(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"items": tarot.Spreads()})
}

// Moon returns the current moon phase, or the phase for an optional
// ?date=YYYY-MM-DD query.
func (c *CatalogController) Moon(ctx *gin.Context) {
	at := time.Now()
	if q := ctx.Query("date"); q != "" {
		parsed, err := time.Parse("2006-01-02", q)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40080, "date must be YYYY-MM-DD")
			return
		}
		at = parsed
	}
	utils.Success(ctx, gin.H{"phase": tarot.MoonPhase(at), "date": at.Format("2006-01-02")})
}

// Collection returns the user's card album with catalog details attached.
func (c *CatalogController) Collection(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var entries []models.CollectionEntry
	if err := c.db.Where("user_id = ?", userID).Order("last_seen_at DESC").Find(&entries).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to load collection")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		item := gin.H{
			"card_id":        e.CardID,
			"times_received": e.TimesReceived,
			"first_seen_at":  e.FirstSeenAt,
			"last_seen_at":   e.LastSeenAt,
		}
		if card, found := c.catalog.ByID(e.CardID); found {
			item["name"] = card.Name
			item["arcana"] = card.Arcana
			item["suit"] = card.Suit
		}
		items = append(items, item)
	}
	utils.Success(ctx, gin.H{
		"items":     items,
		"collected": len(entries),
		"total":     c.catalog.Size(),
	})
}
