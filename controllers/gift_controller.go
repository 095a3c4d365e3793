package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lunora/arcana/models"
	"github.com/lunora/arcana/services"
	"github.com/lunora/arcana/utils"
)

// GiftController exposes the gift ledger: listing own gifts and admin grants.
type GiftController struct {
	db    *gorm.DB
	gifts *services.GiftService
}

// NewGiftController creates a new controller instance.
func NewGiftController(db *gorm.DB, gifts *services.GiftService) *GiftController {
	return &GiftController{db: db, gifts: gifts}
}

// List returns the authenticated user's gifts, unused first.
func (g *GiftController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	gifts, err := g.gifts.ListForUser(ctx.Request.Context(), userID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to list gifts")
		return
	}
	unused, err := g.gifts.UnusedCount(ctx.Request.Context(), userID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to list gifts")
		return
	}
	utils.Success(ctx, gin.H{"items": gifts, "unused": unused})
}

// Grant issues gifts to a user. Admin only.
func (g *GiftController) Grant(ctx *gin.Context) {
	if !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40310, "admin required")
		return
	}

	var req struct {
		Username   string `json:"username" binding:"required"`
		SpreadType string `json:"spread_type" binding:"required"`
		Count      int    `json:"count"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "invalid request payload")
		return
	}

	var user models.User
	if err := g.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	gifts, err := g.gifts.Grant(ctx.Request.Context(), user.ID, req.SpreadType, req.Count)
	if err != nil {
		if errors.Is(err, services.ErrUnknownSpread) {
			utils.Error(ctx, http.StatusBadRequest, 40041, "unknown spread type")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to grant gifts")
		return
	}
	utils.Success(ctx, gin.H{"granted": len(gifts), "items": gifts})
}
