package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lunora/arcana/models"
	"github.com/lunora/arcana/utils"
)

// AuthController handles account registration, login and profile updates.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates a new controller instance.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register creates a local account.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=3,max=64"`
		Password string `json:"password" binding:"required,min=8"`
		Email    string `json:"email"`
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	username := strings.TrimSpace(req.Username)
	var existing models.User
	if err := a.db.Where("username = ?", username).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "username already taken")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		Username:     username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
	}
	if tz := strings.TrimSpace(req.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40002, "invalid timezone")
			return
		}
		user.Timezone = tz
	}

	if err := a.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, 72*time.Hour)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  user,
	})
}

// Login authenticates a local account and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, 72*time.Hour)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  user,
	})
}

// Logout revokes the presented token until its natural expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}

	token := strings.TrimSpace(parts[1])
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(72 * time.Hour)
	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}

	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's profile.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	utils.Success(ctx, user)
}

// UpdateProfile updates the fields consumed by interpretation: name, birth
// date, zodiac, relationship status, city, deck theme and timezone.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req struct {
		Name               *string `json:"name"`
		BirthDate          *string `json:"birth_date"` // YYYY-MM-DD
		ZodiacSign         *string `json:"zodiac_sign"`
		RelationshipStatus *string `json:"relationship_status"`
		City               *string `json:"city"`
		DeckTheme          *string `json:"deck_theme"`
		Timezone           *string `json:"timezone"`
		Email              *string `json:"email"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(utils.Sanitize(*req.Name))
	}
	if req.BirthDate != nil {
		if *req.BirthDate == "" {
			user.BirthDate = nil
		} else {
			bd, err := time.Parse("2006-01-02", *req.BirthDate)
			if err != nil {
				utils.Error(ctx, http.StatusBadRequest, 40031, "birth_date must be YYYY-MM-DD")
				return
			}
			user.BirthDate = &bd
		}
	}
	if req.ZodiacSign != nil {
		user.ZodiacSign = strings.TrimSpace(*req.ZodiacSign)
	}
	if req.RelationshipStatus != nil {
		user.RelationshipStatus = strings.TrimSpace(*req.RelationshipStatus)
	}
	if req.City != nil {
		user.City = strings.TrimSpace(utils.Sanitize(*req.City))
	}
	if req.DeckTheme != nil {
		user.DeckTheme = strings.TrimSpace(*req.DeckTheme)
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40032, "invalid timezone")
			return
		}
		user.Timezone = *req.Timezone
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}

	if err := a.db.Save(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
		return
	}

	utils.Success(ctx, user)
}
