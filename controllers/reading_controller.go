package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lunora/arcana/models"
	"github.com/lunora/arcana/services"
	"github.com/lunora/arcana/tarot"
	"github.com/lunora/arcana/utils"
)

// ReadingController exposes the reading lifecycle over HTTP. All business
// rules live in the service; the controller parses, authorizes and maps
// domain errors onto the response envelope.
type ReadingController struct {
	db       *gorm.DB
	readings *services.ReadingService
}

// NewReadingController creates a new controller instance.
func NewReadingController(db *gorm.DB, readings *services.ReadingService) *ReadingController {
	return &ReadingController{db: db, readings: readings}
}

// CreateDaily draws the card of the day for the authenticated user.
func (r *ReadingController) CreateDaily(ctx *gin.Context) {
	user, ok := r.currentUser(ctx)
	if !ok {
		return
	}

	reading, err := r.readings.CreateDaily(ctx.Request.Context(), user)
	if err != nil {
		r.respondError(ctx, err)
		return
	}
	utils.Success(ctx, r.payload(reading))
}

// CreateSpread redeems a gift and creates a love/money/future spread.
func (r *ReadingController) CreateSpread(ctx *gin.Context) {
	user, ok := r.currentUser(ctx)
	if !ok {
		return
	}

	var req struct {
		Type string `json:"type" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid request payload")
		return
	}

	reading, err := r.readings.CreateSpread(ctx.Request.Context(), user, req.Type)
	if err != nil {
		r.respondError(ctx, err)
		return
	}
	utils.Success(ctx, r.payload(reading))
}

// CreateQuestion answers a free-form question with a single card.
func (r *ReadingController) CreateQuestion(ctx *gin.Context) {
	user, ok := r.currentUser(ctx)
	if !ok {
		return
	}

	var req struct {
		Question string `json:"question" binding:"required,min=3,max=500"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40061, "question must be 3-500 characters")
		return
	}

	question := strings.TrimSpace(utils.Sanitize(req.Question))
	if question == "" {
		utils.Error(ctx, http.StatusBadRequest, 40061, "question cannot be empty")
		return
	}

	reading, err := r.readings.CreateQuestion(ctx.Request.Context(), user, question)
	if err != nil {
		r.respondError(ctx, err)
		return
	}
	utils.Success(ctx, r.payload(reading))
}

// Clarify appends one clarification card to an existing reading.
func (r *ReadingController) Clarify(ctx *gin.Context) {
	user, ok := r.currentUser(ctx)
	if !ok {
		return
	}

	reading, err := r.readings.AddClarification(ctx.Request.Context(), user, ctx.Param("id"))
	if err != nil {
		r.respondError(ctx, err)
		return
	}
	utils.Success(ctx, r.payload(reading))
}

// SubmitFeedback records positive or negative feedback on an owned reading.
func (r *ReadingController) SubmitFeedback(ctx *gin.Context) {
	user, ok := r.currentUser(ctx)
	if !ok {
		return
	}

	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40062, "invalid request payload")
		return
	}

	if err := r.readings.SubmitFeedback(ctx.Request.Context(), user, ctx.Param("id"), req.Value); err != nil {
		r.respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "feedback recorded"})
}

// Get returns one owned reading with its interpretation.
func (r *ReadingController) Get(ctx *gin.Context) {
	user, ok := r.currentUser(ctx)
	if !ok {
		return
	}

	reading, err := r.readings.GetByPublicID(ctx.Request.Context(), user, ctx.Param("id"))
	if err != nil {
		r.respondError(ctx, err)
		return
	}
	utils.Success(ctx, r.payload(reading))
}

// Today returns the daily reading for the current local day, if drawn.
func (r *ReadingController) Today(ctx *gin.Context) {
	user, ok := r.currentUser(ctx)
	if !ok {
		return
	}

	reading, err := r.readings.Today(ctx.Request.Context(), user)
	if err != nil {
		r.respondError(ctx, err)
		return
	}
	utils.Success(ctx, r.payload(reading))
}

// List returns the user's readings newest-first with pagination.
func (r *ReadingController) List(ctx *gin.Context) {
	user, ok := r.currentUser(ctx)
	if !ok {
		return
	}

	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	readings, total, err := r.readings.List(ctx.Request.Context(), user, page, pageSize)
	if err != nil {
		r.respondError(ctx, err)
		return
	}

	items := make([]gin.H, 0, len(readings))
	for i := range readings {
		items = append(items, r.payload(&readings[i]))
	}
	utils.Success(ctx, gin.H{
		"items": items,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

func (r *ReadingController) currentUser(ctx *gin.Context) (*models.User, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return nil, false
	}
	var user models.User
	if err := r.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "account no longer exists")
		return nil, false
	}
	return &user, true
}

// payload renders a reading with its parsed interpretation and card names.
func (r *ReadingController) payload(reading *models.Reading) gin.H {
	cards := make([]gin.H, 0, len(reading.Cards))
	for _, rc := range reading.Cards {
		entry := gin.H{
			"card_id":        rc.CardID,
			"position":       rc.Position,
			"position_label": rc.PositionLabel,
			"reversed":       rc.Reversed,
		}
		if card, ok := r.readings.Card(rc.CardID); ok {
			entry["name"] = card.Name
			entry["arcana"] = card.Arcana
		}
		cards = append(cards, entry)
	}
	return gin.H{
		"reading":        reading,
		"cards":          cards,
		"interpretation": json.RawMessage(reading.Interpretation),
	}
}

func (r *ReadingController) respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40410, "reading not found")
	case errors.Is(err, services.ErrAlreadyExists):
		utils.Error(ctx, http.StatusConflict, 40910, "daily reading already exists for today")
	case errors.Is(err, services.ErrNoGiftAvailable):
		utils.Error(ctx, http.StatusConflict, 40920, "no gift available for this spread")
	case errors.Is(err, services.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40930, "gift was already redeemed")
	case errors.Is(err, tarot.ErrDeckExhausted):
		utils.Error(ctx, http.StatusConflict, 40940, "not enough cards remain in the deck")
	case errors.Is(err, services.ErrClarificationLimit):
		utils.Error(ctx, http.StatusBadRequest, 40050, "clarification limit reached")
	case errors.Is(err, services.ErrUnknownSpread):
		utils.Error(ctx, http.StatusBadRequest, 40041, "unknown spread type")
	case errors.Is(err, services.ErrInvalidFeedback):
		utils.Error(ctx, http.StatusBadRequest, 40042, "feedback must be positive or negative")
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50060, "reading operation failed")
	}
}
