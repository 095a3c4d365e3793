package main

import (
	"time"

	"github.com/lunora/arcana/config"
	"github.com/lunora/arcana/models"
	"github.com/lunora/arcana/routes"
	"github.com/lunora/arcana/services"
	"github.com/lunora/arcana/tarot"
	"github.com/lunora/arcana/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Reading{}, &models.ReadingCard{}, &models.Gift{}, &models.CollectionEntry{})

	catalog := tarot.MustCatalog()

	backend := tarot.NewLLMClient(tarot.LLMConfig{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})

	readings := services.NewReadingService(db, catalog, backend, services.Options{
		ReversalProbability: &cfg.ReversalProbability,
		ClarificationMax:    cfg.ClarificationMax,
		HistoryWindow:       cfg.HistoryWindow,
		DailyRewardPoints:   cfg.DailyRewardPoints,
		Cache:               utils.RedisCache{},
		Logger:              utils.Sugar,
	})

	r := routes.SetupRouter(db, catalog, readings)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
