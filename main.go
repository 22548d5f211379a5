package main

import (
	"log"
	"net/http"

	"gamepricelens/internal/api"
	"gamepricelens/internal/config"
	"gamepricelens/internal/database"
	"gamepricelens/internal/services/cheapshark"
	"gamepricelens/internal/services/refresher"
	"gamepricelens/internal/services/scraper"
	"gamepricelens/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Stores
	games := storage.NewGameStore(db)
	snapshots := storage.NewSnapshotStore(db)
	metadata := storage.NewMetadataStore(db)

	// Upstream client, resolver and refresh pipeline
	client := cheapshark.NewClient(cfg.CheapSharkAPIURL)
	resolver := cheapshark.NewResolver(client)
	refr := refresher.New(games, snapshots, client, resolver)
	scr := scraper.New(metadata)

	hub := api.NewHub()
	refr.SetEventSink(hub)

	// Background price refresh
	scheduler := refresher.NewScheduler(refr, cfg.RefreshInterval)
	scheduler.Start()

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	apiGroup := r.Group("/api/v1")
	api.SetupRoutes(apiGroup, games, snapshots, metadata, client, refr, scr, hub)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
