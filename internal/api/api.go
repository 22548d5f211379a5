package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gamepricelens/internal/models"
	"gamepricelens/internal/services/cheapshark"
	"gamepricelens/internal/services/refresher"
	"gamepricelens/internal/services/scraper"
	"gamepricelens/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

type APIHandler struct {
	games     *storage.GameStore
	snapshots *storage.SnapshotStore
	metadata  *storage.MetadataStore
	client    *cheapshark.Client
	refresher *refresher.Refresher
	scraper   *scraper.Scraper
	hub       *Hub
}

func SetupRoutes(
	r *gin.RouterGroup,
	games *storage.GameStore,
	snapshots *storage.SnapshotStore,
	metadata *storage.MetadataStore,
	client *cheapshark.Client,
	refr *refresher.Refresher,
	scr *scraper.Scraper,
	hub *Hub,
) *APIHandler {
	handler := &APIHandler{
		games:     games,
		snapshots: snapshots,
		metadata:  metadata,
		client:    client,
		refresher: refr,
		scraper:   scr,
		hub:       hub,
	}

	r.GET("/search", handler.SearchGames)

	gamesGroup := r.Group("/games")
	{
		gamesGroup.POST("", handler.AddGame)
		gamesGroup.GET("", handler.ListGames)
		gamesGroup.GET("/:id", handler.GameDetail)
		gamesGroup.POST("/:id/refresh", handler.RefreshGame)
		gamesGroup.POST("/:id/refresh_metadata", handler.RefreshMetadata)
		gamesGroup.GET("/:id/history/export", handler.ExportHistory)
	}

	r.POST("/refresh", handler.RefreshAll)
	r.GET("/ws", hub.Handle)

	return handler
}

// SearchGames: GET /api/v1/search?q=witcher -> upstream catalog search
func (h *APIHandler) SearchGames(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	results, err := h.client.SearchGames(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": fmt.Sprintf("price source unavailable: %v", err)})
		return
	}
	c.JSON(http.StatusOK, results)
}

type addGameRequest struct {
	APIGameID     string `json:"api_game_id" binding:"required"`
	Title         string `json:"title"`
	StoreURL      string `json:"store_url"`
	CoverImageURL string `json:"cover_image_url"`
}

// AddGame tracks a new game: fetches its catalog entry, backfills title and
// store URL, and records the first snapshot batch. Adding an already tracked
// game returns the existing record.
func (h *APIHandler) AddGame(c *gin.Context) {
	var req addGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.games.GetByAPIGameID(req.APIGameID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if existing != nil {
		c.JSON(http.StatusOK, existing)
		return
	}

	details, err := h.client.GetGameDetails(c.Request.Context(), req.APIGameID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": fmt.Sprintf("price source unavailable: %v", err)})
		return
	}

	storeURL := req.StoreURL
	if storeURL == "" && details.Info.SteamAppID != "" {
		storeURL = "https://store.steampowered.com/app/" + details.Info.SteamAppID
	}
	title := req.Title
	if title == "" {
		title = details.Info.Title
	}
	coverURL := req.CoverImageURL
	if coverURL == "" {
		coverURL = details.Info.Thumb
	}

	game := &models.Game{
		Title:         title,
		APIGameID:     req.APIGameID,
		StoreURL:      storeURL,
		CoverImageURL: coverURL,
	}
	if err := h.games.Create(game); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if observations := h.refresher.ExtractObservations(details); len(observations) > 0 {
		if _, err := h.snapshots.InsertSnapshots(game.ID, observations); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusCreated, game)
}

// ListGames: GET /api/v1/games -> tracked games with best-price summaries
func (h *APIHandler) ListGames(c *gin.Context) {
	games, err := h.games.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]gin.H, 0, len(games))
	for i := range games {
		summary, err := h.gameSummary(&games[i])
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		items = append(items, summary)
	}
	c.JSON(http.StatusOK, items)
}

// GameDetail: GET /api/v1/games/:id -> game, current prices, history, metadata
func (h *APIHandler) GameDetail(c *gin.Context) {
	game, ok := h.lookupGame(c)
	if !ok {
		return
	}

	current, err := h.snapshots.LatestPerStore(game.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	history, err := h.snapshots.DailyMinHistory(game.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	best, err := h.snapshots.BestPrice(game.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	meta, err := h.metadata.Get(game.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"game":           game,
		"current_prices": current,
		"history":        history,
	}
	if best != nil {
		resp["best_price"] = gin.H{
			"store_name": best.StoreName,
			"price":      best.Price,
			"timestamp":  best.Timestamp,
		}
	}
	if meta != nil {
		resp["metadata"] = metadataResponse(meta)
	}
	c.JSON(http.StatusOK, resp)
}

// RefreshGame: POST /api/v1/games/:id/refresh -> strict single-game refresh.
// The caller waits synchronously, so an upstream failure surfaces as 503
// instead of being swallowed the way the scheduled sweep does.
func (h *APIHandler) RefreshGame(c *gin.Context) {
	game, ok := h.lookupGame(c)
	if !ok {
		return
	}

	count, err := h.refresher.RefreshGame(c.Request.Context(), game)
	if err != nil {
		var upstream *cheapshark.UpstreamError
		if errors.As(err, &upstream) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": fmt.Sprintf("price source unavailable: %v", err)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots_inserted": count})
}

// RefreshAll: POST /api/v1/refresh -> foreground batch refresh across all
// tracked games, per-game failures tolerated.
func (h *APIHandler) RefreshAll(c *gin.Context) {
	summary, err := h.refresher.RefreshAll(c.Request.Context(), "api")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RefreshMetadata: POST /api/v1/games/:id/refresh_metadata -> scrape the
// game's store page
func (h *APIHandler) RefreshMetadata(c *gin.Context) {
	game, ok := h.lookupGame(c)
	if !ok {
		return
	}
	if game.StoreURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game has no store URL to scrape"})
		return
	}

	meta, err := h.scraper.UpdateGameMetadata(c.Request.Context(), game)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, metadataResponse(meta))
}

// ExportHistory: GET /api/v1/games/:id/history/export -> daily minimum
// price history as an XLSX attachment
func (h *APIHandler) ExportHistory(c *gin.Context) {
	game, ok := h.lookupGame(c)
	if !ok {
		return
	}

	history, err := h.snapshots.DailyMinHistory(game.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Price History"
	f.SetSheetName(f.GetSheetName(0), sheet)
	f.SetCellValue(sheet, "A1", "Date")
	f.SetCellValue(sheet, "B1", "Min Price (USD)")
	for i, point := range history {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), point.Date)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), point.MinPrice)
	}

	filename := fmt.Sprintf("game-%d-price-history-%s.xlsx", game.ID, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}

func (h *APIHandler) lookupGame(c *gin.Context) (*models.Game, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return nil, false
	}
	game, err := h.games.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if game == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return nil, false
	}
	return game, true
}

func (h *APIHandler) gameSummary(game *models.Game) (gin.H, error) {
	latest, err := h.snapshots.LatestPerStore(game.ID)
	if err != nil {
		return nil, err
	}

	summary := gin.H{
		"id":              game.ID,
		"title":           game.Title,
		"api_game_id":     game.APIGameID,
		"store_url":       game.StoreURL,
		"cover_image_url": game.CoverImageURL,
		"created_at":      game.CreatedAt,
		"updated_at":      game.UpdatedAt,
	}
	if len(latest) == 0 {
		return summary, nil
	}

	best := latest[0]
	lastUpdated := latest[0].Timestamp
	for _, snap := range latest[1:] {
		if snap.Price < best.Price {
			best = snap
		}
		if snap.Timestamp.After(lastUpdated) {
			lastUpdated = snap.Timestamp
		}
	}
	summary["best_price"] = best.Price
	summary["best_store"] = best.StoreName
	summary["last_updated"] = lastUpdated
	return summary, nil
}

func metadataResponse(meta *models.GameMetadata) gin.H {
	return gin.H{
		"description":     meta.Description,
		"tags":            storage.DecodeTags(meta),
		"last_scraped_at": meta.LastScrapedAt,
	}
}
