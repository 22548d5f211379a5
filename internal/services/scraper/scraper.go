package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gamepricelens/internal/models"
	"gamepricelens/internal/storage"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// Metadata is what a store page yields. Either field may be nil when the
// page could not be fetched or the section is missing.
type Metadata struct {
	Description *string
	Tags        []string
}

// Scraper pulls description and tag metadata off a game's Steam store page.
type Scraper struct {
	client   *resty.Client
	metadata *storage.MetadataStore
	delay    time.Duration
}

func New(metadata *storage.MetadataStore) *Scraper {
	client := resty.New()
	client.SetTimeout(10 * time.Second)

	return &Scraper{
		client:   client,
		metadata: metadata,
		delay:    500 * time.Millisecond, // be gentle to Steam
	}
}

// FetchMetadata retrieves and parses one store page. Network failures are
// not fatal: they log and return empty metadata, matching how ingestion
// degrades instead of failing when an auxiliary source is down.
func (s *Scraper) FetchMetadata(ctx context.Context, url string) Metadata {
	time.Sleep(s.delay)

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Printf("[scraper] failed to fetch store page %s: %v", url, err)
		return Metadata{}
	}
	if resp.IsError() {
		log.Printf("[scraper] store page %s returned status %d", url, resp.StatusCode())
		return Metadata{}
	}
	return parsePage(resp.Body())
}

// UpdateGameMetadata scrapes the game's store page and persists the result.
func (s *Scraper) UpdateGameMetadata(ctx context.Context, game *models.Game) (*models.GameMetadata, error) {
	if game.StoreURL == "" {
		return nil, fmt.Errorf("game %d has no store URL to scrape", game.ID)
	}
	metadata := s.FetchMetadata(ctx, game.StoreURL)
	return s.metadata.Upsert(game.ID, metadata.Description, metadata.Tags)
}

func parsePage(body []byte) Metadata {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Printf("[scraper] failed to parse store page: %v", err)
		return Metadata{}
	}

	var out Metadata
	if node := doc.Find("#game_area_description, .game_description_snippet").First(); node.Length() > 0 {
		text := strings.TrimSpace(node.Text())
		if text != "" {
			out.Description = &text
		}
	}

	doc.Find(".glance_tags.popular_tags a.app_tag").Each(func(_ int, sel *goquery.Selection) {
		if tag := strings.TrimSpace(sel.Text()); tag != "" {
			out.Tags = append(out.Tags, tag)
		}
	})
	return out
}
