package cheapshark

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// UpstreamError marks a failed CheapShark call: network trouble, a non-2xx
// status or a body that does not decode. It is never retried inline; the
// next scheduled or user-triggered refresh is the retry.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("cheapshark: %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// SearchResult is one row of a catalog title search.
type SearchResult struct {
	APIGameID     string   `json:"api_game_id"`
	Title         string   `json:"title"`
	Thumb         string   `json:"thumb"`
	CheapestPrice *float64 `json:"cheapest_price"`
}

// Deal is one per-store offer inside a game-details response. StoreName is
// usually absent upstream; the resolver fills it in from the directory.
type Deal struct {
	StoreID     string
	StoreName   string
	Price       float64
	RetailPrice *float64
}

// GameInfo carries the catalog metadata of a game-details response.
type GameInfo struct {
	Title      string
	Thumb      string
	SteamAppID string
}

// GameDetails is the parsed game-details payload.
type GameDetails struct {
	Info  GameInfo
	Deals []Deal
}

// Store is one directory entry mapping a numeric id to a display name.
type Store struct {
	StoreID   string
	StoreName string
}

type Client struct {
	baseURL string
	client  *resty.Client
}

func NewClient(baseURL string) *Client {
	client := resty.New()
	client.SetTimeout(10 * time.Second)

	return &Client{
		baseURL: baseURL,
		client:  client,
	}
}

// CheapShark encodes most numbers as JSON strings, so every payload is
// decoded into a wire struct first and converted at this boundary. Deals
// with an unparsable price are dropped here instead of leaking half-typed
// records into the aggregation code.

type wireSearchResult struct {
	GameID   string `json:"gameID"`
	External string `json:"external"`
	Thumb    string `json:"thumb"`
	Cheapest string `json:"cheapest"`
}

type wireGameDetails struct {
	Info struct {
		Title      string          `json:"title"`
		Thumb      string          `json:"thumb"`
		SteamAppID json.RawMessage `json:"steamAppID"`
	} `json:"info"`
	Deals []struct {
		StoreID     string `json:"storeID"`
		StoreName   string `json:"storeName"`
		Price       string `json:"price"`
		RetailPrice string `json:"retailPrice"`
	} `json:"deals"`
}

type wireStore struct {
	StoreID   string `json:"storeID"`
	StoreName string `json:"storeName"`
}

// SearchGames looks up catalog entries by title.
func (c *Client) SearchGames(ctx context.Context, query string) ([]SearchResult, error) {
	var wire []wireSearchResult
	if err := c.get(ctx, "/games", map[string]string{"title": query}, &wire); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(wire))
	for _, item := range wire {
		result := SearchResult{
			APIGameID: item.GameID,
			Title:     item.External,
			Thumb:     item.Thumb,
		}
		if price, err := strconv.ParseFloat(item.Cheapest, 64); err == nil {
			result.CheapestPrice = &price
		}
		results = append(results, result)
	}
	return results, nil
}

// GetGameDetails fetches the catalog entry and current per-store deals for
// one game.
func (c *Client) GetGameDetails(ctx context.Context, apiGameID string) (*GameDetails, error) {
	var wire wireGameDetails
	if err := c.get(ctx, "/games", map[string]string{"id": apiGameID}, &wire); err != nil {
		return nil, err
	}

	details := &GameDetails{
		Info: GameInfo{
			Title:      wire.Info.Title,
			Thumb:      wire.Info.Thumb,
			SteamAppID: decodeSteamAppID(wire.Info.SteamAppID),
		},
	}
	for _, deal := range wire.Deals {
		price, err := strconv.ParseFloat(deal.Price, 64)
		if err != nil {
			continue
		}
		parsed := Deal{
			StoreID:   deal.StoreID,
			StoreName: deal.StoreName,
			Price:     price,
		}
		if retail, err := strconv.ParseFloat(deal.RetailPrice, 64); err == nil {
			parsed.RetailPrice = &retail
		}
		details.Deals = append(details.Deals, parsed)
	}
	return details, nil
}

// GetStoreDirectory fetches the id-to-name listing for every storefront.
func (c *Client) GetStoreDirectory(ctx context.Context) ([]Store, error) {
	var wire []wireStore
	if err := c.get(ctx, "/stores", nil, &wire); err != nil {
		return nil, err
	}

	stores := make([]Store, 0, len(wire))
	for _, item := range wire {
		stores = append(stores, Store{StoreID: item.StoreID, StoreName: item.StoreName})
	}
	return stores, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	req := c.client.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(c.baseURL + path)
	if err != nil {
		return &UpstreamError{Op: "GET " + path, Err: err}
	}
	if resp.IsError() {
		return &UpstreamError{Op: "GET " + path, Err: fmt.Errorf("unexpected status %d", resp.StatusCode())}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &UpstreamError{Op: "GET " + path, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

// steamAppID arrives as a string, a number or null depending on the game.
func decodeSteamAppID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return strconv.FormatInt(asNumber, 10)
	}
	return ""
}
