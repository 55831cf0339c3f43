// Package geoip resolves geolocation/ISP metadata for a source address.
// Enrichment is best-effort: a failed or slow lookup must never block or
// fail ingestion, so callers treat any error here as "commit with empty
// enrichment fields".
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/hivewatch/honeynet-analytics/internal/models"
)

// DefaultBaseURL is the ipapi.co-compatible lookup endpoint.
const DefaultBaseURL = "https://ipapi.co"

// Client looks up enrichment data with an LRU cache in front. Attackers
// hammer from few addresses, so the cache absorbs most of the lookup volume.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	cache   *lru.Cache[string, models.Geo]
	logger  zerolog.Logger
}

// apiResponse is the subset of the ipapi.co JSON body this service keeps.
type apiResponse struct {
	CountryName string `json:"country_name"`
	Region      string `json:"region"`
	City        string `json:"city"`
	Org         string `json:"org"`
}

// New builds an enrichment client. cacheSize bounds the address cache;
// timeout bounds each upstream call.
func New(baseURL string, timeout time.Duration, cacheSize int, logger zerolog.Logger) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cache, err := lru.New[string, models.Geo](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("geoip cache: %w", err)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 1
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 500 * time.Millisecond
	client.HTTPClient.Timeout = timeout
	client.Logger = nil

	return &Client{
		baseURL: baseURL,
		http:    client,
		cache:   cache,
		logger:  logger.With().Str("component", "geoip").Logger(),
	}, nil
}

// Lookup resolves enrichment data for addr. Private and loopback addresses
// short-circuit without an upstream call.
func (c *Client) Lookup(ctx context.Context, addr string) (models.Geo, error) {
	if ip := net.ParseIP(addr); ip != nil && (ip.IsPrivate() || ip.IsLoopback()) {
		return models.Geo{
			Country: "Private Network",
			Region:  "Private",
			City:    "Local",
			ISP:     "Private",
		}, nil
	}

	if geo, ok := c.cache.Get(addr); ok {
		return geo, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/json/", c.baseURL, addr), nil)
	if err != nil {
		return models.Geo{}, fmt.Errorf("build lookup request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Geo{}, fmt.Errorf("geoip lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Geo{}, fmt.Errorf("geoip lookup status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Geo{}, fmt.Errorf("decode geoip response: %w", err)
	}

	geo := models.Geo{
		Country: body.CountryName,
		Region:  body.Region,
		City:    body.City,
		ISP:     body.Org,
	}

	c.cache.Add(addr, geo)
	c.logger.Debug().Str("address", addr).Str("country", geo.Country).Msg("resolved geo data")

	return geo, nil
}
