// Package geocode is a typed client for the forward/reverse geocoding
// provider AERIS treats as an upstream black box.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client wraps a Nominatim-compatible geocoding HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a Client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves a free-text location name to (lat, lon); ok is false if
// no match was found.
func (c *Client) Geocode(ctx context.Context, location string) (lat, lon float64, ok bool, err error) {
	q := url.Values{"q": {location}, "format": {"json"}, "limit": {"1"}}
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	var results []searchResult
	if err := c.get(ctx, "/search", q, &results); err != nil {
		return 0, 0, false, err
	}
	if len(results) == 0 {
		return 0, 0, false, nil
	}

	lat, err1 := strconv.ParseFloat(results[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(results[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false, fmt.Errorf("geocode: malformed coordinates in response")
	}
	return lat, lon, true, nil
}

type reverseResult struct {
	DisplayName string `json:"display_name"`
}

// ReverseGeocode resolves (lat, lon) to a human-readable place name; ok is
// false if no match was found.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (name string, ok bool, err error) {
	q := url.Values{
		"lat":    {fmt.Sprintf("%f", lat)},
		"lon":    {fmt.Sprintf("%f", lon)},
		"format": {"json"},
	}
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	var result reverseResult
	if err := c.get(ctx, "/reverse", q, &result); err != nil {
		return "", false, err
	}
	if result.DisplayName == "" {
		return "", false, nil
	}
	return result.DisplayName, true, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("geocode: build request: %w", err)
	}
	req.Header.Set("User-Agent", "aeris/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("geocode: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocode: %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
