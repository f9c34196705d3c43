// Package store provides read access to the franchise record store.
// The store is an external REST service exposing filtered, sorted,
// field-projected, paginated reads over the brands and outlets collections.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Brand is a franchise brand record.
type Brand struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Website      string `json:"website"`
	TotalOutlets int    `json:"total_outlets"`
	Updated      string `json:"updated"`
}

// Outlet is a single franchise outlet record.
type Outlet struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	BrandID      string  `json:"brand"`
	BrandName    string  `json:"brand_name"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	Region       string  `json:"region"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	TotalScore   float64 `json:"totalScore"`
	ReviewsCount int     `json:"reviewsCount"`
	Updated      string  `json:"updated"`
}

// HasCoordinates reports whether the outlet carries a usable position.
func (o Outlet) HasCoordinates() bool {
	return o.Latitude != 0 || o.Longitude != 0
}

// ListOptions control a collection read.
type ListOptions struct {
	Page    int
	PerPage int
	Filter  string
	Sort    string
	Fields  string
}

// Reader is the read contract the chat engine requires from the record store.
type Reader interface {
	ListBrands(ctx context.Context) ([]Brand, error)
	BrandOutlets(ctx context.Context, brandID string, limit int) ([]Outlet, int, error)
	OutletsByCity(ctx context.Context, city string, limit int) ([]Outlet, int, error)
	OutletsWithCoordinates(ctx context.Context, filter string) ([]Outlet, error)
	CountOutlets(ctx context.Context) (int, error)
	DataVersion(ctx context.Context) (string, error)
}

// Client talks to the record store over its REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Config holds store client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new record store client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("store base URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
	}, nil
}

// listResponse mirrors the store's paginated list envelope.
type listResponse[T any] struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	Items      []T `json:"items"`
}

func list[T any](ctx context.Context, c *Client, collection string, opts ListOptions) (*listResponse[T], error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		q.Set("perPage", strconv.Itoa(opts.PerPage))
	}
	if opts.Filter != "" {
		q.Set("filter", opts.Filter)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Fields != "" {
		q.Set("fields", opts.Fields)
	}

	endpoint := fmt.Sprintf("%s/api/collections/%s/records?%s", c.baseURL, collection, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build store request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("store returned status %d: %s", resp.StatusCode, string(body))
	}

	var out listResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode store response: %w", err)
	}

	return &out, nil
}

// ListBrands fetches the full brand list sorted by name.
func (c *Client) ListBrands(ctx context.Context) ([]Brand, error) {
	var brands []Brand
	page := 1
	for {
		resp, err := list[Brand](ctx, c, "brands", ListOptions{
			Page:    page,
			PerPage: 200,
			Sort:    "name",
			Fields:  "id,name,category,website,total_outlets,updated",
		})
		if err != nil {
			return nil, err
		}
		brands = append(brands, resp.Items...)
		if len(resp.Items) == 0 || len(brands) >= resp.TotalItems {
			break
		}
		page++
	}
	return brands, nil
}

// BrandOutlets fetches up to limit highest-rated outlets for a brand,
// along with the total outlet count for that brand.
func (c *Client) BrandOutlets(ctx context.Context, brandID string, limit int) ([]Outlet, int, error) {
	resp, err := list[Outlet](ctx, c, "outlets", ListOptions{
		Page:    1,
		PerPage: limit,
		Filter:  fmt.Sprintf("brand = %q", brandID),
		Sort:    "-totalScore",
		Fields:  "id,name,brand,address,city,region,totalScore,reviewsCount,latitude,longitude",
	})
	if err != nil {
		return nil, 0, err
	}
	return resp.Items, resp.TotalItems, nil
}

// OutletsByCity fetches up to limit highest-rated outlets whose city field
// contains the city token, along with the city's total outlet count.
func (c *Client) OutletsByCity(ctx context.Context, city string, limit int) ([]Outlet, int, error) {
	resp, err := list[Outlet](ctx, c, "outlets", ListOptions{
		Page:    1,
		PerPage: limit,
		Filter:  fmt.Sprintf("city ~ %q", city),
		Sort:    "-totalScore",
		Fields:  "id,name,brand,brand_name,address,city,totalScore,latitude,longitude",
	})
	if err != nil {
		return nil, 0, err
	}
	return resp.Items, resp.TotalItems, nil
}

// OutletsWithCoordinates fetches all outlets carrying coordinates; filter is
// an optional additional store filter expression.
func (c *Client) OutletsWithCoordinates(ctx context.Context, filter string) ([]Outlet, error) {
	coordFilter := "latitude != 0 && longitude != 0"
	if filter != "" {
		coordFilter = fmt.Sprintf("(%s) && %s", filter, coordFilter)
	}

	var outlets []Outlet
	page := 1
	for {
		resp, err := list[Outlet](ctx, c, "outlets", ListOptions{
			Page:    page,
			PerPage: 200,
			Filter:  coordFilter,
			Fields:  "id,name,brand,brand_name,address,city,totalScore,latitude,longitude",
		})
		if err != nil {
			return nil, err
		}
		outlets = append(outlets, resp.Items...)
		if len(resp.Items) == 0 || len(outlets) >= resp.TotalItems {
			break
		}
		page++
	}
	return outlets, nil
}

// CountOutlets returns the total number of outlet records.
func (c *Client) CountOutlets(ctx context.Context) (int, error) {
	resp, err := list[Outlet](ctx, c, "outlets", ListOptions{
		Page:    1,
		PerPage: 1,
		Fields:  "id",
	})
	if err != nil {
		return 0, err
	}
	return resp.TotalItems, nil
}

// DataVersion derives a scalar watermark from the most recent modification
// timestamp across the brands and outlets collections. Used purely to
// invalidate caches when underlying business data changes.
func (c *Client) DataVersion(ctx context.Context) (string, error) {
	var latest int64

	for _, collection := range []string{"brands", "outlets"} {
		resp, err := list[struct {
			Updated string `json:"updated"`
		}](ctx, c, collection, ListOptions{
			Page:    1,
			PerPage: 1,
			Sort:    "-updated",
			Fields:  "updated",
		})
		if err != nil {
			return "", err
		}
		if len(resp.Items) == 0 {
			continue
		}
		ts, err := parseUpdated(resp.Items[0].Updated)
		if err != nil {
			continue
		}
		if ts > latest {
			latest = ts
		}
	}

	if latest == 0 {
		return "", nil
	}
	return strconv.FormatInt(latest, 10), nil
}

// parseUpdated accepts the store's timestamp formats.
func parseUpdated(s string) (int64, error) {
	for _, layout := range []string{"2006-01-02 15:04:05.999Z", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized timestamp: %s", s)
}
