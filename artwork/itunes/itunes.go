// Package itunes resolves cover art through the iTunes Search API.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/logx"
	"github.com/ilNikk/Apple-Music-Discord-Presence/presence"
)

const (
	DefaultBaseURL   = "https://itunes.apple.com"
	DefaultCacheSize = 256
	DefaultTimeout   = 5 * time.Second
)

type Config struct {
	BaseURL   string
	CacheSize int
	Timeout   time.Duration
	// Country is the two-letter storefront code; empty uses the API default.
	Country string
	Client  *http.Client
}

// Resolver implements presence.ArtworkResolver. Search hits are cached by
// track name and artist.
type Resolver struct {
	baseURL string
	country string
	client  *http.Client
	cache   *lru.Cache[string, string]
	log     *logx.Logger
}

type searchResponse struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		ArtworkURL100 string `json:"artworkUrl100"`
	} `json:"results"`
}

func New(cfg Config) (*Resolver, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	cache, err := lru.New[string, string](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("artwork cache: %w", err)
	}
	return &Resolver{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		country: cfg.Country,
		client:  cfg.Client,
		cache:   cache,
		log:     logx.NewLogger("artwork"),
	}, nil
}

// Resolve tries the store id lookup first and falls back to a search by
// name and artist. Any failure means no artwork.
func (r *Resolver) Resolve(ctx context.Context, t presence.Track) (string, bool) {
	if t.StoreID != "" {
		q := url.Values{"id": {t.StoreID}}
		if u, err := r.query(ctx, "/lookup", q); err == nil && u != "" {
			return u, true
		} else if err != nil {
			r.log.Debug("lookup %s: %v", t.StoreID, err)
		}
	}

	key := t.Key()
	if u, ok := r.cache.Get(key); ok {
		return u, true
	}

	q := url.Values{
		"term":   {t.Name + " " + t.Artist},
		"entity": {"song"},
		"limit":  {"1"},
	}
	u, err := r.query(ctx, "/search", q)
	if err != nil {
		r.log.Debug("search %q: %v", key, err)
		return "", false
	}
	if u == "" {
		return "", false
	}
	r.cache.Add(key, u)
	return u, true
}

func (r *Resolver) query(ctx context.Context, path string, q url.Values) (string, error) {
	if r.country != "" {
		q.Set("country", r.country)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("itunes returned %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	for _, res := range body.Results {
		if res.ArtworkURL100 != "" {
			return upscale(res.ArtworkURL100), nil
		}
	}
	return "", nil
}

// upscale asks the CDN for the 512px rendition of a 100px artwork URL.
func upscale(u string) string {
	return strings.ReplaceAll(u, "100x100", "512x512")
}

// Len is the number of cached search results.
func (r *Resolver) Len() int {
	return r.cache.Len()
}
