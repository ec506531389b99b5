// Package recipe proxies an Edamam-style recipe search API with a small cache.
package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	cacheTTL     = 10 * time.Minute
	maxCacheSize = 256
)

var (
	ErrNotConfigured = errors.New("recipe search not configured")
	ErrEmptyQuery    = errors.New("search query is empty")
)

type Config struct {
	BaseURL string
	AppID   string
	AppKey  string
}

// Hit is one search result.
type Hit struct {
	Label           string   `json:"label"`
	Image           string   `json:"image"`
	Source          string   `json:"source"`
	URL             string   `json:"url"`
	IngredientLines []string `json:"ingredient_lines"`
}

type entry struct {
	hits    []Hit
	fetched time.Time
}

// Service searches recipes and caches results per normalized query.
type Service struct {
	config Config
	client *http.Client

	mu    sync.RWMutex
	cache map[string]entry
	now   func() time.Time
}

func NewService(cfg Config) *Service {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  make(map[string]entry),
		now:    time.Now,
	}
}

func (s *Service) Configured() bool {
	return s.config.BaseURL != ""
}

// Search returns hits for query. When the upstream call fails and a cached
// result exists, the cached result is returned with a nil error.
func (s *Service) Search(ctx context.Context, query string) ([]Hit, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	key := normalize(query)
	if key == "" {
		return nil, ErrEmptyQuery
	}

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Sub(cached.fetched) < cacheTTL {
		return cached.hits, nil
	}

	hits, err := s.fetch(ctx, key)
	if err != nil {
		if ok {
			return cached.hits, nil
		}
		return nil, err
	}

	s.mu.Lock()
	if len(s.cache) >= maxCacheSize {
		s.evictOldest()
	}
	s.cache[key] = entry{hits: hits, fetched: s.now()}
	s.mu.Unlock()
	return hits, nil
}

// evictOldest must be called with mu held.
func (s *Service) evictOldest() {
	var oldest string
	var at time.Time
	for k, e := range s.cache {
		if oldest == "" || e.fetched.Before(at) {
			oldest, at = k, e.fetched
		}
	}
	delete(s.cache, oldest)
}

type apiResponse struct {
	Hits []struct {
		Recipe struct {
			Label           string   `json:"label"`
			Image           string   `json:"image"`
			Source          string   `json:"source"`
			URL             string   `json:"url"`
			IngredientLines []string `json:"ingredientLines"`
		} `json:"recipe"`
	} `json:"hits"`
}

func (s *Service) fetch(ctx context.Context, query string) ([]Hit, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("app_id", s.config.AppID)
	params.Set("app_key", s.config.AppKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build recipe request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recipe API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recipe API returned status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode recipe response: %w", err)
	}

	hits := make([]Hit, 0, len(body.Hits))
	for _, h := range body.Hits {
		hits = append(hits, Hit{
			Label:           h.Recipe.Label,
			Image:           h.Recipe.Image,
			Source:          h.Recipe.Source,
			URL:             h.Recipe.URL,
			IngredientLines: h.Recipe.IngredientLines,
		})
	}
	return hits, nil
}

func normalize(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
