package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
)

// #region config

// WebSourceConfig holds web search parameters.
// Env overrides: SCOUT_SEARCH_URL, SCOUT_SEARCH_TIMEOUT, SCOUT_SEARCH_MAX_RESULTS.
type WebSourceConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxResults int           `yaml:"max_results"`
}

// DefaultWebSourceConfig returns defaults with env overrides applied.
func DefaultWebSourceConfig() WebSourceConfig {
	cfg := WebSourceConfig{
		BaseURL:    "http://localhost:8888/search",
		Timeout:    10 * time.Second,
		MaxResults: 3,
	}
	if v := os.Getenv("SCOUT_SEARCH_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("SCOUT_SEARCH_TIMEOUT"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.Timeout = time.Duration(sec) * time.Second
		}
	}
	if v := os.Getenv("SCOUT_SEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxResults = n
		}
	}
	return cfg
}

// UnmarshalYAML decodes a search section, accepting human-readable timeouts
// ("15s") and overlaying only the fields the document sets.
func (c *WebSourceConfig) UnmarshalYAML(node *yaml.Node) error {
	type raw struct {
		BaseURL    *string `yaml:"base_url"`
		Timeout    *string `yaml:"timeout"`
		MaxResults *int    `yaml:"max_results"`
	}
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	if r.BaseURL != nil {
		c.BaseURL = *r.BaseURL
	}
	if r.Timeout != nil {
		d, err := time.ParseDuration(*r.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		c.Timeout = d
	}
	if r.MaxResults != nil {
		c.MaxResults = *r.MaxResults
	}
	return nil
}

// #endregion config

// #region web-source

// WebSource fetches evidence from a SearxNG-style JSON search endpoint.
type WebSource struct {
	config WebSourceConfig
	client *http.Client
}

// NewWebSource creates a source with its own timeout-bounded HTTP client.
func NewWebSource(config WebSourceConfig) *WebSource {
	return &WebSource{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// searchResponse mirrors the endpoint's JSON shape.
type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
}

// Fetch queries the search endpoint for the entity in the given category.
// The query template keys off the category so each probe looks at a
// different slice of the entity's footprint.
func (s *WebSource) Fetch(ctx context.Context, entityName string, category ledger.Category) (RawEvidence, error) {
	q := url.Values{}
	q.Set("q", searchQuery(entityName, category))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return RawEvidence{}, fmt.Errorf("build search request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return RawEvidence{}, fmt.Errorf("search %s/%s: %w", entityName, category, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RawEvidence{}, fmt.Errorf("search %s/%s: status %d", entityName, category, resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return RawEvidence{}, fmt.Errorf("decode search response: %w", err)
	}
	if len(body.Results) == 0 {
		return RawEvidence{}, ErrNotFound
	}

	n := len(body.Results)
	if n > s.config.MaxResults {
		n = s.config.MaxResults
	}
	top := body.Results[0]
	var snippet strings.Builder
	for i := 0; i < n; i++ {
		r := body.Results[i]
		fmt.Fprintf(&snippet, "%d. %s\n", i+1, r.Title)
		if r.Content != "" {
			fmt.Fprintf(&snippet, "   %s\n", r.Content)
		}
	}

	return RawEvidence{
		Ref:     top.URL,
		Title:   top.Title,
		Snippet: snippet.String(),
		URL:     top.URL,
	}, nil
}

// #endregion web-source

// #region query

// searchQuery builds the category-specific probe query.
func searchQuery(entityName string, category ledger.Category) string {
	topic := strings.ReplaceAll(string(category), "_", " ")
	return fmt.Sprintf("%q %s", entityName, topic)
}

// #endregion query
