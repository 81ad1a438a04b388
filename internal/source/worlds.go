package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"server-presence-backend/config"
	"server-presence-backend/internal/model"
	"server-presence-backend/internal/parse"
	"server-presence-backend/internal/store"
)

// World is a single world record from the worlds API.
type World struct {
	Name    string `json:"name"`
	Players int    `json:"players"`
	Static  bool   `json:"static"`
	SSMP    bool   `json:"ssmp"`
}

// worldsResponse models the top-level structure of the worlds API response.
type worldsResponse struct {
	Worlds []World `json:"worlds"`
}

// WorldsClient fetches the active world list from the worlds HTTP API.
type WorldsClient struct {
	baseURL string
	login   string
	token   string
	client  *http.Client
	logger  zerolog.Logger
}

// NewWorldsClient creates a client for the worlds API. Per-request deadlines
// come from the caller's context; the http.Client timeout is a backstop.
func NewWorldsClient(cfg config.WorldsAPIConfig, logger zerolog.Logger) *WorldsClient {
	return &WorldsClient{
		baseURL: cfg.BaseURL,
		login:   cfg.Login,
		token:   cfg.Token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With().Str("component", "worlds_api").Logger(),
	}
}

// Fetch returns the current world list with markup-stripped names. Duplicate
// names collapse into one entry keeping the higher player count.
func (c *WorldsClient) Fetch(ctx context.Context) ([]World, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/worlds", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Login", c.login)
	req.Header.Set("X-Token", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp worldsResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal worlds response: %w", err)
	}

	byName := make(map[string]int)
	worlds := make([]World, 0, len(apiResp.Worlds))
	for _, w := range apiResp.Worlds {
		w.Name = parse.StripMarkup(w.Name)
		if w.Name == "" {
			continue
		}
		if i, dup := byName[w.Name]; dup {
			if w.Players > worlds[i].Players {
				worlds[i] = w
			}
			continue
		}
		byName[w.Name] = len(worlds)
		worlds = append(worlds, w)
	}
	return worlds, nil
}

// WorldPresence adapts the worlds API to poller.Source. One fetch feeds two
// consumers: the returned name set drives the session engine and sampler,
// while changed per-world statuses are recorded as a side effect so the
// digest can reconstruct player counts over time.
type WorldPresence struct {
	client   *WorldsClient
	statuses store.WorldStatusStore
	logger   zerolog.Logger
	previous map[string]World
}

// NewWorldPresence wraps a worlds client into a presence source.
func NewWorldPresence(client *WorldsClient, statuses store.WorldStatusStore, logger zerolog.Logger) *WorldPresence {
	return &WorldPresence{
		client:   client,
		statuses: statuses,
		logger:   logger.With().Str("component", "world_presence").Logger(),
	}
}

// Query fetches the world list, records changed statuses, and returns the
// present world names.
func (p *WorldPresence) Query(ctx context.Context) ([]string, error) {
	worlds, err := p.client.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	names := make([]string, len(worlds))
	current := make(map[string]World, len(worlds))
	var changed []model.WorldStatus
	for i, w := range worlds {
		names[i] = w.Name
		current[w.Name] = w
		if prev, ok := p.previous[w.Name]; ok && prev == w {
			continue
		}
		changed = append(changed, model.WorldStatus{
			Name:    w.Name,
			SavedAt: now,
			Players: w.Players,
			Static:  w.Static,
			SSMP:    w.SSMP,
		})
	}

	if len(changed) > 0 {
		if err := p.statuses.Record(ctx, changed); err != nil {
			// previous stays unchanged so the rows are retried next poll.
			p.logger.Error().Err(err).Int("changed", len(changed)).Msg("world_statuses_record_failed")
			return names, nil
		}
		p.logger.Debug().Int("saved", len(changed)).Msg("world_statuses_saved")
	}
	p.previous = current
	return names, nil
}
