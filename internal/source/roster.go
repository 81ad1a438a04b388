package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"server-presence-backend/config"
	"server-presence-backend/internal/model"
	"server-presence-backend/internal/parse"
)

// Accounts that never logged in carry this placeholder timestamp.
const rosterEpochSentinel = "1970-01-01 03:00:00"

const (
	rosterMaxAttempts = 5
	rosterRetryDelay  = time.Second
	rosterPageDelay   = 600 * time.Millisecond
)

type rosterWarn struct {
	BanTime any `json:"bantime"`
}

// rosterRecord models one player entry from the roster API. Timestamps come
// in two encodings, a local wall-clock string or a unix epoch number.
type rosterRecord struct {
	Name      string       `json:"name"`
	RegDate   any          `json:"regdate"`
	LastLogin any          `json:"lastlogin"`
	Warn      []rosterWarn `json:"warn"`
}

type rosterPage struct {
	Data []rosterRecord `json:"data"`
	Meta struct {
		LastPage int `json:"last_page"`
	} `json:"meta"`
}

// RosterClient walks the paginated player roster of the game server API.
type RosterClient struct {
	baseURL    string
	tz         *time.Location
	client     *http.Client
	logger     zerolog.Logger
	pageDelay  time.Duration
	retryDelay time.Duration
}

// NewRosterClient creates a roster client. Roster timestamps are wall-clock
// strings in the configured timezone and are converted to UTC.
func NewRosterClient(cfg config.RosterConfig, logger zerolog.Logger) (*RosterClient, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid roster timezone %q: %w", cfg.Timezone, err)
	}
	return &RosterClient{
		baseURL:    cfg.BaseURL,
		tz:         loc,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "roster_api").Logger(),
		pageDelay:  rosterPageDelay,
		retryDelay: rosterRetryDelay,
	}, nil
}

// FetchAll walks every page of the roster and returns the converted rows.
// The first page's meta reports the page count; subsequent pages are fetched
// with a short delay in between so the scrape does not hammer the API.
func (c *RosterClient) FetchAll(ctx context.Context) ([]model.Player, error) {
	first, err := c.fetchPage(ctx, 1)
	if err != nil {
		return nil, err
	}
	players := c.convert(first.Data)
	for page := 2; page <= first.Meta.LastPage; page++ {
		if err := sleepCtx(ctx, c.pageDelay); err != nil {
			return nil, err
		}
		next, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		players = append(players, c.convert(next.Data)...)
	}
	return players, nil
}

// fetchPage retries transient failures. A rate-limited call waits for what
// the Retry-After header asks; everything else waits a fixed delay.
func (c *RosterClient) fetchPage(ctx context.Context, page int) (*rosterPage, error) {
	var lastErr error
	for attempt := 1; attempt <= rosterMaxAttempts; attempt++ {
		result, retryAfter, err := c.getPage(ctx, page)
		if err == nil {
			return result, nil
		}
		lastErr = err

		delay := c.retryDelay
		if retryAfter >= 0 {
			delay = retryAfter
		}
		c.logger.Warn().Err(err).
			Int("page", page).
			Int("retry", attempt).
			Int("of", rosterMaxAttempts).
			Dur("waiting_for", delay).
			Msg("fetch_roster_page_failed")
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("roster page %d failed after %d attempts: %w", page, rosterMaxAttempts, lastErr)
}

// getPage performs one request. retryAfter is negative unless the API rate
// limited the call and asked for a specific wait.
func (c *RosterClient) getPage(ctx context.Context, page int) (*rosterPage, time.Duration, error) {
	url := fmt.Sprintf("%s/user?page=%d", c.baseURL, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, -1, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(-1)
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
		return nil, retryAfter, fmt.Errorf("rate limited by roster API")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, -1, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to read response body: %w", err)
	}

	var result rosterPage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, -1, fmt.Errorf("failed to unmarshal roster page: %w", err)
	}
	return &result, -1, nil
}

func (c *RosterClient) convert(records []rosterRecord) []model.Player {
	players := make([]model.Player, 0, len(records))
	for _, rec := range records {
		name := parse.StripMarkup(rec.Name)
		if name == "" {
			continue
		}
		p := model.Player{
			Name:      name,
			RegDate:   c.parseTimestamp(rec.RegDate),
			LastLogin: c.parseTimestamp(rec.LastLogin),
			Warns:     len(rec.Warn),
		}
		for _, w := range rec.Warn {
			if at := c.parseTimestamp(w.BanTime); at != nil && (p.LastWarnAt == nil || at.After(*p.LastWarnAt)) {
				p.LastWarnAt = at
			}
		}
		players = append(players, p)
	}
	return players
}

// parseTimestamp decodes the roster API's timestamp forms. The epoch
// sentinel string and the zero number both stand for "never".
func (c *RosterClient) parseTimestamp(v any) *time.Time {
	switch t := v.(type) {
	case string:
		if t == "" || t == rosterEpochSentinel {
			return nil
		}
		parsed, err := time.ParseInLocation("2006-01-02 15:04:05", t, c.tz)
		if err != nil {
			return nil
		}
		utc := parsed.UTC()
		return &utc
	case float64:
		if t == 0 {
			return nil
		}
		utc := time.Unix(int64(t), 0).UTC()
		return &utc
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
