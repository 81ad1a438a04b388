package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"server-presence-backend/internal/model"
	"server-presence-backend/internal/store"
)

// Range selects the digest window.
type Range string

const (
	RangeDay   Range = "day"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeYear  Range = "year"
)

// ParseRange validates a range string.
func ParseRange(s string) (Range, error) {
	switch Range(s) {
	case RangeDay, RangeWeek, RangeMonth, RangeYear:
		return Range(s), nil
	}
	return "", fmt.Errorf("unknown range %q", s)
}

// DateRange snaps a reference date to the enclosing calendar window: the
// day itself, the Monday-based week, the month, or the year. Returns
// [from, to).
func DateRange(r Range, ref time.Time) (time.Time, time.Time) {
	year, month, day := ref.Date()
	loc := ref.Location()
	start := time.Date(year, month, day, 0, 0, 0, 0, loc)

	switch r {
	case RangeWeek:
		// Monday starts the week.
		offset := (int(start.Weekday()) + 6) % 7
		start = start.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case RangeMonth:
		start = time.Date(year, month, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	case RangeYear:
		start = time.Date(year, 1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	default:
		return start, start.AddDate(0, 0, 1)
	}
}

// WorldPopularity scores one world over the digest window. Score is the
// area under the player-count-over-time curve, in player-hours, anchored at
// zero players when the session opened.
type WorldPopularity struct {
	Name         string  `json:"name"`
	Score        float64 `json:"score"`
	PeakPlayers  int     `json:"peakPlayers"`
	SessionHours float64 `json:"sessionHours"`
}

// Digest is the aggregated activity report for one window.
type Digest struct {
	Range         Range                  `json:"range"`
	From          time.Time              `json:"from"`
	To            time.Time              `json:"to"`
	ActivePlayers []store.EntityActivity `json:"activePlayers"`
	PopularWorlds []WorldPopularity      `json:"popularWorlds"`
	PeakOnline    int                    `json:"peakOnline"`
}

const (
	digestTopN = 10
	// Worlds below this player count never contribute popularity points.
	popularityMinPlayers = 5
)

// Generator aggregates collected data into digests.
type Generator struct {
	players  store.SessionStore
	worlds   store.SessionStore
	samples  store.SampleStore
	statuses store.WorldStatusStore
	logger   zerolog.Logger
}

// NewGenerator creates a digest generator over the collected stores.
func NewGenerator(players, worlds store.SessionStore, samples store.SampleStore, statuses store.WorldStatusStore, logger zerolog.Logger) *Generator {
	return &Generator{
		players:  players,
		worlds:   worlds,
		samples:  samples,
		statuses: statuses,
		logger:   logger.With().Str("component", "digest").Logger(),
	}
}

// Generate builds the digest for [from, to).
func (g *Generator) Generate(ctx context.Context, r Range, from, to time.Time) (*Digest, error) {
	activePlayers, err := g.players.MostActive(ctx, from, to, digestTopN)
	if err != nil {
		return nil, fmt.Errorf("most active players: %w", err)
	}

	popularWorlds, err := g.popularWorlds(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("most popular worlds: %w", err)
	}

	peak, err := g.samples.Peak(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("peak online: %w", err)
	}

	return &Digest{
		Range:         r,
		From:          from,
		To:            to,
		ActivePlayers: activePlayers,
		PopularWorlds: popularWorlds,
		PeakOnline:    peak,
	}, nil
}

// popularWorlds matches world status observations against the world session
// that contains them and integrates player count over hours since the
// session opened (trapezoid rule, zero-anchored).
func (g *Generator) popularWorlds(ctx context.Context, from, to time.Time) ([]WorldPopularity, error) {
	sessions, err := g.worlds.Sessions(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	sessionsByName := make(map[string][]model.Session)
	statusHorizon := to
	for _, s := range sessions {
		sessionsByName[s.EntityID] = append(sessionsByName[s.EntityID], s)
		if s.EndTime.After(statusHorizon) {
			statusHorizon = s.EndTime
		}
	}

	statuses, err := g.statuses.Between(ctx, from, statusHorizon)
	if err != nil {
		return nil, err
	}

	type worldPoints struct {
		elapsed      []float64
		players      []float64
		peak         int
		sessionHours float64
	}
	points := make(map[string]*worldPoints)
	order := make([]string, 0)

	// statuses arrive ordered by (name, saved_at), so per-world elapsed
	// values are already ascending.
	for _, st := range statuses {
		if st.Players < popularityMinPlayers {
			continue
		}
		var matched *model.Session
		for i := range sessionsByName[st.Name] {
			s := &sessionsByName[st.Name][i]
			if !st.SavedAt.Before(s.StartTime) && !st.SavedAt.After(s.EndTime) {
				matched = s
				break
			}
		}
		if matched == nil {
			continue
		}

		wp, ok := points[st.Name]
		if !ok {
			wp = &worldPoints{sessionHours: matched.EndTime.Sub(matched.StartTime).Hours()}
			points[st.Name] = wp
			order = append(order, st.Name)
		}
		wp.elapsed = append(wp.elapsed, st.SavedAt.Sub(matched.StartTime).Hours())
		wp.players = append(wp.players, float64(st.Players))
		if st.Players > wp.peak {
			wp.peak = st.Players
		}
	}

	popularity := make([]WorldPopularity, 0, len(points))
	for _, name := range order {
		wp := points[name]
		xs := append([]float64{0}, wp.elapsed...)
		ys := append([]float64{0}, wp.players...)
		var auc float64
		for i := 0; i+1 < len(xs); i++ {
			auc += (xs[i+1] - xs[i]) * (ys[i+1] + ys[i]) / 2
		}
		popularity = append(popularity, WorldPopularity{
			Name:         name,
			Score:        auc,
			PeakPlayers:  wp.peak,
			SessionHours: wp.sessionHours,
		})
	}

	sort.Slice(popularity, func(i, j int) bool {
		if popularity[i].Score != popularity[j].Score {
			return popularity[i].Score > popularity[j].Score
		}
		return popularity[i].Name < popularity[j].Name
	})
	if len(popularity) > digestTopN {
		popularity = popularity[:digestTopN]
	}
	return popularity, nil
}
