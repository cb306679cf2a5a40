package contest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"cfremind/pkg/logx"
)

const (
	defaultAPIURL  = "https://codeforces.com/api/contest.list?gym=false"
	defaultSiteURL = "https://codeforces.com"
	defaultTimeout = 15 * time.Second
)

type Config struct {
	APIURL  string
	SiteURL string
	Timeout time.Duration
}

// Client fetches the upcoming contest list. Every request is bounded by the
// configured timeout; callers treat any error as "no actionable contests now".
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.APIURL) == "" {
		cfg.APIURL = defaultAPIURL
	}
	if strings.TrimSpace(cfg.SiteURL) == "" {
		cfg.SiteURL = defaultSiteURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// Link returns the canonical contest page URL.
func (c *Client) Link(id int64) string {
	return fmt.Sprintf("%s/contests/%d", strings.TrimRight(c.cfg.SiteURL, "/"), id)
}

type listPayload struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
	Result  []struct {
		ID               int64  `json:"id"`
		Name             string `json:"name"`
		Phase            string `json:"phase"`
		StartTimeSeconds int64  `json:"startTimeSeconds"`
		DurationSeconds  int64  `json:"durationSeconds"`
	} `json:"result"`
}

// Upcoming returns contests in phase BEFORE, ordered by ascending start time.
// Transport errors, non-2xx responses, a non-OK API status, and parse errors
// are all equivalent for callers: log, treat as empty, move on.
func (c *Client) Upcoming(ctx context.Context) ([]Contest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contest list fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("contest list fetch: http %d", resp.StatusCode)
	}

	var payload listPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("contest list decode: %w", err)
	}
	if payload.Status != "OK" {
		comment := payload.Comment
		if comment == "" {
			comment = "unknown error"
		}
		return nil, fmt.Errorf("contest list api status %q: %s", payload.Status, comment)
	}

	out := make([]Contest, 0, len(payload.Result))
	for _, raw := range payload.Result {
		if raw.Phase != PhaseBefore || raw.StartTimeSeconds <= 0 {
			continue
		}
		out = append(out, Contest{
			ID:       raw.ID,
			Name:     raw.Name,
			StartsAt: time.Unix(raw.StartTimeSeconds, 0).UTC(),
			Duration: time.Duration(raw.DurationSeconds) * time.Second,
			Phase:    raw.Phase,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })

	c.log.Debug("contest list fetched", logx.Int("upcoming", len(out)))
	return out, nil
}
