// Package football is the api-sports v3 fixture provider.
package football

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Sternrassler/tripcost/pkg/provider"
	"github.com/Sternrassler/tripcost/pkg/ratelimit"
	"github.com/Sternrassler/tripcost/pkg/upstream"
)

const (
	// DefaultBaseURL is the public api-sports football endpoint.
	DefaultBaseURL = "https://v3.football.api-sports.io"

	// DefaultSeason is the season queried when none is configured.
	DefaultSeason = 2023

	// HeaderAPIKey carries the api-sports key.
	HeaderAPIKey = "x-apisports-key"

	// matchWindow is how far ahead UpcomingMatches looks.
	matchWindow = 90 * 24 * time.Hour

	queryDateLayout = "2006-01-02"
)

// ErrUpstream reports an api-sports error envelope (HTTP 200 with a
// non-empty "errors" member).
var ErrUpstream = errors.New("api-sports returned errors")

var topLeagues = []provider.League{
	{ID: 39, Name: "Premier League", Country: "England"},
	{ID: 140, Name: "La Liga", Country: "Spain"},
	{ID: 135, Name: "Serie A", Country: "Italy"},
	{ID: 78, Name: "Bundesliga", Country: "Germany"},
	{ID: 61, Name: "Ligue 1", Country: "France"},
}

// TopLeagues returns the supported leagues. The list is static.
func TopLeagues() []provider.League {
	out := make([]provider.League, len(topLeagues))
	copy(out, topLeagues)
	return out
}

// Config configures a Client.
type Config struct {
	APIKey    string
	BaseURL   string
	Season    int
	UserAgent string

	// Quota gates requests on the account's daily allowance. Optional.
	Quota *ratelimit.Tracker

	// Retry overrides the upstream retry policy. Optional.
	Retry upstream.RetryPolicy

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// Client implements provider.Fixtures against api-sports.
type Client struct {
	http   *upstream.Client
	season int
	now    func() time.Time
}

var _ provider.Fixtures = (*Client)(nil)

// New creates a football client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Season == 0 {
		cfg.Season = DefaultSeason
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ucfg := upstream.DefaultConfig("football", strings.TrimRight(cfg.BaseURL, "/"), cfg.UserAgent)
	ucfg.Header = http.Header{}
	ucfg.Header.Set(HeaderAPIKey, cfg.APIKey)
	ucfg.Quota = cfg.Quota
	if cfg.Retry != nil {
		ucfg.Retry = cfg.Retry
	}

	c, err := upstream.New(ucfg)
	if err != nil {
		return nil, fmt.Errorf("football client: %w", err)
	}
	return &Client{http: c, season: cfg.Season, now: cfg.Now}, nil
}

// TeamsByLeague lists the teams of a league in the configured season.
func (c *Client) TeamsByLeague(ctx context.Context, leagueID int) ([]provider.Team, error) {
	body, err := c.get(ctx, "/teams", url.Values{
		"league": {strconv.Itoa(leagueID)},
		"season": {strconv.Itoa(c.season)},
	})
	if err != nil {
		return nil, err
	}

	items := gjson.GetBytes(body, "response").Array()
	teams := make([]provider.Team, 0, len(items))
	for _, item := range items {
		teams = append(teams, provider.Team{
			ID:   int(item.Get("team.id").Int()),
			Name: item.Get("team.name").String(),
			Logo: item.Get("team.logo").String(),
			City: item.Get("venue.city").String(),
		})
	}
	return teams, nil
}

// UpcomingMatches lists the team's fixtures over the next 90 days, filtered
// by venue.
func (c *Client) UpcomingMatches(ctx context.Context, teamID int, matchType provider.MatchType) ([]provider.Match, error) {
	from := c.now().UTC()
	body, err := c.get(ctx, "/fixtures", url.Values{
		"team":   {strconv.Itoa(teamID)},
		"season": {strconv.Itoa(c.season)},
		"from":   {from.Format(queryDateLayout)},
		"to":     {from.Add(matchWindow).Format(queryDateLayout)},
	})
	if err != nil {
		return nil, err
	}

	var matches []provider.Match
	for _, item := range gjson.GetBytes(body, "response").Array() {
		isHome := int(item.Get("teams.home.id").Int()) == teamID
		if matchType == provider.MatchesHome && !isHome {
			continue
		}
		if matchType == provider.MatchesAway && isHome {
			continue
		}
		date, err := parseDate(item.Get("fixture.date").String())
		if err != nil {
			return nil, c.http.DecodeError("fixture date", err)
		}
		matches = append(matches, provider.Match{
			ID:       int(item.Get("fixture.id").Int()),
			Date:     date,
			HomeTeam: item.Get("teams.home.name").String(),
			AwayTeam: item.Get("teams.away.name").String(),
			Venue:    item.Get("fixture.venue.name").String(),
			City:     item.Get("fixture.venue.city").String(),
			IsHome:   isHome,
		})
	}
	return matches, nil
}

// FixtureDetails returns one fixture, or nil if api-sports doesn't know it.
func (c *Client) FixtureDetails(ctx context.Context, fixtureID int) (*provider.Fixture, error) {
	body, err := c.get(ctx, "/fixtures", url.Values{"id": {strconv.Itoa(fixtureID)}})
	if err != nil {
		return nil, err
	}

	item := gjson.GetBytes(body, "response.0")
	if !item.Exists() {
		return nil, nil
	}
	date, err := parseDate(item.Get("fixture.date").String())
	if err != nil {
		return nil, c.http.DecodeError("fixture date", err)
	}
	return &provider.Fixture{
		ID:       int(item.Get("fixture.id").Int()),
		Date:     date,
		HomeTeam: item.Get("teams.home.name").String(),
		AwayTeam: item.Get("teams.away.name").String(),
		Venue:    item.Get("fixture.venue.name").String(),
		City:     item.Get("fixture.venue.city").String(),
		League:   item.Get("league.name").String(),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, err := c.http.GetJSON(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, c.http.DecodeError("invalid json", nil)
	}
	if msg := envelopeErrors(gjson.GetBytes(body, "errors")); msg != "" {
		return nil, c.http.DecodeError(msg, ErrUpstream)
	}
	return body, nil
}

// envelopeErrors flattens the "errors" member, which api-sports sends as an
// empty array on success and as an object keyed by field on failure.
func envelopeErrors(v gjson.Result) string {
	var parts []string
	if v.IsObject() {
		v.ForEach(func(key, value gjson.Result) bool {
			parts = append(parts, key.String()+": "+value.String())
			return true
		})
	} else {
		for _, item := range v.Array() {
			parts = append(parts, item.String())
		}
	}
	return strings.Join(parts, "; ")
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return t.UTC(), nil
}
