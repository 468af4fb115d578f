package trip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	p := DefaultPricing()

	tests := []struct {
		name             string
		league, home, aw string
		want             float64
	}{
		{"city v brighton", "Premier League", "Manchester City", "Brighton", 80},
		{"brighton v wolves", "Premier League", "Brighton", "Wolves", 60},
		{"unknown league default", "Unknown League", "A", "B", 50},
		{"valencia v barcelona", "La Liga", "Valencia", "Barcelona", 70},
		{"elite home", "Premier League", "Arsenal", "Brentford", 80},
		{"elite away", "Premier League", "Brentford", "Liverpool", 80},
		{"no elite", "Premier League", "Brentford", "Fulham", 60},
		{"la liga elite", "La Liga", "Real Madrid", "Barcelona", 70},
		{"la liga mid", "La Liga", "Getafe", "Girona", 50},
		{"serie a", "Serie A", "Inter", "Lecce", 60},
		{"serie a mid", "Serie A", "Lecce", "Monza", 45},
		{"bundesliga", "Bundesliga", "Mainz", "Bayern Munich", 50},
		{"bundesliga mid", "Bundesliga", "Mainz", "Bochum", 40},
		{"ligue 1", "Ligue 1", "PSG", "Lens", 55},
		{"ligue 1 mid", "Ligue 1", "Lens", "Nice", 40},
		{"unknown league", "Eredivisie", "Ajax", "PSV", 50},
		{"unknown league elite", "Champions League", "Real Madrid", "Manchester City", 50},
		{"names are exact", "Premier League", "arsenal", "Fulham", 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Estimate(tt.league, tt.home, tt.aw))
		})
	}
}

func TestDefaultPricing_EliteTeams(t *testing.T) {
	p := DefaultPricing()
	assert.Len(t, p.EliteTeams, 15)
	assert.True(t, p.IsElite("Monaco"))
	assert.False(t, p.IsElite("Tottenham"))
}

func TestLoadPricing_Defaults(t *testing.T) {
	p, err := LoadPricing("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPricing(), p)
}

func TestLoadPricing_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_price: 45
leagues:
  Premier League:
    top: 95
  Eredivisie:
    top: 40
    mid: 30
    low: 25
elite_teams:
  - Ajax
  - Arsenal
`), 0o600))

	p, err := LoadPricing(path)
	require.NoError(t, err)

	assert.Equal(t, 45.0, p.DefaultPrice)
	assert.Equal(t, Tier{Top: 95, Mid: 60, Low: 50}, p.Leagues["Premier League"])
	assert.Equal(t, Tier{Top: 70, Mid: 50, Low: 40}, p.Leagues["La Liga"])
	assert.Equal(t, []string{"Ajax", "Arsenal"}, p.EliteTeams)

	assert.Equal(t, 40.0, p.Estimate("Eredivisie", "Ajax", "PSV"))
	assert.Equal(t, 60.0, p.Estimate("Premier League", "Chelsea", "Fulham"))
	assert.Equal(t, 45.0, p.Estimate("MLS", "Inter Miami", "LA Galaxy"))
}

func TestLoadPricing_Errors(t *testing.T) {
	_, err := LoadPricing(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "not found")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("leagues: [unterminated"), 0o600))
	_, err = LoadPricing(bad)
	assert.Error(t, err)

	negative := filepath.Join(t.TempDir(), "negative.yaml")
	require.NoError(t, os.WriteFile(negative, []byte("default_price: -1\n"), 0o600))
	_, err = LoadPricing(negative)
	assert.ErrorContains(t, err, "negative")
}
